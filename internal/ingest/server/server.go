// Package server accepts collector connections and runs one handler per
// connection until the peer leaves or the server shuts down.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Avi18971911/Tally/internal/config"
	"github.com/Avi18971911/Tally/internal/ingest/protocol"
	"github.com/Avi18971911/Tally/internal/pipeline/dispatch"
	"go.uber.org/zap"
)

type Server struct {
	cfg        config.Listener
	proto      protocol.Protocol
	dispatcher dispatch.Dispatcher
	listener   net.Listener
	closing    atomic.Bool
	mu         sync.Mutex
	handlers   map[uint64]*handler
	nextID     uint64
	wg         sync.WaitGroup
	logger     *zap.Logger
}

func NewServer(
	cfg config.Listener,
	proto protocol.Protocol,
	dispatcher dispatch.Dispatcher,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:        cfg,
		proto:      proto,
		dispatcher: dispatcher,
		handlers:   make(map[uint64]*handler),
		logger:     logger.With(zap.String("listener", cfg.Name), zap.String("mode", proto.Name())),
	}
}

func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", s.cfg.Address, err)
	}
	if s.cfg.TLS.Enabled() {
		tc, err := NewTLSConfig(s.cfg.TLS)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("error configuring TLS for %s: %w", s.cfg.Name, err)
		}
		ln = tls.NewListener(ln, tc)
	}
	s.listener = ln
	s.logger.Info("Listening", zap.String("address", ln.Addr().String()), zap.Bool("tls", s.cfg.TLS.Enabled()))
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed. It returns nil
// after Shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return ErrNotListening
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("Temporary accept failure", zap.Error(err))
				continue
			}
			return fmt.Errorf("error accepting connection: %w", err)
		}
		if err := s.startHandler(ctx, conn); err != nil {
			_ = conn.Close()
		}
	}
}

func (s *Server) startHandler(ctx context.Context, conn net.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return ErrShuttingDown
	}
	s.nextID++
	h := &handler{
		id:     s.nextID,
		conn:   conn,
		server: s,
		logger: s.logger.With(zap.String("remote", conn.RemoteAddr().String()), zap.Uint64("handler", s.nextID)),
	}
	s.handlers[h.id] = h
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		h.run(ctx)
	}()
	return nil
}

func (s *Server) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, id)
}

func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Shutdown stops accepting, aborts every live connection and waits for the
// handlers to finish, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("Failed to close listener", zap.Error(err))
		}
	}

	s.mu.Lock()
	live := make([]*handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		live = append(live, h)
	}
	s.mu.Unlock()

	s.logger.Info("Shutting down", zap.Int("connections", len(live)))
	for _, h := range live {
		h.forceClose()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		s.logger.Info("All connections drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("error draining %d connections: %w", s.ActiveConnections(), ctx.Err())
	}
}
