package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	readBufferSize      = 64 * 1024
	batchReportInterval = 5 * time.Minute
)

// deadlineReader bounds every read so a silent peer is noticed.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if d.timeout > 0 {
		if err := d.conn.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
			return 0, err
		}
	}
	return d.conn.Read(p)
}

type handler struct {
	id       uint64
	conn     net.Conn
	server   *Server
	shutdown atomic.Bool
	batches  atomic.Int64
	logger   *zap.Logger
}

func (h *handler) run(ctx context.Context) {
	defer h.server.remove(h.id)
	defer h.conn.Close()

	h.logger.Info("Accepted connection")
	stop := make(chan struct{})
	defer close(stop)
	go h.reportBatches(stop)

	h.finish(h.readLoop(ctx))
}

func (h *handler) readLoop(ctx context.Context) error {
	r := bufio.NewReaderSize(&deadlineReader{conn: h.conn, timeout: h.server.cfg.ReadTimeout}, readBufferSize)
	events, err := h.server.proto.Open(r)
	if err != nil {
		return err
	}
	for {
		batch, err := events.Next()
		if err != nil {
			return err
		}
		if err := h.server.dispatcher.Dispatch(ctx, batch); err != nil {
			h.logger.Error("Failed to dispatch batch", zap.String("kind", string(batch.Kind)), zap.Error(err))
			continue
		}
		h.batches.Add(1)
	}
}

func (h *handler) finish(err error) {
	fields := []zap.Field{zap.Int64("batches", h.batches.Load())}
	switch {
	case h.shutdown.Load():
		h.logger.Info("Connection closed by shutdown", fields...)
	case IsTransportClose(err):
		h.logger.Info("Connection closed", append(fields, zap.NamedError("reason", err))...)
	default:
		h.logger.Error("Connection failed", append(fields, zap.Error(err))...)
	}
}

func (h *handler) reportBatches(stop <-chan struct{}) {
	ticker := time.NewTicker(batchReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.logger.Info("Connection still open", zap.Int64("batches", h.batches.Load()))
		}
	}
}

// forceClose aborts the socket with linger 0 so the peer sees a reset and the
// blocked read returns at once.
func (h *handler) forceClose() {
	h.shutdown.Store(true)
	raw := rawConn(h.conn)
	if tcp, ok := raw.(*net.TCPConn); ok {
		if err := tcp.SetLinger(0); err != nil && !errors.Is(err, net.ErrClosed) {
			h.logger.Debug("Failed to set linger", zap.Error(err))
		}
	}
	_ = raw.Close()
}
