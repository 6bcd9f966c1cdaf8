package server

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	ErrNotListening = errors.New("server is not listening")
	ErrShuttingDown = errors.New("server is shutting down")
)

// IsTransportClose reports whether err is the peer going away rather than a
// fault in what it sent.
func IsTransportClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
