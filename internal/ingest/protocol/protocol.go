// Package protocol turns a connection's byte stream into event batches for one
// listener encoding.
package protocol

import (
	"bufio"
	"errors"
	"io"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/Avi18971911/Tally/internal/ingest/framing"
)

// EventReader yields batches in arrival order. Next returns io.EOF once the
// peer has finished cleanly; any other error ends the connection.
type EventReader interface {
	Next() (model.Batch, error)
}

type Protocol interface {
	Name() string
	Open(r *bufio.Reader) (EventReader, error)
}

// Opened is implemented by readers that know which compression they detected.
type Opened interface {
	Compression() compression.Kind
}

// frameSource hands out decompressed frames from a framed stream.
type frameSource struct {
	frames framing.FrameReader
	kind   compression.Kind
	limit  int64
	done   bool
}

func newFrameSource(kind compression.Kind, r *bufio.Reader, limit int64) (*frameSource, error) {
	frames, err := framing.ForKind(kind, r)
	if err != nil {
		return nil, err
	}
	return &frameSource{frames: frames, kind: kind, limit: limit}, nil
}

func (f *frameSource) next() ([]byte, error) {
	if f.done {
		return nil, io.EOF
	}
	frame, err := f.frames.Next()
	if err != nil {
		// the last delimited frame always ends with the stream
		if !errors.Is(err, framing.ErrEndedMidFrame) || frame == nil {
			return nil, err
		}
		f.done = true
	}
	return compression.Decompress(f.kind, frame, f.limit)
}
