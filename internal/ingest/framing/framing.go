// Package framing splits a byte stream into discrete frames.
package framing

import (
	"errors"
	"fmt"
	"io"

	"github.com/Avi18971911/Tally/internal/ingest/compression"
)

var (
	ErrCorruptedStream = errors.New("corrupted stream")
	// ErrEndedMidFrame accompanies the last frame of a stream that ended
	// before a full delimiter was seen. The frame is still returned.
	ErrEndedMidFrame = fmt.Errorf("stream ended mid-frame: %w", io.ErrUnexpectedEOF)
)

type FrameReader interface {
	Next() ([]byte, error)
}

var gzipEndMarker = []byte{0x00, 0x00}

const lengthPrefixBytes = 3

// ByteReader is what the framing readers consume; *bufio.Reader satisfies it.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// ForKind returns the framing used by a detected compression kind.
func ForKind(kind compression.Kind, r ByteReader) (FrameReader, error) {
	switch kind {
	case compression.Gzip:
		return NewDelimitedReader(r, compression.GzipHeader, gzipEndMarker), nil
	case compression.GzipWithLengthPrefix:
		return NewLengthPrefixedReader(r, compression.LengthPrefixMagic, lengthPrefixBytes), nil
	default:
		return nil, fmt.Errorf("no framing for compression kind %s", kind)
	}
}
