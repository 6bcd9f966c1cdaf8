package framing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// LengthPrefixedReader reads frames laid out as start marker, big-endian
// length, payload. Only the payload is returned.
type LengthPrefixedReader struct {
	r           io.Reader
	start       []byte
	lengthBytes int
	sentinel    int
	header      []byte
}

func NewLengthPrefixedReader(r io.Reader, start []byte, lengthBytes int) *LengthPrefixedReader {
	return &LengthPrefixedReader{
		r:           r,
		start:       start,
		lengthBytes: lengthBytes,
		sentinel:    1<<(8*lengthBytes) - 1,
		header:      make([]byte, len(start)+lengthBytes),
	}
}

func (l *LengthPrefixedReader) Next() ([]byte, error) {
	if _, err := io.ReadFull(l.r, l.header); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: truncated frame header", ErrCorruptedStream)
		default:
			return nil, fmt.Errorf("error reading frame header: %w", err)
		}
	}
	if !bytes.Equal(l.header[:len(l.start)], l.start) {
		return nil, fmt.Errorf("%w: invalid header % x", ErrCorruptedStream, l.header[:len(l.start)])
	}

	length := 0
	for _, b := range l.header[len(l.start):] {
		length = length<<8 | int(b)
	}
	if length <= 0 || length == l.sentinel {
		return nil, fmt.Errorf("%w: implausible frame length %d", ErrCorruptedStream, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(l.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrEndedMidFrame
		}
		return nil, fmt.Errorf("error reading frame payload: %w", err)
	}
	return payload, nil
}
