package framing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DelimitedReader returns frames bounded by a start and an end marker. The
// boundary between two frames is the sequence end+start, matched with a KMP
// failure table so the stream is scanned once regardless of false starts.
type DelimitedReader struct {
	r         io.ByteReader
	start     []byte
	end       []byte
	delim     []byte
	next      []int
	token     bytes.Buffer
	startSeen bool
	eos       bool
}

func NewDelimitedReader(r io.ByteReader, start, end []byte) *DelimitedReader {
	delim := make([]byte, 0, len(end)+len(start))
	delim = append(delim, end...)
	delim = append(delim, start...)
	return &DelimitedReader{
		r:     r,
		start: start,
		end:   end,
		delim: delim,
		next:  failureTable(delim),
	}
}

func failureTable(delim []byte) []int {
	next := make([]int, len(delim))
	if len(delim) == 0 {
		return next
	}
	i, j := 0, -1
	next[0] = -1
	for i < len(delim)-1 {
		for j > -1 && delim[i] != delim[j] {
			j = next[j]
		}
		i++
		j++
		next[i] = j
	}
	return next
}

// Next returns start + body + end for the next frame. When the stream ends
// before the delimiter, the bytes read so far are returned together with
// ErrEndedMidFrame and every later call returns io.EOF.
func (d *DelimitedReader) Next() ([]byte, error) {
	if d.eos {
		return nil, io.EOF
	}
	if !d.startSeen {
		if err := d.readStart(); err != nil {
			return nil, err
		}
		d.startSeen = true
	}

	d.token.Reset()
	d.token.Write(d.start)

	seen := 0
	for seen < len(d.delim) {
		b, err := d.r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("error reading frame: %w", err)
			}
			d.eos = true
			d.token.Write(d.delim[:seen])
			return d.frame(), ErrEndedMidFrame
		}
		for seen > 0 && b != d.delim[seen] {
			d.token.Write(d.delim[:seen-d.next[seen]])
			seen = d.next[seen]
		}
		if b == d.delim[seen] {
			seen++
		} else {
			d.token.WriteByte(b)
		}
	}

	// the start marker of the following frame is already consumed
	d.token.Write(d.end)
	return d.frame(), nil
}

func (d *DelimitedReader) readStart() error {
	marker := make([]byte, len(d.start))
	for i := range marker {
		b, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 {
					return io.EOF
				}
				return fmt.Errorf("%w: truncated start marker", ErrCorruptedStream)
			}
			return fmt.Errorf("error reading start marker: %w", err)
		}
		marker[i] = b
	}
	if !bytes.Equal(marker, d.start) {
		return fmt.Errorf("%w: invalid header % x", ErrCorruptedStream, marker)
	}
	return nil
}

func (d *DelimitedReader) frame() []byte {
	out := make([]byte, d.token.Len())
	copy(out, d.token.Bytes())
	return out
}
