package compression

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	lzfChunkStored     = 0
	lzfChunkCompressed = 1
)

type lzfReader struct {
	r      io.Reader
	header [7]byte
	in     []byte
	buf    []byte
}

// NewLZFReader decodes a sequence of "ZV" chunks.
func NewLZFReader(r io.Reader) io.Reader {
	return &lzfReader{r: r}
}

func (l *lzfReader) Read(p []byte) (int, error) {
	for len(l.buf) == 0 {
		if err := l.nextChunk(); err != nil {
			return 0, err
		}
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

func (l *lzfReader) nextChunk() error {
	if _, err := io.ReadFull(l.r, l.header[:5]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated header", ErrCorruptLZF)
		}
		return err
	}
	if l.header[0] != LZFMagic[0] || l.header[1] != LZFMagic[1] {
		return fmt.Errorf("%w: bad magic %x", ErrCorruptLZF, l.header[:2])
	}
	length := int(binary.BigEndian.Uint16(l.header[3:5]))

	switch l.header[2] {
	case lzfChunkStored:
		data := make([]byte, length)
		if _, err := io.ReadFull(l.r, data); err != nil {
			return fmt.Errorf("%w: truncated stored chunk", ErrCorruptLZF)
		}
		l.buf = data
	case lzfChunkCompressed:
		if _, err := io.ReadFull(l.r, l.header[5:7]); err != nil {
			return fmt.Errorf("%w: truncated header", ErrCorruptLZF)
		}
		rawLength := int(binary.BigEndian.Uint16(l.header[5:7]))
		if cap(l.in) < length {
			l.in = make([]byte, length)
		}
		in := l.in[:length]
		if _, err := io.ReadFull(l.r, in); err != nil {
			return fmt.Errorf("%w: truncated compressed chunk", ErrCorruptLZF)
		}
		out, err := lzfDecompress(in, rawLength)
		if err != nil {
			return err
		}
		l.buf = out
	default:
		return fmt.Errorf("%w: unknown chunk type %d", ErrCorruptLZF, l.header[2])
	}
	return nil
}

// lzfDecompress expands one compressed chunk. A control byte below 32 starts a
// literal run of ctrl+1 bytes; anything else is a back reference.
func lzfDecompress(in []byte, rawLength int) ([]byte, error) {
	out := make([]byte, 0, rawLength)
	i := 0
	for i < len(in) {
		ctrl := int(in[i])
		i++
		if ctrl < 32 {
			run := ctrl + 1
			if i+run > len(in) {
				return nil, fmt.Errorf("%w: literal run overflows input", ErrCorruptLZF)
			}
			out = append(out, in[i:i+run]...)
			i += run
			continue
		}

		length := ctrl >> 5
		if length == 7 {
			if i >= len(in) {
				return nil, fmt.Errorf("%w: missing length byte", ErrCorruptLZF)
			}
			length += int(in[i])
			i++
		}
		if i >= len(in) {
			return nil, fmt.Errorf("%w: missing offset byte", ErrCorruptLZF)
		}
		ref := len(out) - ((ctrl & 0x1f) << 8) - int(in[i]) - 1
		i++
		if ref < 0 {
			return nil, fmt.Errorf("%w: back reference before start", ErrCorruptLZF)
		}
		// byte by byte: the reference may overlap the bytes being written
		for n := 0; n < length+2; n++ {
			out = append(out, out[ref+n])
		}
	}
	if len(out) != rawLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrCorruptLZF, rawLength, len(out))
	}
	return out, nil
}
