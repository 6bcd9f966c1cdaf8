package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

const DefaultFrameLimit = 64 << 20

// Decompress inflates one frame. limit bounds the decompressed size.
func Decompress(kind Kind, frame []byte, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultFrameLimit
	}
	var r io.Reader
	switch kind {
	case None:
		return frame, nil
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(frame))
		if err != nil {
			return nil, fmt.Errorf("error opening gzip frame: %w", err)
		}
		defer zr.Close()
		r = zr
	case GzipWithLengthPrefix:
		fr := flate.NewReader(bytes.NewReader(frame))
		defer fr.Close()
		r = fr
	case LZF:
		r = NewLZFReader(bytes.NewReader(frame))
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, kind)
	}

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("error decompressing %s frame: %w", kind, err)
	}
	if int64(len(out)) > limit {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}
