package wire

import (
	"fmt"
	"io"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/Avi18971911/Tally/internal/ingest/decoder"
)

// StreamWriter writes envelopes to a collector connection in one encoding and
// compression. Gzip and length prefixed streams carry one envelope per frame.
// LZF wraps the whole stream.
type StreamWriter struct {
	w           io.Writer
	binary      bool
	compression compression.Kind
	started     bool
}

func NewStreamWriter(w io.Writer, binary bool, kind compression.Kind) *StreamWriter {
	return &StreamWriter{w: w, binary: binary, compression: kind}
}

func (s *StreamWriter) Write(kind model.EventKind, envelope any) error {
	var payload []byte
	var err error
	if s.binary {
		payload, err = EncodeBinaryRecord(kind, envelope)
	} else {
		payload, err = EncodeJSON(envelope)
	}
	if err != nil {
		return err
	}

	continuous := s.compression == compression.None || s.compression == compression.LZF
	if s.binary && continuous && !s.started {
		payload = append(append([]byte{}, decoder.StreamHeader...), payload...)
	}
	s.started = true

	var out []byte
	switch s.compression {
	case compression.None:
		out = payload
	case compression.LZF:
		out = LZFChunks(payload)
	case compression.Gzip:
		out, err = GzipFrame(payload)
	case compression.GzipWithLengthPrefix:
		out, err = LengthPrefixedFrame(payload)
	default:
		return fmt.Errorf("%w: %v", compression.ErrUnsupportedKind, s.compression)
	}
	if err != nil {
		return err
	}
	if _, err := s.w.Write(out); err != nil {
		return fmt.Errorf("error writing %s frame: %w", s.compression, err)
	}
	return nil
}
