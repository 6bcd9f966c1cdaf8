package protocol

import (
	"bufio"
	"errors"
	"io"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/Avi18971911/Tally/internal/ingest/decoder"
	"go.uber.org/zap"
)

const readChunkSize = 1024

type JSONProtocol struct {
	detectCompression bool
	maxPending        int
	frameLimit        int64
	logger            *zap.Logger
}

func NewJSONProtocol(detectCompression bool, maxPending int, logger *zap.Logger) *JSONProtocol {
	return &JSONProtocol{
		detectCompression: detectCompression,
		maxPending:        maxPending,
		frameLimit:        int64(maxPending),
		logger:            logger,
	}
}

func (p *JSONProtocol) Name() string {
	return "json"
}

func (p *JSONProtocol) Open(r *bufio.Reader) (EventReader, error) {
	kind := compression.None
	if p.detectCompression {
		var err error
		if kind, err = compression.Detect(r); err != nil {
			return nil, err
		}
	}

	reader := &jsonReader{
		kind:    kind,
		scanner: decoder.NewObjectScanner(p.maxPending),
		logger:  p.logger,
	}
	switch kind {
	case compression.None:
		reader.chunks = newRawSource(r)
	case compression.LZF:
		reader.chunks = newRawSource(compression.NewLZFReader(r))
	default:
		frames, err := newFrameSource(kind, r, p.frameLimit)
		if err != nil {
			return nil, err
		}
		reader.chunks = frames
	}
	return reader, nil
}

type chunkSource interface {
	next() ([]byte, error)
}

type rawSource struct {
	r   io.Reader
	buf []byte
}

func newRawSource(r io.Reader) *rawSource {
	return &rawSource{r: r, buf: make([]byte, readChunkSize)}
}

func (s *rawSource) next() ([]byte, error) {
	n, err := s.r.Read(s.buf)
	return s.buf[:n], err
}

type jsonReader struct {
	kind    compression.Kind
	chunks  chunkSource
	scanner *decoder.ObjectScanner
	eof     bool
	logger  *zap.Logger
}

func (r *jsonReader) Compression() compression.Kind {
	return r.kind
}

func (r *jsonReader) Next() (model.Batch, error) {
	for {
		object, err := r.scanner.Next()
		if err != nil {
			return model.Batch{}, err
		}
		if object != nil {
			batch, err := decoder.DecodeJSONEnvelope(object)
			if errors.Is(err, decoder.ErrNotAnEnvelope) {
				r.logger.Debug("Discarding payload", zap.Error(err), zap.Int("size", len(object)))
				continue
			}
			return batch, err
		}

		if r.eof {
			if r.scanner.InObject() {
				r.logger.Debug("Stream ended inside an object", zap.Int("pending", r.scanner.Pending()))
			}
			return model.Batch{}, io.EOF
		}
		chunk, err := r.chunks.next()
		_, _ = r.scanner.Write(chunk)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return model.Batch{}, err
			}
			r.eof = true
		}
	}
}
