package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/Avi18971911/Tally/internal/ingest/decoder"
	"go.uber.org/zap"
)

// BinaryProtocol reads tagged CBOR records. An uncompressed or LZF stream
// starts with the stream header; gzip frames carry bare records and get the
// header put back in front before decoding.
type BinaryProtocol struct {
	decoder           *decoder.BinaryDecoder
	detectCompression bool
	frameLimit        int64
	logger            *zap.Logger
}

func NewBinaryProtocol(
	binaryDecoder *decoder.BinaryDecoder,
	detectCompression bool,
	frameLimit int64,
	logger *zap.Logger,
) *BinaryProtocol {
	return &BinaryProtocol{
		decoder:           binaryDecoder,
		detectCompression: detectCompression,
		frameLimit:        frameLimit,
		logger:            logger,
	}
}

func (p *BinaryProtocol) Name() string {
	return "binary"
}

func (p *BinaryProtocol) Open(r *bufio.Reader) (EventReader, error) {
	kind := compression.None
	if p.detectCompression {
		var err error
		if kind, err = compression.Detect(r); err != nil {
			return nil, err
		}
	}

	reader := &binaryReader{kind: kind, decoder: p.decoder, logger: p.logger}
	switch kind {
	case compression.None, compression.LZF:
		var stream io.Reader = r
		if kind == compression.LZF {
			stream = compression.NewLZFReader(r)
		}
		if err := decoder.ReadStreamHeader(stream); err != nil {
			return nil, err
		}
		reader.records = p.decoder.NewStream(stream)
	default:
		frames, err := newFrameSource(kind, r, p.frameLimit)
		if err != nil {
			return nil, err
		}
		reader.frames = frames
	}
	return reader, nil
}

type binaryReader struct {
	kind    compression.Kind
	decoder *decoder.BinaryDecoder
	frames  *frameSource
	records *decoder.BinaryStream
	logger  *zap.Logger
}

func (r *binaryReader) Compression() compression.Kind {
	return r.kind
}

func (r *binaryReader) Next() (model.Batch, error) {
	for {
		if r.records == nil {
			if err := r.openFrame(); err != nil {
				return model.Batch{}, err
			}
		}
		batch, err := r.records.Next()
		switch {
		case err == nil:
			return batch, nil
		case errors.Is(err, decoder.ErrNotAnEnvelope):
			r.logger.Debug("Discarding record", zap.Error(err))
		case errors.Is(err, io.EOF) && r.frames != nil:
			r.records = nil
		default:
			return model.Batch{}, err
		}
	}
}

func (r *binaryReader) openFrame() error {
	frame, err := r.frames.next()
	if err != nil {
		return err
	}
	stream := io.MultiReader(bytes.NewReader(decoder.StreamHeader), bytes.NewReader(frame))
	if err := decoder.ReadStreamHeader(stream); err != nil {
		return err
	}
	r.records = r.decoder.NewStream(stream)
	return nil
}
