package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/fxamacker/cbor/v2"
)

// StreamHeader opens every binary stream. It is the CBOR self-describe tag.
var StreamHeader = []byte{0xd9, 0xd9, 0xf7}

// Each record is a CBOR tag whose number names its type.
const (
	TagTrace  uint64 = 52001
	TagHealth uint64 = 52002
	TagMetric uint64 = 52003
)

var tagNumbers = map[model.EventKind]uint64{
	model.KindTrace:  TagTrace,
	model.KindHealth: TagHealth,
	model.KindMetric: TagMetric,
}

func TagNumber(kind model.EventKind) uint64 {
	return tagNumbers[kind]
}

var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels: 512,
	}.DecMode()
	if err != nil {
		panic("decoder: CBOR decoder initialization failed: " + err.Error())
	}
}

// ReadStreamHeader consumes and checks the stream header. A stream that closes
// before sending anything returns io.EOF.
func ReadStreamHeader(r io.Reader) error {
	header := make([]byte, len(StreamHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated", ErrBadStreamHeader)
		}
		return fmt.Errorf("error reading stream header: %w", err)
	}
	if !bytes.Equal(header, StreamHeader) {
		return fmt.Errorf("%w: % x", ErrBadStreamHeader, header)
	}
	return nil
}

// BinaryDecoder decodes tagged CBOR records. Only tags in the allow-list given
// at construction are ever decoded.
type BinaryDecoder struct {
	allowed map[uint64]model.EventKind
}

func NewBinaryDecoder(allowed []model.EventKind) (*BinaryDecoder, error) {
	if len(allowed) == 0 {
		return nil, ErrEmptyAllowList
	}
	d := &BinaryDecoder{allowed: make(map[uint64]model.EventKind, len(allowed))}
	for _, kind := range allowed {
		number, ok := tagNumbers[kind]
		if !ok {
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
		}
		d.allowed[number] = kind
	}
	return d, nil
}

// BinaryStream reads consecutive records from one connection or frame.
type BinaryStream struct {
	decoder *BinaryDecoder
	dec     *cbor.Decoder
}

// NewStream starts reading records from r. The stream header must already
// have been consumed.
func (d *BinaryDecoder) NewStream(r io.Reader) *BinaryStream {
	return &BinaryStream{decoder: d, dec: decMode.NewDecoder(r)}
}

// Next returns io.EOF at a clean record boundary. ErrNotAnEnvelope means the
// record was skipped and the stream is still usable.
func (s *BinaryStream) Next() (model.Batch, error) {
	var raw cbor.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Batch{}, io.EOF
		}
		return model.Batch{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return s.decoder.DecodeRecord(raw)
}

// DecodeRecord checks the record tag against the allow-list before decoding
// any of its content.
func (d *BinaryDecoder) DecodeRecord(raw []byte) (model.Batch, error) {
	if len(raw) == 0 || raw[0]>>5 != 6 {
		return model.Batch{}, fmt.Errorf("%w: untagged record", ErrForbiddenType)
	}
	var tag cbor.RawTag
	if err := decMode.Unmarshal(raw, &tag); err != nil {
		return model.Batch{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	kind, ok := d.allowed[tag.Number]
	if !ok {
		return model.Batch{}, fmt.Errorf("%w: tag %d", ErrForbiddenType, tag.Number)
	}

	var content any
	if err := decMode.Unmarshal(tag.Content, &content); err != nil {
		return model.Batch{}, fmt.Errorf("%w: %w", ErrNotAnEnvelope, err)
	}
	asJSON, err := json.Marshal(content)
	if err != nil {
		return model.Batch{}, fmt.Errorf("%w: %w", ErrNotAnEnvelope, err)
	}
	return DecodeEnvelope(kind, asJSON)
}
