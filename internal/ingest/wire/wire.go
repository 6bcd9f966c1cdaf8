// Package wire produces the byte streams the collector accepts. It is the
// client half of the ingest path.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/Avi18971911/Tally/internal/ingest/decoder"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

const (
	maxLengthPrefixed = 1<<24 - 2
	maxLZFChunk       = 1<<16 - 1
)

var ErrPayloadTooLarge = errors.New("payload too large for a length prefixed frame")

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
}

func EncodeJSON(envelope any) ([]byte, error) {
	return json.Marshal(envelope)
}

// EncodeBinaryRecord encodes an envelope as one tagged CBOR record. The
// content uses the same field names as the JSON encoding.
func EncodeBinaryRecord(kind model.EventKind, envelope any) ([]byte, error) {
	number := decoder.TagNumber(kind)
	if number == 0 {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
	}
	asJSON, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("error encoding envelope: %w", err)
	}
	var content map[string]any
	if err := json.Unmarshal(asJSON, &content); err != nil {
		return nil, fmt.Errorf("error converting envelope: %w", err)
	}
	return encMode.Marshal(cbor.Tag{Number: number, Content: content})
}

// GzipFrame compresses payload into one gzip member.
func GzipFrame(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("error writing gzip frame: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("error closing gzip frame: %w", err)
	}
	return buf.Bytes(), nil
}

// LengthPrefixedFrame writes the F1 B8 marker, a 3 byte length and a raw
// deflate block.
func LengthPrefixedFrame(payload []byte) ([]byte, error) {
	var body bytes.Buffer
	fw, err := flate.NewWriter(&body, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("error creating deflate writer: %w", err)
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, fmt.Errorf("error writing deflate block: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("error closing deflate block: %w", err)
	}
	if body.Len() > maxLengthPrefixed {
		return nil, ErrPayloadTooLarge
	}

	frame := make([]byte, 0, len(compression.LengthPrefixMagic)+3+body.Len())
	frame = append(frame, compression.LengthPrefixMagic...)
	frame = append(frame, byte(body.Len()>>16), byte(body.Len()>>8), byte(body.Len()))
	return append(frame, body.Bytes()...), nil
}

// LZFChunks wraps payload in uncompressed LZF chunks.
func LZFChunks(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+5*(len(payload)/maxLZFChunk+1))
	for len(payload) > 0 {
		n := min(len(payload), maxLZFChunk)
		out = append(out, compression.LZFMagic...)
		out = append(out, 0)
		out = binary.BigEndian.AppendUint16(out, uint16(n))
		out = append(out, payload[:n]...)
		payload = payload[n:]
	}
	return out
}
