package compression

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name   string
		prefix []byte
		want   Kind
	}{
		{"Returns length prefixed gzip for F1 B8", []byte{0xf1, 0xb8, 0x00}, GzipWithLengthPrefix},
		{"Returns gzip for the gzip magic", []byte{0x1f, 0x8b, 0x08}, Gzip},
		{"Returns lzf for ZV", []byte("ZV\x00"), LZF},
		{"Returns none for anything else", []byte(`{"appName"`), None},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(bytes.NewReader(tc.prefix))
			kind, err := Detect(r)
			require.NoError(t, err)
			assert.Equal(t, tc.want, kind)

			replay, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tc.prefix, replay, "signature bytes must not be consumed")
		})
	}

	t.Run("Returns error if only one byte arrives", func(t *testing.T) {
		_, err := Detect(bufio.NewReader(bytes.NewReader([]byte{0xf1})))
		assert.ErrorIs(t, err, ErrTruncatedSignature)
		assert.NotErrorIs(t, err, io.EOF)
	})

	t.Run("Returns a truncation error that is also EOF for an empty stream", func(t *testing.T) {
		_, err := Detect(bufio.NewReader(bytes.NewReader(nil)))
		assert.ErrorIs(t, err, ErrTruncatedSignature)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestGzipHeader(t *testing.T) {
	t.Run("Matches the header of a default gzip writer", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte("hello"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		assert.Equal(t, GzipHeader, buf.Bytes()[:len(GzipHeader)])
	})
}

func TestDecompress(t *testing.T) {
	payload := []byte(strings.Repeat(`{"appName":"a"}`, 20))

	t.Run("Inflates a gzip frame", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write(payload)
		require.NoError(t, zw.Close())

		out, err := Decompress(Gzip, buf.Bytes(), 0)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	})

	t.Run("Inflates a raw deflate frame", func(t *testing.T) {
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		_, _ = fw.Write(payload)
		require.NoError(t, fw.Close())

		out, err := Decompress(GzipWithLengthPrefix, buf.Bytes(), 0)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	})

	t.Run("Returns error if the frame inflates past the limit", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write(payload)
		require.NoError(t, zw.Close())

		_, err := Decompress(Gzip, buf.Bytes(), 10)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("Passes uncompressed frames through", func(t *testing.T) {
		out, err := Decompress(None, payload, 0)
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	})
}

func TestLZFReader(t *testing.T) {
	t.Run("Decodes stored and compressed chunks", func(t *testing.T) {
		stream := []byte{'Z', 'V', 0, 0, 3, 'x', 'y', 'z'}
		stream = append(stream, 'Z', 'V', 1, 0, 6, 0, 9, 0x02, 'a', 'b', 'c', 0x80, 0x02)

		out, err := io.ReadAll(NewLZFReader(bytes.NewReader(stream)))
		require.NoError(t, err)
		assert.Equal(t, "xyzabcabcabc", string(out))
	})

	t.Run("Decodes a long back reference", func(t *testing.T) {
		// literal "ab" then copy 7+3+2 = 12 bytes from offset 2
		chunk := []byte{0x01, 'a', 'b', 0xe0, 0x03, 0x01}
		stream := append([]byte{'Z', 'V', 1, 0, byte(len(chunk)), 0, 14}, chunk...)

		out, err := io.ReadAll(NewLZFReader(bytes.NewReader(stream)))
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("ab", 7), string(out))
	})

	t.Run("Returns error for an unknown chunk type", func(t *testing.T) {
		_, err := io.ReadAll(NewLZFReader(bytes.NewReader([]byte{'Z', 'V', 7, 0, 0})))
		assert.ErrorIs(t, err, ErrCorruptLZF)
	})

	t.Run("Returns error for a reference before the start of output", func(t *testing.T) {
		stream := []byte{'Z', 'V', 1, 0, 2, 0, 3, 0x20, 0x05}
		_, err := io.ReadAll(NewLZFReader(bytes.NewReader(stream)))
		assert.ErrorIs(t, err, ErrCorruptLZF)
	})
}

func TestParseKind(t *testing.T) {
	t.Run("Round trips every kind name", func(t *testing.T) {
		for _, kind := range AllKinds {
			parsed, err := ParseKind(kind.String())
			require.NoError(t, err)
			assert.Equal(t, kind, parsed)
		}
	})

	t.Run("Returns error for an unknown name", func(t *testing.T) {
		_, err := ParseKind("zstd")
		assert.ErrorIs(t, err, ErrUnsupportedKind)
	})
}
