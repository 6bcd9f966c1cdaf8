package framing

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func TestDelimitedReader_Next(t *testing.T) {
	start := []byte("<<")
	end := []byte(">>")

	t.Run("Returns each frame with its markers", func(t *testing.T) {
		stream := []byte("<<one>><<two>><<three>>")
		reader := NewDelimitedReader(bufio.NewReader(bytes.NewReader(stream)), start, end)

		frame, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, "<<one>>", string(frame))

		frame, err = reader.Next()
		require.NoError(t, err)
		assert.Equal(t, "<<two>>", string(frame))

		frame, err = reader.Next()
		assert.ErrorIs(t, err, ErrEndedMidFrame)
		assert.Equal(t, "<<three>>", string(frame))

		_, err = reader.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Keeps partial delimiter matches inside the body", func(t *testing.T) {
		stream := []byte("<<a>b>><c>>><<d>>")
		reader := NewDelimitedReader(bufio.NewReader(bytes.NewReader(stream)), start, end)

		frame, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, "<<a>b>><c>>>", string(frame))

		frame, err = reader.Next()
		assert.ErrorIs(t, err, ErrEndedMidFrame)
		assert.Equal(t, "<<d>>", string(frame))
	})

	t.Run("Resynchronizes on a self overlapping delimiter", func(t *testing.T) {
		// delimiter is "aab" + "aaa"; the body ends in a run of a's
		reader := NewDelimitedReader(bytes.NewReader([]byte("aaaxaaaabaaayaab")), []byte("aaa"), []byte("aab"))

		frame, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, "aaaxaaaab", string(frame))

		frame, err = reader.Next()
		assert.ErrorIs(t, err, ErrEndedMidFrame)
		assert.Equal(t, "aaayaab", string(frame))
	})

	t.Run("Returns independent copies", func(t *testing.T) {
		reader := NewDelimitedReader(bytes.NewReader([]byte("<<x>><<y>>")), start, end)
		first, err := reader.Next()
		require.NoError(t, err)
		_, _ = reader.Next()
		assert.Equal(t, "<<x>>", string(first))
	})

	t.Run("Returns error if the start marker is missing", func(t *testing.T) {
		reader := NewDelimitedReader(bytes.NewReader([]byte("xxone>>")), start, end)
		_, err := reader.Next()
		assert.ErrorIs(t, err, ErrCorruptedStream)
	})

	t.Run("Returns EOF for an empty stream", func(t *testing.T) {
		reader := NewDelimitedReader(bytes.NewReader(nil), start, end)
		_, err := reader.Next()
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestLengthPrefixedReader_Next(t *testing.T) {
	magic := []byte{0xf1, 0xb8}

	t.Run("Returns each payload", func(t *testing.T) {
		stream := concat(magic, []byte{0, 0, 3}, []byte("abc"), magic, []byte{0, 0, 1}, []byte("z"))
		reader := NewLengthPrefixedReader(bytes.NewReader(stream), magic, 3)

		frame, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, "abc", string(frame))

		frame, err = reader.Next()
		require.NoError(t, err)
		assert.Equal(t, "z", string(frame))

		_, err = reader.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Returns error for a zero length", func(t *testing.T) {
		reader := NewLengthPrefixedReader(bytes.NewReader(concat(magic, []byte{0, 0, 0})), magic, 3)
		_, err := reader.Next()
		assert.ErrorIs(t, err, ErrCorruptedStream)
	})

	t.Run("Returns error for the all ones sentinel", func(t *testing.T) {
		reader := NewLengthPrefixedReader(bytes.NewReader(concat(magic, []byte{0xff, 0xff, 0xff})), magic, 3)
		_, err := reader.Next()
		assert.ErrorIs(t, err, ErrCorruptedStream)
	})

	t.Run("Returns error for a bad marker", func(t *testing.T) {
		reader := NewLengthPrefixedReader(bytes.NewReader([]byte{0xf1, 0x00, 0, 0, 1, 'a'}), magic, 3)
		_, err := reader.Next()
		assert.ErrorIs(t, err, ErrCorruptedStream)
	})

	t.Run("Returns ended mid frame for a short payload", func(t *testing.T) {
		reader := NewLengthPrefixedReader(bytes.NewReader(concat(magic, []byte{0, 0, 9}, []byte("abc"))), magic, 3)
		_, err := reader.Next()
		assert.ErrorIs(t, err, ErrEndedMidFrame)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestForKind(t *testing.T) {
	t.Run("Returns error for uncompressed streams", func(t *testing.T) {
		_, err := ForKind(compression.None, bufio.NewReader(bytes.NewReader(nil)))
		assert.Error(t, err)
	})

	t.Run("Selects length prefixed framing", func(t *testing.T) {
		reader, err := ForKind(compression.GzipWithLengthPrefix, bufio.NewReader(bytes.NewReader(nil)))
		require.NoError(t, err)
		assert.IsType(t, &LengthPrefixedReader{}, reader)
	})
}
