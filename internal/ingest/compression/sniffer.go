// Package compression classifies a byte stream by its leading signature and
// decompresses the frames that follow.
package compression

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

type Kind int

const (
	None Kind = iota
	Gzip
	GzipWithLengthPrefix
	LZF
)

func (k Kind) String() string {
	switch k {
	case Gzip:
		return "gzip"
	case GzipWithLengthPrefix:
		return "gzip_with_length_prefix"
	case LZF:
		return "lzf"
	default:
		return "none"
	}
}

var AllKinds = []Kind{None, Gzip, GzipWithLengthPrefix, LZF}

func ParseKind(name string) (Kind, error) {
	for _, kind := range AllKinds {
		if kind.String() == name {
			return kind, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
}

var (
	LengthPrefixMagic = []byte{0xf1, 0xb8}
	GzipMagic         = []byte{0x1f, 0x8b}
	LZFMagic          = []byte{'Z', 'V'}

	// GzipHeader is the member header written by a default gzip writer with no
	// name, comment or modification time. Delimited gzip framing starts here.
	GzipHeader = []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff}
)

var (
	ErrTruncatedSignature = errors.New("stream ended before its 2 byte signature")
	ErrFrameTooLarge      = errors.New("decompressed frame exceeds limit")
	ErrCorruptLZF         = errors.New("corrupt lzf chunk")
	ErrUnsupportedKind    = errors.New("unsupported compression kind")
)

// Detect peeks at the first two bytes of r without consuming them.
func Detect(r *bufio.Reader) (Kind, error) {
	signature, err := r.Peek(2)
	if len(signature) < 2 {
		if len(signature) == 0 && errors.Is(err, io.EOF) {
			return None, fmt.Errorf("%w: %w", ErrTruncatedSignature, io.EOF)
		}
		if err == nil || errors.Is(err, io.EOF) {
			return None, ErrTruncatedSignature
		}
		return None, fmt.Errorf("error reading stream signature: %w", err)
	}
	return Classify(signature), nil
}

// Classify applies the signature rules to a 2 byte prefix.
func Classify(signature []byte) Kind {
	switch {
	case hasPrefix(signature, LengthPrefixMagic):
		return GzipWithLengthPrefix
	case hasPrefix(signature, GzipMagic):
		return Gzip
	case hasPrefix(signature, LZFMagic):
		return LZF
	default:
		return None
	}
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && b[0] == prefix[0] && b[1] == prefix[1]
}
