package decoder

import "errors"

var (
	// ErrNotAnEnvelope marks a payload that is not a message for us. It is
	// discarded and the connection keeps going.
	ErrNotAnEnvelope = errors.New("payload is not an event envelope")
	// ErrDesynchronized means the scanner can no longer find object boundaries,
	// typically an unterminated string running to the end of the stream.
	ErrDesynchronized  = errors.New("json stream desynchronized")
	ErrBadStreamHeader = errors.New("invalid binary stream header")
	ErrMalformedRecord = errors.New("malformed binary record")
	ErrForbiddenType   = errors.New("record type is not allow-listed")
	ErrEmptyAllowList  = errors.New("binary decoder needs at least one allowed type")
)
