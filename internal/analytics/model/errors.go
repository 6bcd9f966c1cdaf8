package model

import "errors"

var (
	ErrMissingField     = errors.New("required field is missing")
	ErrAmbiguousPayload = errors.New("envelope must carry exactly one of event or events")
	ErrUnknownKind      = errors.New("unknown event kind")
	ErrUnknownStatus    = errors.New("unknown health status")
)
