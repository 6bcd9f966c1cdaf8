package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FromEpochMillis returns the UTC instant for a millisecond epoch timestamp.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToEpochMillis is the inverse of FromEpochMillis.
func ToEpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// parseInstant accepts either epoch milliseconds or an RFC 3339 string.
func parseInstant(raw json.RawMessage, field string) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}, fmt.Errorf("error decoding %s: %w", field, err)
		}
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return time.Time{}, fmt.Errorf("error parsing %s: %w", field, err)
		}
		return t.UTC(), nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return time.Time{}, fmt.Errorf("error decoding %s: %w", field, err)
	}
	if ms, err := number.Int64(); err == nil {
		return FromEpochMillis(ms), nil
	}
	f, err := number.Float64()
	if err != nil {
		return time.Time{}, fmt.Errorf("error decoding %s: %w", field, err)
	}
	return FromEpochMillis(int64(f)), nil
}
