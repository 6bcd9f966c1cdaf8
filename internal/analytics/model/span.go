package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Span is one timed, categorized unit of work. Children are kept in call order.
type Span struct {
	Category string
	Name     string
	Start    time.Time
	End      time.Time
	Measures map[string]float64
	Tags     map[string]string
	Metadata map[string]string
	Children []*Span
}

func (s *Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// spanWire accepts both the current shape and the older one that used
// subProcesses and metadatas.
type spanWire struct {
	Category     string             `json:"category"`
	Name         string             `json:"name"`
	Start        json.RawMessage    `json:"start"`
	End          json.RawMessage    `json:"end"`
	Measures     map[string]float64 `json:"measures"`
	Tags         map[string]string  `json:"tags"`
	Metadata     map[string]string  `json:"metadata"`
	Metadatas    map[string]string  `json:"metadatas"`
	ChildSpans   []*Span            `json:"childSpans"`
	SubProcesses []*Span            `json:"subProcesses"`
}

type spanCanonical struct {
	Category   string             `json:"category"`
	Name       string             `json:"name"`
	Start      int64              `json:"start"`
	End        int64              `json:"end"`
	Measures   map[string]float64 `json:"measures"`
	Tags       map[string]string  `json:"tags"`
	Metadata   map[string]string  `json:"metadata"`
	ChildSpans []*Span            `json:"childSpans"`
}

func (s *Span) UnmarshalJSON(data []byte) error {
	var wire spanWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Category == "" {
		return fmt.Errorf("%w: span category", ErrMissingField)
	}
	if wire.Name == "" {
		return fmt.Errorf("%w: span name", ErrMissingField)
	}
	start, err := parseInstant(wire.Start, "span start")
	if err != nil {
		return err
	}
	end, err := parseInstant(wire.End, "span end")
	if err != nil {
		return err
	}

	children := wire.ChildSpans
	if children == nil {
		children = wire.SubProcesses
	}
	metadata := wire.Metadata
	if metadata == nil {
		metadata = wire.Metadatas
	}

	*s = Span{
		Category: wire.Category,
		Name:     wire.Name,
		Start:    start,
		End:      end,
		Measures: orEmpty(wire.Measures),
		Tags:     orEmpty(wire.Tags),
		Metadata: orEmpty(metadata),
		Children: children,
	}
	return nil
}

func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal(spanCanonical{
		Category:   s.Category,
		Name:       s.Name,
		Start:      ToEpochMillis(s.Start),
		End:        ToEpochMillis(s.End),
		Measures:   orEmpty(s.Measures),
		Tags:       orEmpty(s.Tags),
		Metadata:   orEmpty(s.Metadata),
		ChildSpans: s.Children,
	})
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}
