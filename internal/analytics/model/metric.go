package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Metric struct {
	Name           string
	Module         string // optional
	Feature        string
	Value          float64
	MeasureInstant time.Time
}

type metricWire struct {
	Name           string          `json:"name"`
	Module         *string         `json:"module"`
	Feature        string          `json:"feature"`
	Value          *float64        `json:"value"`
	MeasureInstant json.RawMessage `json:"measureInstant"`
}

type metricCanonical struct {
	Name           string  `json:"name"`
	Module         string  `json:"module"`
	Feature        string  `json:"feature"`
	Value          float64 `json:"value"`
	MeasureInstant int64   `json:"measureInstant"`
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var wire metricWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Name == "" {
		return fmt.Errorf("%w: metric name", ErrMissingField)
	}
	if wire.Value == nil {
		return fmt.Errorf("%w: metric value", ErrMissingField)
	}
	instant, err := parseInstant(wire.MeasureInstant, "measureInstant")
	if err != nil {
		return err
	}
	module := ""
	if wire.Module != nil {
		module = *wire.Module
	}
	*m = Metric{
		Name:           wire.Name,
		Module:         module,
		Feature:        wire.Feature,
		Value:          *wire.Value,
		MeasureInstant: instant,
	}
	return nil
}

func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricCanonical{
		Name:           m.Name,
		Module:         m.Module,
		Feature:        m.Feature,
		Value:          m.Value,
		MeasureInstant: ToEpochMillis(m.MeasureInstant),
	})
}
