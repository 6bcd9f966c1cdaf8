package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type HealthStatus int

const (
	Red HealthStatus = iota
	Yellow
	Green
)

var healthStatusNames = [...]string{"RED", "YELLOW", "GREEN"}

func (s HealthStatus) String() string {
	if s < Red || s > Green {
		return fmt.Sprintf("HealthStatus(%d)", int(s))
	}
	return healthStatusNames[s]
}

func ParseHealthStatus(name string) (HealthStatus, error) {
	for i, n := range healthStatusNames {
		if strings.EqualFold(n, name) {
			return HealthStatus(i), nil
		}
	}
	return Red, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

func (s HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the status name or its ordinal.
func (s *HealthStatus) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		parsed, err := ParseHealthStatus(name)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return err
	}
	if ordinal < int(Red) || ordinal > int(Green) {
		return fmt.Errorf("%w: %d", ErrUnknownStatus, ordinal)
	}
	*s = HealthStatus(ordinal)
	return nil
}

type HealthMeasure struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message"` // null on the wire becomes ""
}

type HealthCheck struct {
	Name         string
	Checker      string
	Module       string
	Feature      string
	CheckInstant time.Time
	Measure      HealthMeasure
}

type healthCheckWire struct {
	Name          string          `json:"name"`
	Checker       string          `json:"checker"`
	Module        string          `json:"module"`
	Feature       string          `json:"feature"`
	CheckInstant  json.RawMessage `json:"checkInstant"`
	Measure       *HealthMeasure  `json:"measure"`
	HealthMeasure *HealthMeasure  `json:"healthMeasure"`
}

type healthCheckCanonical struct {
	Name         string        `json:"name"`
	Checker      string        `json:"checker"`
	Module       string        `json:"module"`
	Feature      string        `json:"feature"`
	CheckInstant int64         `json:"checkInstant"`
	Measure      HealthMeasure `json:"measure"`
}

func (h *HealthCheck) UnmarshalJSON(data []byte) error {
	var wire healthCheckWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Name == "" {
		return fmt.Errorf("%w: health check name", ErrMissingField)
	}
	measure := wire.Measure
	if measure == nil {
		measure = wire.HealthMeasure
	}
	if measure == nil {
		return fmt.Errorf("%w: health check measure", ErrMissingField)
	}
	instant, err := parseInstant(wire.CheckInstant, "checkInstant")
	if err != nil {
		return err
	}
	*h = HealthCheck{
		Name:         wire.Name,
		Checker:      wire.Checker,
		Module:       wire.Module,
		Feature:      wire.Feature,
		CheckInstant: instant,
		Measure:      *measure,
	}
	return nil
}

func (h HealthCheck) MarshalJSON() ([]byte, error) {
	return json.Marshal(healthCheckCanonical{
		Name:         h.Name,
		Checker:      h.Checker,
		Module:       h.Module,
		Feature:      h.Feature,
		CheckInstant: ToEpochMillis(h.CheckInstant),
		Measure:      h.Measure,
	})
}
