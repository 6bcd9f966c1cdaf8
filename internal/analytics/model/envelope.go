package model

import "fmt"

type EventKind string

const (
	KindTrace  EventKind = "trace"
	KindHealth EventKind = "health"
	KindMetric EventKind = "metric"
)

var AllKinds = []EventKind{KindTrace, KindHealth, KindMetric}

func ParseEventKind(name string) (EventKind, error) {
	for _, kind := range AllKinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Envelope is the unit carried on the wire: one event or a batch of events of
// a single kind, routed by application name and host.
type Envelope[T any] struct {
	AppName string `json:"appName"`
	Host    string `json:"host"`
	Event   *T     `json:"event"`
	Events  []T    `json:"events"`
}

func (e Envelope[T]) Validate() error {
	if (e.Event == nil) == (e.Events == nil) {
		return ErrAmbiguousPayload
	}
	return nil
}

func (e Envelope[T]) IsBulk() bool {
	return e.Events != nil
}

func (e Envelope[T]) All() []T {
	if e.Event != nil {
		return []T{*e.Event}
	}
	return e.Events
}

// Batch is the kind-tagged form of a decoded envelope handed to the export path.
type Batch struct {
	Kind         EventKind
	AppName      string
	Host         string
	Spans        []*Span
	HealthChecks []HealthCheck
	Metrics      []Metric
	Bulk         bool
}

func (b Batch) Len() int {
	switch b.Kind {
	case KindTrace:
		return len(b.Spans)
	case KindHealth:
		return len(b.HealthChecks)
	case KindMetric:
		return len(b.Metrics)
	}
	return 0
}

// IsEmpty reports whether the batch carries no events. An envelope whose
// events array is empty decodes to an empty batch without a kind.
func (b Batch) IsEmpty() bool {
	return len(b.Spans) == 0 && len(b.HealthChecks) == 0 && len(b.Metrics) == 0
}

func TraceBatch(e Envelope[Span]) Batch {
	all := e.All()
	spans := make([]*Span, len(all))
	for i := range all {
		spans[i] = &all[i]
	}
	return Batch{Kind: KindTrace, AppName: e.AppName, Host: e.Host, Spans: spans, Bulk: e.IsBulk()}
}

func HealthBatch(e Envelope[HealthCheck]) Batch {
	return Batch{Kind: KindHealth, AppName: e.AppName, Host: e.Host, HealthChecks: e.All(), Bulk: e.IsBulk()}
}

func MetricBatch(e Envelope[Metric]) Batch {
	return Batch{Kind: KindMetric, AppName: e.AppName, Host: e.Host, Metrics: e.All(), Bulk: e.IsBulk()}
}
