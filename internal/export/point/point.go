// Package point maps telemetry events onto time-series points.
package point

import (
	"context"
	"time"
)

const (
	HealthMeasurement = "healthcheck"
	MetricMeasurement = "metric"

	DataSlotTag = "dataSlot"
)

type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Writer stores points in a bucket named after the emitting application.
type Writer interface {
	WritePoints(ctx context.Context, bucket string, points []Point) error
	Flush(ctx context.Context) error
}

func newPoint(measurement string, at time.Time) Point {
	return Point{
		Measurement: measurement,
		Tags:        make(map[string]string),
		Fields:      make(map[string]any),
		Time:        at,
	}
}

// tag drops empty keys and values, which the stores reject.
func (p Point) tag(key, value string) {
	if key == "" || value == "" {
		return
	}
	p.Tags[key] = value
}

func (p Point) field(key string, value any) {
	if key == "" {
		return
	}
	p.Fields[key] = value
}
