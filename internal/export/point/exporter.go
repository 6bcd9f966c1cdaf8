package point

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/pipeline/flatten"
	"go.uber.org/zap"
)

// Exporter turns traces, health checks and metrics into points and hands
// them to a Writer, one bucket per application.
type Exporter struct {
	writer   Writer
	counters Counters
	logger   *zap.Logger
}

func NewExporter(writer Writer, counters Counters, logger *zap.Logger) *Exporter {
	return &Exporter{
		writer:   writer,
		counters: counters,
		logger:   logger,
	}
}

func (e *Exporter) AppendTraces(ctx context.Context, appName, host string, roots []*model.Span) error {
	var points []Point
	for _, root := range roots {
		for _, record := range flatten.Flatten(root, host) {
			points = append(points, e.tracePoint(record))
		}
	}
	return e.write(ctx, appName, points)
}

func (e *Exporter) AppendHealthChecks(
	ctx context.Context,
	appName, host string,
	checks []model.HealthCheck,
) error {
	points := make([]Point, len(checks))
	for i, check := range checks {
		points[i] = e.healthPoint(host, check)
	}
	return e.write(ctx, appName, points)
}

func (e *Exporter) AppendMetrics(ctx context.Context, appName, host string, metrics []model.Metric) error {
	points := make([]Point, len(metrics))
	for i, metric := range metrics {
		points[i] = e.metricPoint(host, metric)
	}
	return e.write(ctx, appName, points)
}

func (e *Exporter) Flush(ctx context.Context) error {
	return e.writer.Flush(ctx)
}

func (e *Exporter) write(ctx context.Context, bucket string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := e.writer.WritePoints(ctx, bucket, points); err != nil {
		return fmt.Errorf("error writing %d points to bucket %s: %w", len(points), bucket, err)
	}
	e.logger.Debug("Wrote points", zap.String("bucket", bucket), zap.Int("points", len(points)))
	return nil
}

func (e *Exporter) tracePoint(r flatten.Record) Point {
	p := newPoint(r.Category, r.Start.Add(e.counters.Nanos.Next()))
	p.tag("name", r.Name)
	p.tag("location", r.Location)
	p.tag(DataSlotTag, strconv.Itoa(e.counters.Trace.Next()))
	for k, v := range r.Tags {
		p.tag(k, v)
	}

	p.field("duration", r.Duration.Milliseconds())
	p.field("inner_duration", r.InnerDuration.Milliseconds())
	p.field("child_count", int64(r.ChildCount))
	for k, v := range r.CountFields() {
		p.field(k, v)
	}
	for k, v := range r.DurationFields() {
		p.field(k, v)
	}
	for k, v := range r.Measures {
		p.field(k, v)
	}
	for k, v := range r.Metadata {
		p.field(k, v)
	}
	return p
}

func (e *Exporter) healthPoint(host string, check model.HealthCheck) Point {
	p := newPoint(HealthMeasurement, check.CheckInstant.Add(e.counters.Nanos.Next()))
	name := flatten.ProperString(check.Name)
	message := flatten.ProperString(check.Measure.Message)

	p.tag("location", host)
	p.tag("name", name)
	p.tag(DataSlotTag, strconv.Itoa(e.counters.Health.Next()))
	p.tag("checker", check.Checker)
	p.tag("module", check.Module)
	p.tag("feature", check.Feature)
	p.tag("status", strconv.Itoa(int(check.Measure.Status)))

	p.field("location", host)
	p.field("name", name)
	p.field("checker", check.Checker)
	p.field("module", check.Module)
	p.field("feature", check.Feature)
	p.field("status", int64(check.Measure.Status))
	p.field("message", message)
	return p
}

func (e *Exporter) metricPoint(host string, metric model.Metric) Point {
	p := newPoint(MetricMeasurement, metric.MeasureInstant.Add(e.counters.Nanos.Next()))
	name := flatten.ProperString(metric.Name)

	p.tag("location", host)
	p.tag("name", name)
	p.tag(DataSlotTag, strconv.Itoa(e.counters.Metric.Next()))
	p.tag("module", metric.Module)
	p.tag("feature", metric.Feature)

	p.field("location", host)
	p.field("name", name)
	p.field("module", metric.Module)
	p.field("feature", metric.Feature)
	p.field("value", metric.Value)
	return p
}
