// Package dispatch routes decoded batches to the appenders registered for
// their kind.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"go.uber.org/zap"
)

var ErrUnroutableBatch = errors.New("batch kind has no route")

type Dispatcher interface {
	Dispatch(ctx context.Context, batch model.Batch) error
}

type route[A any] struct {
	name     string
	appender A
	reporter *ErrorReporter
}

type DispatcherImpl struct {
	traces          []route[TraceAppender]
	health          []route[HealthAppender]
	metrics         []route[MetricAppender]
	maxLoggedErrors int
	logger          *zap.Logger
}

func NewDispatcherImpl(maxLoggedErrors int, logger *zap.Logger) *DispatcherImpl {
	if maxLoggedErrors <= 0 {
		maxLoggedErrors = DefaultMaxLoggedErrors
	}
	return &DispatcherImpl{
		maxLoggedErrors: maxLoggedErrors,
		logger:          logger,
	}
}

func (d *DispatcherImpl) reporter(name string) *ErrorReporter {
	return NewErrorReporter(name, d.maxLoggedErrors, d.logger)
}

// Registration is not safe for use once dispatching has started.

func (d *DispatcherImpl) AddTraceAppender(name string, a TraceAppender) {
	d.traces = append(d.traces, route[TraceAppender]{name: name, appender: a, reporter: d.reporter(name)})
}

func (d *DispatcherImpl) AddHealthAppender(name string, a HealthAppender) {
	d.health = append(d.health, route[HealthAppender]{name: name, appender: a, reporter: d.reporter(name)})
}

func (d *DispatcherImpl) AddMetricAppender(name string, a MetricAppender) {
	d.metrics = append(d.metrics, route[MetricAppender]{name: name, appender: a, reporter: d.reporter(name)})
}

// Dispatch hands the batch to each appender of its kind in registration
// order. Appender failures are reported and swallowed; only an unknown kind
// is returned as an error.
func (d *DispatcherImpl) Dispatch(ctx context.Context, batch model.Batch) error {
	if batch.Kind == "" && batch.IsEmpty() {
		d.logger.Debug("Dropping empty batch", zap.String("app_name", batch.AppName))
		return nil
	}
	switch batch.Kind {
	case model.KindTrace:
		deliver(ctx, batch, d.traces, func(a TraceAppender) error {
			return a.AppendTraces(ctx, batch.AppName, batch.Host, batch.Spans)
		})
	case model.KindHealth:
		deliver(ctx, batch, d.health, func(a HealthAppender) error {
			return a.AppendHealthChecks(ctx, batch.AppName, batch.Host, batch.HealthChecks)
		})
	case model.KindMetric:
		deliver(ctx, batch, d.metrics, func(a MetricAppender) error {
			return a.AppendMetrics(ctx, batch.AppName, batch.Host, batch.Metrics)
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnroutableBatch, batch.Kind)
	}
	return nil
}

func deliver[A any](ctx context.Context, batch model.Batch, routes []route[A], appendTo func(A) error) {
	for _, r := range routes {
		if err := appendTo(r.appender); err != nil {
			r.reporter.Report(
				err,
				zap.String("kind", string(batch.Kind)),
				zap.String("app_name", batch.AppName),
				zap.Int("events", batch.Len()),
			)
			continue
		}
		if !batch.Bulk {
			continue
		}
		if f, ok := any(r.appender).(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				r.reporter.Report(fmt.Errorf("error flushing after bulk batch: %w", err))
			}
		}
	}
}
