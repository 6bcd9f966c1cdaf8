package dispatch

import (
	"context"

	"github.com/Avi18971911/Tally/internal/analytics/model"
)

type TraceAppender interface {
	AppendTraces(ctx context.Context, appName, host string, roots []*model.Span) error
}

type HealthAppender interface {
	AppendHealthChecks(ctx context.Context, appName, host string, checks []model.HealthCheck) error
}

type MetricAppender interface {
	AppendMetrics(ctx context.Context, appName, host string, metrics []model.Metric) error
}

// Flusher is implemented by appenders that buffer. Flush is called after
// every bulk batch routed to them.
type Flusher interface {
	Flush(ctx context.Context) error
}
