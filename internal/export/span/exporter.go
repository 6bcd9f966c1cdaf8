// Package span replays flattened traces as OpenTelemetry spans.
package span

import (
	"context"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/pipeline/flatten"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/Avi18971911/Tally/internal/export/span"

const (
	CategoryKey         = attribute.Key("category")
	ServiceNamespaceKey = attribute.Key("service.namespace")
	ServiceNameKey      = attribute.Key("service.name")
	AppNameKey          = attribute.Key("tally.app.name")
	HostKey             = attribute.Key("tally.host")
)

type Exporter struct {
	tracer trace.Tracer
	logger *zap.Logger
}

func NewExporter(tp trace.TracerProvider, logger *zap.Logger) *Exporter {
	return &Exporter{
		tracer: tp.Tracer(instrumentationName),
		logger: logger,
	}
}

func (e *Exporter) AppendTraces(ctx context.Context, appName, host string, roots []*model.Span) error {
	for _, root := range roots {
		v := &replay{ctx: ctx, tracer: e.tracer, appName: appName, host: host}
		flatten.Walk(root, host, v)
	}
	e.logger.Debug("Replayed traces", zap.String("app_name", appName), zap.Int("traces", len(roots)))
	return nil
}

type open struct {
	ctx  context.Context
	span trace.Span
}

// replay opens a span on the way down and ends it on the way up, so spans
// end in the same post-order the flattener emits records.
type replay struct {
	ctx     context.Context
	tracer  trace.Tracer
	appName string
	host    string
	stack   []open
}

func (r *replay) Enter(s *model.Span) {
	opts := []trace.SpanStartOption{trace.WithTimestamp(s.Start)}
	parent := r.ctx
	if len(r.stack) == 0 {
		opts = append(opts, trace.WithNewRoot())
	} else {
		parent = r.stack[len(r.stack)-1].ctx
	}
	ctx, otelSpan := r.tracer.Start(parent, s.Name, opts...)
	r.stack = append(r.stack, open{ctx: ctx, span: otelSpan})
}

func (r *replay) Leave(s *model.Span, record flatten.Record) {
	top := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]

	top.span.SetAttributes(attributes(record)...)
	if len(r.stack) == 0 {
		top.span.SetAttributes(AppNameKey.String(r.appName), HostKey.String(r.host))
	}
	top.span.End(trace.WithTimestamp(s.End))
}

func attributes(r flatten.Record) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3+len(r.Measures)+len(r.Metadata)+len(r.Tags)+2*len(r.Counts))
	for k, v := range r.Measures {
		attrs = append(attrs, attribute.Float64(k, v))
	}
	for k, v := range r.Metadata {
		attrs = append(attrs, attribute.String(k, v))
	}
	for k, v := range r.Tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	for k, v := range r.CountFields() {
		attrs = append(attrs, attribute.Int64(k, v))
	}
	for k, v := range r.DurationFields() {
		attrs = append(attrs, attribute.Int64(k, v))
	}
	return append(attrs,
		CategoryKey.String(r.Category),
		ServiceNamespaceKey.String(r.Category),
		ServiceNameKey.String(r.Name),
	)
}
