package span

import (
	"context"
	"testing"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func newRecordingExporter() (*Exporter, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewExporter(tp, zap.NewNop()), recorder
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func sampleTrace() *model.Span {
	return &model.Span{
		Category: "http", Name: "GET /x",
		Start: model.FromEpochMillis(1000), End: model.FromEpochMillis(1100),
		Tags: map[string]string{"status": "200"},
		Children: []*model.Span{
			{
				Category: "sql", Name: "q1",
				Start: model.FromEpochMillis(1010), End: model.FromEpochMillis(1050),
				Measures: map[string]float64{"rows": 3},
			},
			{
				Category: "sql", Name: "q2",
				Start: model.FromEpochMillis(1050), End: model.FromEpochMillis(1090),
			},
		},
	}
}

func TestExporter_AppendTraces(t *testing.T) {
	t.Run("Ends spans in post-order at their own timestamps", func(t *testing.T) {
		e, recorder := newRecordingExporter()
		require.NoError(t, e.AppendTraces(context.Background(), "shop", "host-1", []*model.Span{sampleTrace()}))

		ended := recorder.Ended()
		require.Len(t, ended, 3)
		assert.Equal(t, "q1", ended[0].Name())
		assert.Equal(t, "q2", ended[1].Name())
		assert.Equal(t, "GET /x", ended[2].Name())
		assert.Equal(t, model.FromEpochMillis(1010), ended[0].StartTime())
		assert.Equal(t, model.FromEpochMillis(1050), ended[0].EndTime())
		assert.Equal(t, model.FromEpochMillis(1100), ended[2].EndTime())
	})

	t.Run("Links children to the root of a new trace", func(t *testing.T) {
		e, recorder := newRecordingExporter()
		require.NoError(t, e.AppendTraces(context.Background(), "shop", "host-1", []*model.Span{sampleTrace()}))

		ended := recorder.Ended()
		root := ended[2]
		assert.False(t, root.Parent().IsValid())
		for _, child := range ended[:2] {
			assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID())
			assert.Equal(t, root.SpanContext().TraceID(), child.SpanContext().TraceID())
		}
	})

	t.Run("Annotates spans with rollups, tags and identity", func(t *testing.T) {
		e, recorder := newRecordingExporter()
		require.NoError(t, e.AppendTraces(context.Background(), "shop", "host-1", []*model.Span{sampleTrace()}))

		ended := recorder.Ended()
		root := attrMap(ended[2].Attributes())
		assert.Equal(t, int64(2), root["sql_count"].AsInt64())
		assert.Equal(t, int64(80), root["sql_duration"].AsInt64())
		assert.Equal(t, "200", root["status"].AsString())
		assert.Equal(t, "http", root[CategoryKey].AsString())
		assert.Equal(t, "http", root[ServiceNamespaceKey].AsString())
		assert.Equal(t, "GET /x", root[ServiceNameKey].AsString())
		assert.Equal(t, "shop", root[AppNameKey].AsString())
		assert.Equal(t, "host-1", root[HostKey].AsString())

		child := attrMap(ended[0].Attributes())
		assert.Equal(t, 3.0, child["rows"].AsFloat64())
		assert.NotContains(t, child, AppNameKey)
	})

	t.Run("Starts a separate trace per root", func(t *testing.T) {
		e, recorder := newRecordingExporter()
		roots := []*model.Span{sampleTrace(), sampleTrace()}
		require.NoError(t, e.AppendTraces(context.Background(), "shop", "host-1", roots))

		ended := recorder.Ended()
		require.Len(t, ended, 6)
		assert.NotEqual(t, ended[2].SpanContext().TraceID(), ended[5].SpanContext().TraceID())
	})
}
