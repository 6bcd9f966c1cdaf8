package server

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	common "go.opentelemetry.io/proto/otlp/common/v1"
	resource "go.opentelemetry.io/proto/otlp/resource/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type collectingDispatcher struct {
	mu      sync.Mutex
	batches []model.Batch
}

func (c *collectingDispatcher) Dispatch(_ context.Context, batch model.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
	return nil
}

func stringAttr(key, value string) *common.KeyValue {
	return &common.KeyValue{Key: key, Value: &common.AnyValue{Value: &common.AnyValue_StringValue{StringValue: value}}}
}

func intAttr(key string, value int64) *common.KeyValue {
	return &common.KeyValue{Key: key, Value: &common.AnyValue{Value: &common.AnyValue_IntValue{IntValue: value}}}
}

func otlpSpan(traceID, spanID, parentID byte, name string, startMs, endMs uint64, attrs ...*common.KeyValue) *v1.Span {
	span := &v1.Span{
		TraceId:           []byte{traceID, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		SpanId:            []byte{spanID, 0, 0, 0, 0, 0, 0, 1},
		Name:              name,
		Kind:              v1.Span_SPAN_KIND_SERVER,
		StartTimeUnixNano: startMs * 1e6,
		EndTimeUnixNano:   endMs * 1e6,
		Attributes:        attrs,
	}
	if parentID != 0 {
		span.ParentSpanId = []byte{parentID, 0, 0, 0, 0, 0, 0, 1}
	}
	return span
}

func startBridge(t *testing.T, d *collectingDispatcher) protoTrace.TraceServiceClient {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	protoTrace.RegisterTraceServiceServer(srv, NewTraceServiceServerImpl(d, zap.NewNop()))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return protoTrace.NewTraceServiceClient(conn)
}

func TestTraceServiceServerImpl_Export(t *testing.T) {
	t.Run("Dispatches one rebuilt trace per trace id", func(t *testing.T) {
		d := &collectingDispatcher{}
		client := startBridge(t, d)

		req := &protoTrace.ExportTraceServiceRequest{
			ResourceSpans: []*v1.ResourceSpans{{
				Resource: &resource.Resource{Attributes: []*common.KeyValue{
					stringAttr("service.name", "shop"),
					stringAttr("host.name", "host-1"),
				}},
				ScopeSpans: []*v1.ScopeSpans{{
					Spans: []*v1.Span{
						otlpSpan(1, 2, 1, "select", 1010, 1050, stringAttr("category", "sql"), intAttr("rows", 3)),
						otlpSpan(1, 1, 0, "GET /x", 1000, 1100, stringAttr("http.method", "GET")),
						otlpSpan(2, 9, 0, "other", 2000, 2001),
					},
				}},
			}},
		}
		_, err := client.Export(context.Background(), req)
		require.NoError(t, err)

		require.Len(t, d.batches, 2)
		batch := d.batches[0]
		assert.Equal(t, model.KindTrace, batch.Kind)
		assert.Equal(t, "shop", batch.AppName)
		assert.Equal(t, "host-1", batch.Host)
		require.Len(t, batch.Spans, 1)

		root := batch.Spans[0]
		assert.Equal(t, "GET /x", root.Name)
		assert.Equal(t, "server", root.Category)
		assert.Equal(t, map[string]string{"http.method": "GET"}, root.Tags)
		assert.Equal(t, model.FromEpochMillis(1000), root.Start)
		require.Len(t, root.Children, 1)
		child := root.Children[0]
		assert.Equal(t, "sql", child.Category)
		assert.Equal(t, map[string]float64{"rows": 3}, child.Measures)
		assert.NotContains(t, child.Tags, "category")
	})

	t.Run("Falls back to an unknown service name", func(t *testing.T) {
		d := &collectingDispatcher{}
		client := startBridge(t, d)
		req := &protoTrace.ExportTraceServiceRequest{
			ResourceSpans: []*v1.ResourceSpans{{
				ScopeSpans: []*v1.ScopeSpans{{Spans: []*v1.Span{otlpSpan(1, 1, 0, "job", 0, 1)}}},
			}},
		}
		_, err := client.Export(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, d.batches, 1)
		assert.Equal(t, unknownService, d.batches[0].AppName)
	})
}

func TestConstructForest(t *testing.T) {
	t.Run("Treats spans with a missing parent as roots", func(t *testing.T) {
		roots := ConstructForest([]*v1.Span{
			otlpSpan(1, 3, 7, "orphan", 20, 30),
			otlpSpan(1, 1, 0, "root", 0, 100),
			otlpSpan(1, 2, 1, "late child", 50, 60),
			otlpSpan(1, 4, 1, "early child", 10, 20),
		})
		require.Len(t, roots, 2)
		assert.Equal(t, "root", roots[0].Name)
		assert.Equal(t, "orphan", roots[1].Name)
		require.Len(t, roots[0].Children, 2)
		assert.Equal(t, "early child", roots[0].Children[0].Name)
		assert.Equal(t, "late child", roots[0].Children[1].Name)
	})

	t.Run("Keeps spans whose parents form a cycle", func(t *testing.T) {
		roots := ConstructForest([]*v1.Span{
			otlpSpan(1, 1, 2, "a", 0, 100),
			otlpSpan(1, 2, 1, "b", 10, 20),
			otlpSpan(1, 3, 2, "c", 12, 18),
		})
		require.Len(t, roots, 1)
		assert.Equal(t, "a", roots[0].Name)
		require.Len(t, roots[0].Children, 1)
		assert.Equal(t, "b", roots[0].Children[0].Name)
		require.Len(t, roots[0].Children[0].Children, 1)
		assert.Equal(t, "c", roots[0].Children[0].Children[0].Name)
	})

	t.Run("Treats a self parented span as a root", func(t *testing.T) {
		roots := ConstructForest([]*v1.Span{otlpSpan(1, 5, 5, "loop", 0, 10)})
		require.Len(t, roots, 1)
		assert.Equal(t, "loop", roots[0].Name)
	})
}
