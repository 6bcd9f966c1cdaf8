//go:build integration

package elasticsearch

import (
	"context"
	"testing"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/db/cache"
	"github.com/Avi18971911/Tally/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/Tally/internal/db/elasticsearch/client"
	"github.com/Avi18971911/Tally/internal/db/elasticsearch/writer"
	"github.com/Avi18971911/Tally/internal/export/point"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPointExporter(t *testing.T, logger *zap.Logger) *point.Exporter {
	ac := client.NewTallyClientImpl(es, client.Immediate)
	known, err := cache.NewKnownSet(100, logger)
	require.NoError(t, err)
	t.Cleanup(known.Close)
	pw := writer.NewPointWriter(ac, bootstrapper.NewBootstrapper(ac, logger), known, "tally", 50, logger)
	return point.NewExporter(pw, point.NewCounters(4), logger)
}

func TestPointPipeline(t *testing.T) {
	if es == nil {
		t.Fatal("es is uninitialized or otherwise nil")
	}
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Stores one document per span with rollups", func(t *testing.T) {
		const app = "Shop Front"
		index := writer.IndexName("tally", app)
		require.NoError(t, deleteIndex(es, index))

		exporter := newPointExporter(t, logger)
		root := &model.Span{
			Category: "http",
			Name:     "GET /orders",
			Start:    start,
			End:      start.Add(100 * time.Millisecond),
			Tags:     map[string]string{"status": "200"},
			Children: []*model.Span{
				{Category: "sql", Name: "select orders", Start: start.Add(10 * time.Millisecond), End: start.Add(50 * time.Millisecond)},
				{Category: "sql", Name: "select items", Start: start.Add(50 * time.Millisecond), End: start.Add(90 * time.Millisecond)},
			},
		}
		require.NoError(t, exporter.AppendTraces(ctx, app, "web-1", []*model.Span{root}))
		require.NoError(t, exporter.Flush(ctx))

		httpDocs, err := searchMeasurement(es, index, "http")
		require.NoError(t, err)
		require.Len(t, httpDocs, 1)
		fields := httpDocs[0]["fields"].(map[string]interface{})
		tags := httpDocs[0]["tags"].(map[string]interface{})
		assert.Equal(t, float64(100), fields["duration"])
		assert.Equal(t, float64(20), fields["inner_duration"])
		assert.Equal(t, float64(2), fields["sql_count"])
		assert.Equal(t, float64(80), fields["sql_duration"])
		assert.Equal(t, "GET /orders", tags["name"])
		assert.Equal(t, "web-1", tags["location"])
		assert.Equal(t, "200", tags["status"])

		sqlDocs, err := searchMeasurement(es, index, "sql")
		require.NoError(t, err)
		assert.Len(t, sqlDocs, 2)
	})

	t.Run("Stores health checks and metrics in the application index", func(t *testing.T) {
		const app = "billing"
		index := writer.IndexName("tally", app)
		require.NoError(t, deleteIndex(es, index))

		exporter := newPointExporter(t, logger)
		checks := []model.HealthCheck{{
			Name:         "database",
			Checker:      "ping",
			CheckInstant: start,
			Measure:      model.HealthMeasure{Status: model.Yellow, Message: "slow\nreplica"},
		}}
		metrics := []model.Metric{
			{Name: "queue.depth", Module: "orders", Value: 12.5, MeasureInstant: start},
			{Name: "heap.used", Value: 512, MeasureInstant: start.Add(time.Second)},
		}
		require.NoError(t, exporter.AppendHealthChecks(ctx, app, "worker-2", checks))
		require.NoError(t, exporter.AppendMetrics(ctx, app, "worker-2", metrics))
		require.NoError(t, exporter.Flush(ctx))

		healthDocs, err := searchMeasurement(es, index, point.HealthMeasurement)
		require.NoError(t, err)
		require.Len(t, healthDocs, 1)
		tags := healthDocs[0]["tags"].(map[string]interface{})
		fields := healthDocs[0]["fields"].(map[string]interface{})
		assert.Equal(t, "1", tags["status"])
		assert.Equal(t, float64(model.Yellow), fields["status"])
		assert.Equal(t, "slow replica", fields["message"])

		metricDocs, err := searchMeasurement(es, index, point.MetricMeasurement)
		require.NoError(t, err)
		require.Len(t, metricDocs, 2)
		assert.Equal(t, 12.5, metricDocs[0]["fields"].(map[string]interface{})["value"])
	})
}
