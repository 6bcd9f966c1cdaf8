package server

import (
	"context"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/pipeline/dispatch"
	protoMetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	common "go.opentelemetry.io/proto/otlp/common/v1"
	v1 "go.opentelemetry.io/proto/otlp/metrics/v1"
	resource "go.opentelemetry.io/proto/otlp/resource/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	unknownService = "unknown_service"
	featureKey     = "feature"
)

// MetricServiceServerImpl turns OTLP gauges and sums into metric batches.
// Histograms and summaries have no single value and are skipped.
type MetricServiceServerImpl struct {
	protoMetrics.UnimplementedMetricsServiceServer
	dispatcher dispatch.Dispatcher
	logger     *zap.Logger
}

func NewMetricServiceServerImpl(
	dispatcher dispatch.Dispatcher,
	logger *zap.Logger,
) *MetricServiceServerImpl {
	logger.Info("Creating new MetricServiceServerImpl")
	return &MetricServiceServerImpl{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (mss *MetricServiceServerImpl) Export(
	ctx context.Context,
	req *protoMetrics.ExportMetricsServiceRequest,
) (*protoMetrics.ExportMetricsServiceResponse, error) {
	for _, resourceMetrics := range req.ResourceMetrics {
		serviceName := getResourceAttribute(resourceMetrics.Resource, "service.name", unknownService)
		host := getResourceAttribute(resourceMetrics.Resource, "host.name", "")

		var metrics []model.Metric
		skipped := 0
		for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
			module := scopeMetrics.Scope.GetName()
			for _, metric := range scopeMetrics.Metrics {
				points := getNumberDataPoints(metric)
				if points == nil {
					skipped++
					continue
				}
				for _, dp := range points {
					metrics = append(metrics, typeMetric(metric.Name, module, dp))
				}
			}
		}
		if skipped > 0 {
			mss.logger.Debug("Skipped metrics without a single value", zap.Int("skipped", skipped))
		}
		if len(metrics) == 0 {
			continue
		}

		batch := model.Batch{
			Kind:    model.KindMetric,
			AppName: serviceName,
			Host:    host,
			Metrics: metrics,
			Bulk:    len(metrics) > 1,
		}
		if err := mss.dispatcher.Dispatch(ctx, batch); err != nil {
			return nil, status.Errorf(codes.Internal, "error dispatching metrics: %v", err)
		}
	}
	return &protoMetrics.ExportMetricsServiceResponse{}, nil
}

func getNumberDataPoints(metric *v1.Metric) []*v1.NumberDataPoint {
	switch data := metric.Data.(type) {
	case *v1.Metric_Gauge:
		return data.Gauge.DataPoints
	case *v1.Metric_Sum:
		return data.Sum.DataPoints
	default:
		return nil
	}
}

func typeMetric(name, module string, dp *v1.NumberDataPoint) model.Metric {
	var value float64
	switch v := dp.Value.(type) {
	case *v1.NumberDataPoint_AsDouble:
		value = v.AsDouble
	case *v1.NumberDataPoint_AsInt:
		value = float64(v.AsInt)
	}
	return model.Metric{
		Name:           name,
		Module:         module,
		Feature:        getAttribute(dp.Attributes, featureKey),
		Value:          value,
		MeasureInstant: time.Unix(0, int64(dp.TimeUnixNano)).UTC(),
	}
}

func getResourceAttribute(res *resource.Resource, key, fallback string) string {
	if res == nil {
		return fallback
	}
	if value := getAttribute(res.Attributes, key); value != "" {
		return value
	}
	return fallback
}

func getAttribute(attributes []*common.KeyValue, key string) string {
	for _, attr := range attributes {
		if attr.Key == key {
			return attr.Value.GetStringValue()
		}
	}
	return ""
}
