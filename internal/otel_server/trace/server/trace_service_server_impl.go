package server

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/pipeline/dispatch"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	common "go.opentelemetry.io/proto/otlp/common/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	unknownService = "unknown_service"
	categoryKey    = "category"
)

// TraceServiceServerImpl accepts OTLP trace exports and feeds them into the
// same export path as the collector sockets.
type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	dispatcher dispatch.Dispatcher
	logger     *zap.Logger
}

func NewTraceServiceServerImpl(
	dispatcher dispatch.Dispatcher,
	logger *zap.Logger,
) *TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl")
	return &TraceServiceServerImpl{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (tss *TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	for _, resourceSpan := range req.ResourceSpans {
		serviceName := getResourceAttribute(resourceSpan, "service.name", unknownService)
		if serviceName == unknownService {
			tss.logger.Warn("Service name not found in resource span")
		}
		host := getResourceAttribute(resourceSpan, "host.name", "")

		for _, spans := range groupByTrace(resourceSpan) {
			roots := ConstructForest(spans)
			batch := model.Batch{
				Kind:    model.KindTrace,
				AppName: serviceName,
				Host:    host,
				Spans:   roots,
				Bulk:    len(roots) > 1,
			}
			if err := tss.dispatcher.Dispatch(ctx, batch); err != nil {
				return nil, status.Errorf(codes.Internal, "error dispatching traces: %v", err)
			}
		}
	}

	return &protoTrace.ExportTraceServiceResponse{}, nil
}

func getResourceAttribute(resourceSpan *v1.ResourceSpans, key, fallback string) string {
	if resourceSpan.Resource == nil {
		return fallback
	}
	for _, attr := range resourceSpan.Resource.Attributes {
		if attr.Key == key && attr.Value.GetStringValue() != "" {
			return attr.Value.GetStringValue()
		}
	}
	return fallback
}

// groupByTrace keeps the traces in the order their first span arrived.
func groupByTrace(resourceSpan *v1.ResourceSpans) [][]*v1.Span {
	index := make(map[string]int)
	var groups [][]*v1.Span
	for _, scopeSpan := range resourceSpan.ScopeSpans {
		for _, span := range scopeSpan.Spans {
			traceID := hex.EncodeToString(span.TraceId)
			i, ok := index[traceID]
			if !ok {
				i = len(groups)
				index[traceID] = i
				groups = append(groups, nil)
			}
			groups[i] = append(groups[i], span)
		}
	}
	return groups
}

func convertSpan(span *v1.Span) *model.Span {
	tags, measures := getAttributes(span)
	category := tags[categoryKey]
	delete(tags, categoryKey)
	if category == "" {
		category = getSpanKind(span)
	}

	metadata := map[string]string{
		"trace_id": hex.EncodeToString(span.TraceId),
		"span_id":  hex.EncodeToString(span.SpanId),
	}
	if span.Status != nil && span.Status.Code == v1.Status_STATUS_CODE_ERROR {
		metadata["status_message"] = span.Status.Message
	}

	return &model.Span{
		Category: category,
		Name:     span.Name,
		Start:    time.Unix(0, int64(span.StartTimeUnixNano)).UTC(),
		End:      time.Unix(0, int64(span.EndTimeUnixNano)).UTC(),
		Measures: measures,
		Tags:     tags,
		Metadata: metadata,
	}
}

// getAttributes splits span attributes into string tags and numeric measures.
func getAttributes(span *v1.Span) (map[string]string, map[string]float64) {
	tags := make(map[string]string)
	measures := make(map[string]float64)
	for _, attribute := range span.Attributes {
		switch value := attribute.Value.GetValue().(type) {
		case *common.AnyValue_StringValue:
			tags[attribute.Key] = value.StringValue
		case *common.AnyValue_BoolValue:
			tags[attribute.Key] = strconv.FormatBool(value.BoolValue)
		case *common.AnyValue_IntValue:
			measures[attribute.Key] = float64(value.IntValue)
		case *common.AnyValue_DoubleValue:
			measures[attribute.Key] = value.DoubleValue
		}
	}
	return tags, measures
}

func getSpanKind(span *v1.Span) string {
	return strings.ToLower(strings.TrimPrefix(span.Kind.String(), "SPAN_KIND_"))
}
