package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avi18971911/Tally/internal/config"
	"github.com/Avi18971911/Tally/internal/db/cache"
	"github.com/Avi18971911/Tally/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/Tally/internal/db/elasticsearch/client"
	"github.com/Avi18971911/Tally/internal/db/elasticsearch/writer"
	"github.com/Avi18971911/Tally/internal/db/influxdb"
	"github.com/Avi18971911/Tally/internal/export/point"
	"github.com/Avi18971911/Tally/internal/export/span"
	"github.com/Avi18971911/Tally/internal/http_server/router"
	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/Avi18971911/Tally/internal/ingest/decoder"
	"github.com/Avi18971911/Tally/internal/ingest/protocol"
	"github.com/Avi18971911/Tally/internal/ingest/server"
	metricServer "github.com/Avi18971911/Tally/internal/otel_server/metric/server"
	traceServer "github.com/Avi18971911/Tally/internal/otel_server/trace/server"
	"github.com/Avi18971911/Tally/internal/pipeline/dispatch"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/spf13/pflag"
	protoMetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
)

const (
	knownSetSize    = 1 << 12
	shutdownTimeout = 30 * time.Second
)

func main() {
	flags := pflag.NewFlagSet("tally_server", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to the YAML configuration file")
	logLevel := flags.String("log-level", "", "overrides log_level from the configuration")
	development := flags.Bool("development", false, "use the human readable development logger")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := newLogger(cfg.LogLevel, *development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Collector stopped with an error", zap.Error(err))
	}
}

func newLogger(level string, development bool) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("error parsing log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(parsed)
	return zapConfig.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := dispatch.NewDispatcherImpl(dispatch.DefaultMaxLoggedErrors, logger)

	closeTimeseries, err := wireTimeseries(ctx, cfg, d, logger)
	if err != nil {
		return err
	}
	defer closeTimeseries()

	shutdownTracing, err := wireTracing(ctx, cfg, d, logger)
	if err != nil {
		return err
	}

	var listeners []*server.Server
	for _, l := range cfg.Listeners {
		proto, err := newProtocol(l, logger)
		if err != nil {
			return fmt.Errorf("error configuring listener %s: %w", l.Name, err)
		}
		srv := server.NewServer(l, proto, d, logger)
		if err := srv.Listen(); err != nil {
			return err
		}
		listeners = append(listeners, srv)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range listeners {
		g.Go(func() error {
			return srv.Serve(gctx)
		})
	}

	var grpcServer *grpc.Server
	if cfg.OTLP.Address != "" {
		lis, err := net.Listen("tcp", cfg.OTLP.Address)
		if err != nil {
			return fmt.Errorf("error listening for OTLP on %s: %w", cfg.OTLP.Address, err)
		}
		grpcServer = grpc.NewServer()
		protoTrace.RegisterTraceServiceServer(grpcServer, traceServer.NewTraceServiceServerImpl(d, logger))
		protoMetrics.RegisterMetricsServiceServer(grpcServer, metricServer.NewMetricServiceServerImpl(d, logger))
		logger.Info("gRPC service started, listening for OpenTelemetry traces and metrics...", zap.String("address", cfg.OTLP.Address))
		g.Go(func() error {
			return grpcServer.Serve(lis)
		})
	}

	var httpServer *http.Server
	if cfg.HTTP.Address != "" {
		httpServer = &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           router.CreateRouter(ctx, d, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("HTTP submission endpoint started", zap.String("address", cfg.HTTP.Address))
		g.Go(func() error {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	<-gctx.Done()
	logger.Info("Shutting down collector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range listeners {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to drain listener", zap.Error(err))
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to stop HTTP server", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Failed to flush tracer", zap.Error(err))
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Collector stopped")
	return nil
}

func newProtocol(l config.Listener, logger *zap.Logger) (protocol.Protocol, error) {
	switch l.Encoding {
	case config.EncodingBinary:
		allowed, err := l.AllowedKinds()
		if err != nil {
			return nil, err
		}
		binaryDecoder, err := decoder.NewBinaryDecoder(allowed)
		if err != nil {
			return nil, err
		}
		return protocol.NewBinaryProtocol(binaryDecoder, l.CompressionDetection(), compression.DefaultFrameLimit, logger), nil
	default:
		return protocol.NewJSONProtocol(l.CompressionDetection(), l.MaxPendingBytes, logger), nil
	}
}

func wireTimeseries(ctx context.Context, cfg *config.Config, d *dispatch.DispatcherImpl, logger *zap.Logger) (func(), error) {
	var pointWriter point.Writer
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	ts := cfg.Timeseries
	if ts.Backend == config.BackendNone || ts.Backend == "" {
		return closeAll, nil
	}

	known, err := cache.NewKnownSet(knownSetSize, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, known.Close)

	switch ts.Backend {
	case config.BackendInfluxDB:
		influxWriter := influxdb.NewWriter(influxdb.NewClient(ts.InfluxDB), ts.InfluxDB.Org, known, logger)
		closers = append(closers, influxWriter.Close)
		pointWriter = influxWriter
	case config.BackendElasticsearch:
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: ts.Elasticsearch.Addresses})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		ac := client.NewTallyClientImpl(es, client.Async)
		bs := bootstrapper.NewBootstrapper(ac, logger)
		if err := bs.BootstrapElasticsearch(ctx); err != nil {
			closeAll()
			return nil, err
		}
		esWriter := writer.NewPointWriter(ac, bs, known, ts.Elasticsearch.IndexPrefix, ts.Elasticsearch.FlushSize, logger)
		if ts.Elasticsearch.FlushInterval > 0 {
			go esWriter.RunPeriodicFlush(ctx, ts.Elasticsearch.FlushInterval)
		}
		pointWriter = esWriter
	default:
		closeAll()
		return nil, fmt.Errorf("unknown timeseries backend %q", ts.Backend)
	}

	exporter := point.NewExporter(pointWriter, point.NewCounters(ts.PartitionSlots), logger)
	name := string(ts.Backend)
	d.AddTraceAppender(name, exporter)
	d.AddHealthAppender(name, exporter)
	d.AddMetricAppender(name, exporter)
	closers = append([]func(){func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := exporter.Flush(flushCtx); err != nil {
			logger.Error("Failed to flush points", zap.Error(err))
		}
	}}, closers...)
	return closeAll, nil
}

func wireTracing(
	ctx context.Context,
	cfg *config.Config,
	d *dispatch.DispatcherImpl,
	logger *zap.Logger,
) (func(context.Context) error, error) {
	if !cfg.Tracing.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	tp, err := span.NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	d.AddTraceAppender("tracing", span.NewExporter(tp, logger))
	return tp.Shutdown, nil
}
