package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/Avi18971911/Tally/internal/ingest/compression"
	"github.com/Avi18971911/Tally/internal/ingest/wire"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type EmitterConfig struct {
	Address     string        // collector listener
	Binary      bool          // tagged CBOR instead of JSON
	Compression compression.Kind
	Connections int           // concurrent connections
	Duration    time.Duration // how long to send for
	Interval    time.Duration // pause between envelopes on one connection
	AppName     string
}

func main() {
	flags := pflag.NewFlagSet("tally_emitter", pflag.ContinueOnError)
	address := flags.String("address", "localhost:9500", "collector listener address")
	encoding := flags.String("encoding", "json", "json or binary")
	compressionName := flags.String("compression", "none", "none, gzip, gzip_with_length_prefix or lzf")
	connections := flags.Int("connections", 4, "number of concurrent connections")
	duration := flags.Duration("duration", time.Minute, "how long to send events for")
	interval := flags.Duration("interval", 100*time.Millisecond, "pause between envelopes on one connection")
	appName := flags.String("app", "tally-emitter", "application name carried in every envelope")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	kind, err := compression.ParseKind(*compressionName)
	if err != nil {
		logger.Fatal("Invalid compression", zap.Error(err))
	}
	if *encoding != "json" && *encoding != "binary" {
		logger.Fatal("Invalid encoding", zap.String("encoding", *encoding))
	}

	cfg := EmitterConfig{
		Address:     *address,
		Binary:      *encoding == "binary",
		Compression: kind,
		Connections: *connections,
		Duration:    *duration,
		Interval:    *interval,
		AppName:     *appName,
	}
	if err := runLoad(cfg, logger); err != nil {
		logger.Fatal("Emitter failed", zap.Error(err))
	}
}

func runLoad(cfg EmitterConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	logger.Info(
		"Starting emitter",
		zap.Int("connections", cfg.Connections),
		zap.Duration("duration", cfg.Duration),
		zap.Stringer("compression", cfg.Compression),
		zap.Bool("binary", cfg.Binary),
	)
	for i := 0; i < cfg.Connections; i++ {
		g.Go(func() error {
			return worker(gctx, cfg, fmt.Sprintf("emitter-%d", i), &sent)
		})
	}
	err := g.Wait()
	logger.Info("Emitter finished", zap.Int64("envelopes", sent.Load()))
	return err
}

// worker holds one connection open and writes envelopes until ctx ends.
func worker(ctx context.Context, cfg EmitterConfig, host string, sent *atomic.Int64) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", cfg.Address, err)
	}
	defer conn.Close()

	writer := wire.NewStreamWriter(conn, cfg.Binary, cfg.Compression)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		kind, envelope := randomEnvelope(cfg.AppName, host, n)
		if err := writer.Write(kind, envelope); err != nil {
			return err
		}
		sent.Add(1)
	}
}

func randomEnvelope(appName, host string, n int) (model.EventKind, any) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	switch n % 3 {
	case 0:
		return model.KindTrace, model.Envelope[model.Span]{AppName: appName, Host: host, Event: randomTrace(now)}
	case 1:
		check := model.HealthCheck{
			Name:         "database",
			Checker:      "ping",
			Module:       "storage",
			Feature:      "orders",
			CheckInstant: now,
			Measure:      model.HealthMeasure{Status: model.HealthStatus(rand.Intn(3)), Message: "synthetic"},
		}
		return model.KindHealth, model.Envelope[model.HealthCheck]{AppName: appName, Host: host, Event: &check}
	default:
		metrics := []model.Metric{
			{Name: "queue.depth", Module: "orders", Feature: "checkout", Value: float64(rand.Intn(100)), MeasureInstant: now},
			{Name: "heap.used", Module: "jvm", Value: rand.Float64() * 1024, MeasureInstant: now},
		}
		return model.KindMetric, model.Envelope[model.Metric]{AppName: appName, Host: host, Events: metrics}
	}
}

func randomTrace(start time.Time) *model.Span {
	root := &model.Span{
		Category: "http",
		Name:     "GET /orders",
		Start:    start,
		Tags:     map[string]string{"status": "200"},
	}
	cursor := start.Add(time.Duration(rand.Intn(5)) * time.Millisecond)
	for i := 0; i < 1+rand.Intn(4); i++ {
		d := time.Duration(1+rand.Intn(40)) * time.Millisecond
		root.Children = append(root.Children, &model.Span{
			Category: "sql",
			Name:     fmt.Sprintf("select %d", i),
			Start:    cursor,
			End:      cursor.Add(d),
			Measures: map[string]float64{"rows": float64(rand.Intn(50))},
		})
		cursor = cursor.Add(d)
	}
	root.End = cursor.Add(time.Duration(rand.Intn(10)) * time.Millisecond)
	return root
}
