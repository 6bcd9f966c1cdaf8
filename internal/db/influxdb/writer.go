// Package influxdb stores points in InfluxDB 2.x, one bucket per application.
package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Avi18971911/Tally/internal/config"
	"github.com/Avi18971911/Tally/internal/db/cache"
	"github.com/Avi18971911/Tally/internal/export/point"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const knownPrefix = "influxdb/"

func NewClient(cfg config.InfluxDBConfig) influxdb2.Client {
	return influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().SetPrecision(time.Nanosecond),
	)
}

type Writer struct {
	client influxdb2.Client
	org    string
	orgID  string
	orgMu  sync.Mutex
	known  *cache.KnownSet
	logger *zap.Logger
}

func NewWriter(client influxdb2.Client, org string, known *cache.KnownSet, logger *zap.Logger) *Writer {
	return &Writer{
		client: client,
		org:    org,
		known:  known,
		logger: logger,
	}
}

// WritePoints writes synchronously; nothing is buffered on this side.
func (w *Writer) WritePoints(ctx context.Context, bucket string, points []point.Point) error {
	err := w.known.EnsureOnce(knownPrefix+bucket, func() error {
		return w.ensureBucket(ctx, bucket)
	})
	if err != nil {
		return err
	}

	lines := make([]*write.Point, len(points))
	for i, p := range points {
		lines[i] = write.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time)
	}
	if err := w.client.WriteAPIBlocking(w.org, bucket).WritePoint(ctx, lines...); err != nil {
		return fmt.Errorf("error writing to bucket %s: %w", bucket, err)
	}
	return nil
}

func (w *Writer) Flush(context.Context) error {
	return nil
}

func (w *Writer) Close() {
	w.client.Close()
}

func (w *Writer) ensureBucket(ctx context.Context, bucket string) error {
	buckets := w.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, bucket); err == nil {
		return nil
	}
	orgID, err := w.resolveOrgID(ctx)
	if err != nil {
		return err
	}
	if _, err := buckets.CreateBucketWithNameWithID(ctx, orgID, bucket); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucket, err)
	}
	w.logger.Info("Created bucket", zap.String("bucket", bucket), zap.String("org", w.org))
	return nil
}

func (w *Writer) resolveOrgID(ctx context.Context) (string, error) {
	w.orgMu.Lock()
	defer w.orgMu.Unlock()
	if w.orgID != "" {
		return w.orgID, nil
	}
	org, err := w.client.OrganizationsAPI().FindOrganizationByName(ctx, w.org)
	if err != nil {
		return "", fmt.Errorf("error resolving organization %s: %w", w.org, err)
	}
	if org.Id == nil {
		return "", fmt.Errorf("organization %s has no id", w.org)
	}
	w.orgID = *org.Id
	return w.orgID, nil
}
