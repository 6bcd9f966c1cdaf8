package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Avi18971911/Tally/internal/db/cache"
	"github.com/Avi18971911/Tally/internal/db/elasticsearch/client"
	"github.com/Avi18971911/Tally/internal/db/write_buffer"
	"github.com/Avi18971911/Tally/internal/export/point"
	"go.uber.org/zap"
)

// PointDocument is the stored form of one point.
type PointDocument struct {
	Timestamp   time.Time         `json:"@timestamp"`
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags"`
	Fields      map[string]any    `json:"fields"`
}

type IndexCreator interface {
	CreatePointIndex(ctx context.Context, indexName string) error
}

// PointWriter stores points as documents, one index per application.
type PointWriter struct {
	ac          client.TallyClient
	indices     IndexCreator
	known       *cache.KnownSet
	indexPrefix string
	flushSize   int
	buffers     map[string]*write_buffer.DatabaseWriteBufferImpl[PointDocument]
	mu          sync.Mutex
	logger      *zap.Logger
}

func NewPointWriter(
	ac client.TallyClient,
	indices IndexCreator,
	known *cache.KnownSet,
	indexPrefix string,
	flushSize int,
	logger *zap.Logger,
) *PointWriter {
	return &PointWriter{
		ac:          ac,
		indices:     indices,
		known:       known,
		indexPrefix: indexPrefix,
		flushSize:   flushSize,
		buffers:     make(map[string]*write_buffer.DatabaseWriteBufferImpl[PointDocument]),
		logger:      logger,
	}
}

func (w *PointWriter) WritePoints(ctx context.Context, bucket string, points []point.Point) error {
	index := IndexName(w.indexPrefix, bucket)
	err := w.known.EnsureOnce(index, func() error {
		return w.indices.CreatePointIndex(ctx, index)
	})
	if err != nil {
		return err
	}

	docs := make([]PointDocument, len(points))
	for i, p := range points {
		docs[i] = PointDocument{
			Timestamp:   p.Time,
			Measurement: p.Measurement,
			Tags:        p.Tags,
			Fields:      p.Fields,
		}
	}
	return w.buffer(index).WriteToBuffer(ctx, docs)
}

func (w *PointWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	buffers := make([]*write_buffer.DatabaseWriteBufferImpl[PointDocument], 0, len(w.buffers))
	for _, b := range w.buffers {
		buffers = append(buffers, b)
	}
	w.mu.Unlock()

	var errs []error
	for _, b := range buffers {
		if err := b.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunPeriodicFlush flushes every interval until ctx is done, so points from
// single event envelopes are not held until a buffer fills.
func (w *PointWriter) RunPeriodicFlush(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.Error("Failed to flush points", zap.Error(err))
			}
		}
	}
}

func (w *PointWriter) buffer(index string) *write_buffer.DatabaseWriteBufferImpl[PointDocument] {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.buffers[index]
	if !ok {
		b = write_buffer.NewDatabaseWriteBufferImpl[PointDocument](w.ac, index, w.flushSize, w.logger)
		w.buffers[index] = b
	}
	return b
}

// IndexName derives a valid index name from an application name: lower case,
// with characters Elasticsearch forbids replaced by '_'.
func IndexName(prefix, appName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', '*', '?', '"', '<', '>', '|', ' ', ',', '#', ':':
			return '_'
		}
		return r
	}, strings.ToLower(appName))
	name = strings.TrimLeft(name, "-_+")
	if name == "" {
		name = "unknown"
	}
	if prefix == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", strings.ToLower(prefix), name)
}
