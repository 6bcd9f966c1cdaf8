package write_buffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Avi18971911/Tally/internal/db/elasticsearch/client"
	"go.uber.org/zap"
)

const DefaultWriteQueueSize = 30
const flushTimeOut = 10 * time.Second

type DatabaseWriteBuffer[ValueType any] interface {
	WriteToBuffer(ctx context.Context, values []ValueType) error
	Flush(ctx context.Context) error
}

// DatabaseWriteBufferImpl queues documents for one index and bulk indexes
// them once the queue reaches its size, or on Flush.
type DatabaseWriteBufferImpl[ValueType any] struct {
	writeQueue  []ValueType
	queueSize   int
	ac          client.TallyClient
	esIndexName string
	logger      *zap.Logger
	mu          sync.Mutex
}

func NewDatabaseWriteBufferImpl[ValueType any](
	ac client.TallyClient,
	esIndexName string,
	queueSize int,
	logger *zap.Logger,
) *DatabaseWriteBufferImpl[ValueType] {
	if queueSize <= 0 {
		queueSize = DefaultWriteQueueSize
	}
	return &DatabaseWriteBufferImpl[ValueType]{
		writeQueue:  []ValueType{},
		queueSize:   queueSize,
		ac:          ac,
		esIndexName: esIndexName,
		logger:      logger,
	}
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) WriteToBuffer(ctx context.Context, values []ValueType) error {
	wbc.mu.Lock()
	defer wbc.mu.Unlock()
	wbc.writeQueue = append(wbc.writeQueue, values...)
	if len(wbc.writeQueue) < wbc.queueSize {
		return nil
	}
	return wbc.flushToElasticsearch(ctx)
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) Flush(ctx context.Context) error {
	wbc.mu.Lock()
	defer wbc.mu.Unlock()
	return wbc.flushToElasticsearch(ctx)
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) Pending() int {
	wbc.mu.Lock()
	defer wbc.mu.Unlock()
	return len(wbc.writeQueue)
}

// flushToElasticsearch drops the queue whether or not the bulk request
// succeeds. Callers hold mu.
func (wbc *DatabaseWriteBufferImpl[ValueType]) flushToElasticsearch(ctx context.Context) error {
	if len(wbc.writeQueue) == 0 {
		return nil
	}
	bulkCtx, cancel := context.WithTimeout(ctx, flushTimeOut)
	defer cancel()
	queued := wbc.writeQueue
	wbc.writeQueue = []ValueType{}

	metaMap, dataMap, err := client.ToMetaAndDataMap(queued)
	if err != nil {
		return fmt.Errorf("error converting write queue to meta and data map: %w", err)
	}
	if err := wbc.ac.BulkIndex(bulkCtx, metaMap, dataMap, wbc.esIndexName); err != nil {
		return fmt.Errorf("error bulk indexing %d documents to %s: %w", len(queued), wbc.esIndexName, err)
	}
	wbc.logger.Debug(
		"Flushed write buffer",
		zap.String("index_name", wbc.esIndexName),
		zap.Int("documents", len(queued)),
	)
	return nil
}
