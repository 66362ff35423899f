package write_buffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	sibylElasticsearch "github.com/Avi18971911/Sibyl/internal/db/elasticsearch/client"
	"go.uber.org/zap"
)

const WriteQueueSize = 500
const flushTimeOut = 30 * time.Second

// DatabaseWriteBuffer batches documents into bulk requests. Values are written
// once the queue reaches its size and on Flush.
type DatabaseWriteBuffer[ValueType any] interface {
	WriteToBuffer(ctx context.Context, value []ValueType) error
	Flush(ctx context.Context) error
}

type DatabaseWriteBufferImpl[ValueType any] struct {
	writeQueue  []ValueType
	queueSize   int
	sc          sibylElasticsearch.SibylClient
	esIndexName string
	logger      *zap.Logger
	mu          sync.Mutex
}

func NewDatabaseWriteBufferImpl[ValueType any](
	sc sibylElasticsearch.SibylClient,
	esIndexName string,
	queueSize int,
	logger *zap.Logger,
) *DatabaseWriteBufferImpl[ValueType] {
	if queueSize < 1 {
		queueSize = WriteQueueSize
	}
	return &DatabaseWriteBufferImpl[ValueType]{
		writeQueue:  []ValueType{},
		queueSize:   queueSize,
		sc:          sc,
		esIndexName: esIndexName,
		logger:      logger,
	}
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) WriteToBuffer(
	ctx context.Context,
	value []ValueType,
) error {
	wbc.mu.Lock()
	defer wbc.mu.Unlock()
	wbc.writeQueue = append(wbc.writeQueue, value...)
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

// flushToElasticsearch drains the queue; the caller holds mu.
func (wbc *DatabaseWriteBufferImpl[ValueType]) flushToElasticsearch(ctx context.Context) error {
	if len(wbc.writeQueue) == 0 {
		return nil
	}
	bulkCtx, cancel := context.WithTimeout(ctx, flushTimeOut)
	defer cancel()

	metaMap, dataMap, err := sibylElasticsearch.ToMetaAndDataMap(wbc.writeQueue)
	pending := len(wbc.writeQueue)
	wbc.writeQueue = []ValueType{}
	if err != nil {
		return fmt.Errorf("error converting write queue to meta and data map: %w", err)
	}
	err = wbc.sc.BulkIndex(
		bulkCtx,
		metaMap,
		dataMap,
		wbc.esIndexName,
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing to Elasticsearch: %w", err)
	}
	wbc.logger.Debug("Flushed write buffer", zap.String("index", wbc.esIndexName), zap.Int("documents", pending))
	return nil
}
