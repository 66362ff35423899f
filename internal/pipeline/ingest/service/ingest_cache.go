package service

import (
	"errors"
	"fmt"

	"github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
	"github.com/dgraph-io/ristretto"
)

// IngestCache keeps decoded corpus files so that several scans in one process
// (global and per-parent) decode each file once.
// Eviction is based on LRU and LFU policies.
type IngestCache interface {
	Get(key string) (model.FileResult, error)
	Put(key string, value model.FileResult) error
}

type IngestCacheImpl struct {
	cache *ristretto.Cache
}

func NewIngestCacheImpl(cache *ristretto.Cache) *IngestCacheImpl {
	return &IngestCacheImpl{
		cache: cache,
	}
}

// NewIngestCache builds a cache whose cost budget is measured in spans.
func NewIngestCache(maxSpans int64) (*IngestCacheImpl, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxSpans * 10,
		MaxCost:            maxSpans,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest cache: %w", err)
	}
	return NewIngestCacheImpl(cache), nil
}

func (ic *IngestCacheImpl) Get(key string) (model.FileResult, error) {
	value, found := ic.cache.Get(key)
	if !found {
		return model.FileResult{}, ErrKeyNotFound
	}
	typedValue, ok := value.(model.FileResult)
	if !ok {
		return model.FileResult{}, fmt.Errorf("value not of expected type %T returned from cache when getting", value)
	}
	return typedValue, nil
}

func (ic *IngestCacheImpl) Put(key string, value model.FileResult) error {
	set := ic.cache.Set(key, value, fileCost(value))
	if !set {
		return ErrSetFailed
	}
	return nil
}

// Wait blocks until buffered writes are visible to Get.
func (ic *IngestCacheImpl) Wait() {
	ic.cache.Wait()
}

func fileCost(value model.FileResult) int64 {
	cost := int64(1)
	for _, trace := range value.Traces {
		cost += int64(len(trace.Spans))
	}
	return cost
}

var (
	ErrKeyNotFound = errors.New("key not found within the cache")
	ErrSetFailed   = errors.New("failed to set value in cache")
)
