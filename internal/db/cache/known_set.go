package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// KnownSet remembers which backend resources (buckets, indices) have already
// been created, so creation runs at most once per key while it stays cached.
// Evicted keys are simply created again, so create must be idempotent.
type KnownSet struct {
	cache  *ristretto.Cache
	mu     sync.Mutex
	logger *zap.Logger
}

func NewKnownSet(maxEntries int64, logger *zap.Logger) (*KnownSet, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating known set cache: %w", err)
	}
	return &KnownSet{cache: c, logger: logger}, nil
}

func (k *KnownSet) Contains(key string) bool {
	_, found := k.cache.Get(key)
	return found
}

// EnsureOnce runs create unless key is already known. Concurrent callers for
// the same key wait for the first one.
func (k *KnownSet) EnsureOnce(key string, create func() error) error {
	if k.Contains(key) {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.Contains(key) {
		return nil
	}
	if err := create(); err != nil {
		return fmt.Errorf("error creating %s: %w", key, err)
	}
	if !k.cache.Set(key, struct{}{}, 1) {
		k.logger.Debug("Known set dropped a key", zap.String("key", key), zap.Error(ErrSetFailed))
	}
	k.cache.Wait()
	return nil
}

func (k *KnownSet) Close() {
	k.cache.Close()
}

var (
	ErrSetFailed = errors.New("failed to set value in cache")
)
