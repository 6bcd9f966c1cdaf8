package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getNewKnownSet(t *testing.T) *KnownSet {
	k, err := NewKnownSet(1<<10, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(k.Close)
	return k
}

func TestKnownSet_EnsureOnce(t *testing.T) {
	t.Run("Runs create once per key", func(t *testing.T) {
		k := getNewKnownSet(t)
		calls := 0
		create := func() error {
			calls++
			return nil
		}
		require.NoError(t, k.EnsureOnce("shop", create))
		require.NoError(t, k.EnsureOnce("shop", create))
		require.NoError(t, k.EnsureOnce("billing", create))
		assert.Equal(t, 2, calls)
		assert.True(t, k.Contains("shop"))
	})

	t.Run("Returns the create error and retries next time", func(t *testing.T) {
		k := getNewKnownSet(t)
		boom := errors.New("boom")
		err := k.EnsureOnce("shop", func() error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, k.Contains("shop"))

		called := false
		require.NoError(t, k.EnsureOnce("shop", func() error {
			called = true
			return nil
		}))
		assert.True(t, called)
	})

	t.Run("Serializes concurrent creators of the same key", func(t *testing.T) {
		k := getNewKnownSet(t)
		var calls atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = k.EnsureOnce("shop", func() error {
					calls.Add(1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), calls.Load())
	})
}
