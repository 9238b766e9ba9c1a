package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/pkg/cache"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", got)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		_, err := c.Get(ctx, "absent")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("expired entry is gone", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](cache.WithSweepInterval(0))
		defer c.Close()

		require.NoError(t, c.Set(ctx, "k", 1, time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		_, err := c.Get(ctx, "k")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("negative ttl never expires", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](cache.WithDefaultTTL(time.Millisecond), cache.WithSweepInterval(0))
		defer c.Close()

		require.NoError(t, c.Set(ctx, "k", 1, -1))
		time.Sleep(5 * time.Millisecond)

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, 1, got)
	})

	t.Run("lru eviction drops the coldest entry", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](cache.WithMaxEntries(2), cache.WithSweepInterval(0))
		defer c.Close()

		require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
		require.NoError(t, c.Set(ctx, "b", 2, time.Minute))

		// Touch "a" so "b" becomes the eviction candidate.
		_, err := c.Get(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, c.Set(ctx, "c", 3, time.Minute))

		_, err = c.Get(ctx, "b")
		require.ErrorIs(t, err, cache.ErrNotFound)
		_, err = c.Get(ctx, "a")
		require.NoError(t, err)
	})

	t.Run("delete and clear", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](cache.WithSweepInterval(0))
		defer c.Close()

		require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
		require.NoError(t, c.Set(ctx, "b", 2, time.Minute))

		require.NoError(t, c.Delete(ctx, "a"))
		_, err := c.Get(ctx, "a")
		require.ErrorIs(t, err, cache.ErrNotFound)

		require.NoError(t, c.Clear(ctx))
		_, err = c.Get(ctx, "b")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("closed cache rejects writes", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int]()
		require.NoError(t, c.Close())
		require.NoError(t, c.Close()) // idempotent

		require.ErrorIs(t, c.Set(ctx, "k", 1, 0), cache.ErrClosed)
		require.ErrorIs(t, c.Delete(ctx, "k"), cache.ErrClosed)
	})
}

func TestGetOrLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("miss loads and caches", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](cache.WithSweepInterval(0))
		defer c.Close()

		var calls atomic.Int32
		load := func(ctx context.Context) (string, time.Duration, error) {
			calls.Add(1)
			return "loaded", time.Minute, nil
		}

		got, err := cache.GetOrLoad(ctx, c, "product:1", load)
		require.NoError(t, err)
		require.Equal(t, "loaded", got)

		got, err = cache.GetOrLoad(ctx, c, "product:1", load)
		require.NoError(t, err)
		require.Equal(t, "loaded", got)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("load error is not cached", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](cache.WithSweepInterval(0))
		defer c.Close()

		boom := errors.New("catalog offline")
		_, err := cache.GetOrLoad(ctx, c, "product:2", func(ctx context.Context) (string, time.Duration, error) {
			return "", 0, boom
		})
		require.ErrorIs(t, err, boom)

		got, err := cache.GetOrLoad(ctx, c, "product:2", func(ctx context.Context) (string, time.Duration, error) {
			return "recovered", time.Minute, nil
		})
		require.NoError(t, err)
		require.Equal(t, "recovered", got)
	})

	t.Run("concurrent misses collapse to one load", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](cache.WithSweepInterval(0))
		defer c.Close()

		var calls atomic.Int32
		release := make(chan struct{})
		load := func(ctx context.Context) (string, time.Duration, error) {
			calls.Add(1)
			<-release
			return "shared", time.Minute, nil
		}

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := cache.GetOrLoad(ctx, c, "product:3", load)
				require.NoError(t, err)
				require.Equal(t, "shared", got)
			}()
		}

		time.Sleep(10 * time.Millisecond)
		close(release)
		wg.Wait()

		require.Equal(t, int32(1), calls.Load())
	})
}
