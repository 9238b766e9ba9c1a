// Package cache provides a generic TTL cache behind a small interface, with
// in-memory and Redis backends. The storefront uses it for hot read paths:
// the product catalog, vendor profiles, and marketplace settings.
package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound  = errors.New("cache: entry not found")
	ErrClosed    = errors.New("cache: closed")
	ErrMarshal   = errors.New("cache: failed to marshal value")
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")
)

// Cache is a key-value cache with per-entry TTL.
//
// TTL semantics for Set: positive expires after the duration, zero uses the
// backend's default, negative never expires.
type Cache[V any] interface {
	// Get returns the value for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (V, error)

	// Set stores a value under key.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Loader computes a value on a cache miss, returning it with the TTL it
// should be cached under.
type Loader[V any] func(ctx context.Context) (V, time.Duration, error)

var loads singleflight.Group

type loaded[V any] struct {
	val V
	ttl time.Duration
}

// GetOrLoad returns the cached value for key, computing and caching it via
// load on a miss. Concurrent misses on the same key are collapsed into a
// single load, so a cold product page does not stampede the database.
func GetOrLoad[V any](ctx context.Context, c Cache[V], key string, load Loader[V]) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err, _ := loads.Do(key, func() (any, error) {
		val, ttl, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return loaded[V]{val: val, ttl: ttl}, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	r := v.(loaded[V])
	// Caching the result is best effort; the value is already in hand.
	_ = c.Set(ctx, key, r.val, r.ttl)
	return r.val, nil
}
