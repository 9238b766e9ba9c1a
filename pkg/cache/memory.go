package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type record[V any] struct {
	expiresAt time.Time // zero means no expiry
	value     V
	key       string
}

func (r *record[V]) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && now.After(r.expiresAt)
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	defaultTTL    time.Duration
	sweepInterval time.Duration
	maxEntries    int
}

// WithDefaultTTL sets the TTL applied when Set receives zero.
func WithDefaultTTL(d time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.defaultTTL = d }
}

// WithSweepInterval sets how often expired entries are swept out in the
// background. Zero disables the sweeper; expired entries then linger until
// read or evicted.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.sweepInterval = d }
}

// WithMaxEntries bounds the cache; the least recently used entry is evicted
// when full. Zero means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) { c.maxEntries = n }
}

// Memory is an in-process cache: a map for lookups plus an LRU list for
// eviction order, most recently used at the front.
type Memory[V any] struct {
	index  map[string]*list.Element
	lru    *list.List
	cfg    memoryConfig
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewMemory creates an in-memory cache.
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	cfg := memoryConfig{
		defaultTTL:    5 * time.Minute,
		sweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Memory[V]{
		index: make(map[string]*list.Element),
		lru:   list.New(),
		cfg:   cfg,
		done:  make(chan struct{}),
	}
	if cfg.sweepInterval > 0 {
		go m.sweeper()
	}
	return m
}

// Get returns the value for key and marks it recently used.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	elem, ok := m.index[key]
	if !ok {
		return zero, ErrNotFound
	}
	rec := elem.Value.(*record[V])
	if rec.expired(time.Now()) {
		m.drop(elem)
		return zero, ErrNotFound
	}
	m.lru.MoveToFront(elem)
	return rec.value, nil
}

// Set stores a value under key, evicting the least recently used entry when
// the cache is full.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if ttl == 0 {
		ttl = m.cfg.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if elem, ok := m.index[key]; ok {
		rec := elem.Value.(*record[V])
		rec.value = value
		rec.expiresAt = expiresAt
		m.lru.MoveToFront(elem)
		return nil
	}

	if m.cfg.maxEntries > 0 && len(m.index) >= m.cfg.maxEntries {
		if oldest := m.lru.Back(); oldest != nil {
			m.drop(oldest)
		}
	}

	m.index[key] = m.lru.PushFront(&record[V]{key: key, value: value, expiresAt: expiresAt})
	return nil
}

// Delete removes a key.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if elem, ok := m.index[key]; ok {
		m.drop(elem)
	}
	return nil
}

// Clear removes every entry.
func (m *Memory[V]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.index = make(map[string]*list.Element)
	m.lru.Init()
	return nil
}

// Close stops the background sweeper. Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *Memory[V]) sweeper() {
	ticker := time.NewTicker(m.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory[V]) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for elem := m.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*record[V]).expired(now) {
			m.drop(elem)
		}
		elem = prev
	}
}

// drop removes one element; the caller holds the mutex.
func (m *Memory[V]) drop(elem *list.Element) {
	m.lru.Remove(elem)
	delete(m.index, elem.Value.(*record[V]).key)
}

var _ Cache[any] = (*Memory[any])(nil)
