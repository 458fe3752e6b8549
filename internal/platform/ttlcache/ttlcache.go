// Package ttlcache is a bounded, TTL-aware in-process cache.
//
// Entries are stale once now - insertedAt exceeds the TTL; stale entries are
// treated as misses and evicted on the read that finds them. At capacity the
// least recently used entry is evicted. A single mutex guards the whole cache,
// and values are replaced wholesale on Set, never mutated in place.
package ttlcache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Entry is a cached value with its bookkeeping timestamps.
type Entry[V any] struct {
	Value        V
	InsertedAt   time.Time
	LastAccessAt time.Time
}

func (e Entry[V]) stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.InsertedAt) > ttl
}

// Stats describes the cache configuration and occupancy.
type Stats struct {
	Size    int
	TTL     time.Duration
	MaxSize int
}

// Cache maps K to V with a size bound and a TTL.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries *simplelru.LRU[K, Entry[V]]
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	onEvict func(K)
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock overrides the time source. Intended for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

// WithEvictionHook registers fn to run, under the cache lock, whenever a key
// is removed by capacity, staleness or Delete. Clear does not invoke it.
func WithEvictionHook[K comparable, V any](fn func(K)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = fn
	}
}

// New creates a cache holding at most maxSize entries for ttl each.
func New[K comparable, V any](maxSize int, ttl time.Duration, opts ...Option[K, V]) (*Cache[K, V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("ttlcache: max size must be positive, got %d", maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttlcache: ttl must be positive, got %s", ttl)
	}
	c := &Cache[K, V]{ttl: ttl, maxSize: maxSize, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	entries, err := simplelru.NewLRU[K, Entry[V]](maxSize, func(key K, _ Entry[V]) {
		if c.onEvict != nil {
			c.onEvict(key)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ttlcache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Get returns the live value for key. A stale entry is removed and reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	now := c.now()
	if entry.stale(now, c.ttl) {
		c.entries.Remove(key)
		return zero, false
	}
	entry.LastAccessAt = now
	c.entries.Add(key, entry)
	return entry.Value, true
}

// Set stores value under key, replacing any previous entry and evicting the
// least recently used entry when the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, Entry[V]{Value: value, InsertedAt: c.now()})
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	hook := c.onEvict
	c.onEvict = nil
	c.entries.Purge()
	c.onEvict = hook
}

// Len returns the number of entries, stale ones included until they are read.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats reports size, ttl and capacity.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{Size: c.Len(), TTL: c.ttl, MaxSize: c.maxSize}
}
