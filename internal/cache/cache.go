// Package cache provides a pull-through TTL cache that can fall back to the
// last known value when the loader fails.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache is a concurrent-safe LRU cache with TTL expiration. Expired entries
// are kept until evicted so they can serve as a stale fallback.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	fallback   func(error) bool
	slot       func(key string) string
	last       map[string]V // by slot; survives Invalidate and eviction
	now        func() time.Time
	group      singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	stale  atomic.Int64
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	StaleHits  int64   `json:"stale_hits"`
	HitRate    float64 `json:"hit_rate"`
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	fallback func(error) bool
	slot     func(key string) string
	now      func() time.Time
}

// WithFallback limits stale fallback to loader errors accepted by fn. By
// default every loader error falls back when a last known value exists.
func WithFallback(fn func(error) bool) Option {
	return func(o *options) { o.fallback = fn }
}

// WithLastKnownSlot groups keys into slots and keeps the latest loaded value
// of each slot as a fallback. A failed load of any key in the slot can then
// fall back to it, even after Invalidate or when the key itself was never
// loaded.
func WithLastKnownSlot(slot func(key string) string) Option {
	return func(o *options) { o.slot = slot }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Cache with the given capacity and TTL.
func New[V any](maxEntries int, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{
		fallback: func(error) bool { return true },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache[V]{
		entries:    make(map[string]*entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		fallback:   o.fallback,
		slot:       o.slot,
		last:       make(map[string]V),
		now:        o.now,
	}
}

// Get returns a fresh value and its expiry. Expired entries are a miss.
func (c *Cache[V]) Get(key string) (V, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		c.misses.Add(1)
		return zero, time.Time{}, false
	}
	c.touch(key)
	c.hits.Add(1)
	return e.value, e.expiresAt, true
}

// Put stores a value, evicting the least recently used entry at capacity.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = &entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.touch(key)
}

// GetOrLoad returns the fresh cached value for key or calls load on a miss.
// Concurrent misses for the same key share one load. If load fails and a
// last known value exists (even expired), that value is returned with
// stale set and a nil error.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (value V, stale bool, err error) {
	if v, _, ok := c.Get(key); ok {
		return v, false, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		c.Put(key, v)
		c.remember(key, v)
		return v, nil
	})
	if err == nil {
		return res.(V), false, nil
	}

	if last, ok := c.lastKnown(key); ok && c.fallback(err) {
		c.stale.Add(1)
		zap.L().Warn("cache: serving stale value",
			zap.String("key", key),
			zap.Error(err),
		)
		return last, true, nil
	}
	var zero V
	return zero, false, err
}

// Invalidate removes every entry whose key starts with prefix. An empty
// prefix clears the cache.
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []string
	for _, key := range c.order {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		} else {
			remaining = append(remaining, key)
		}
	}
	c.order = remaining
}

// Stats returns cache performance statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		StaleHits:  c.stale.Load(),
		HitRate:    hitRate,
	}
}

func (c *Cache[V]) remember(key string, v V) {
	if c.slot == nil {
		return
	}
	c.mu.Lock()
	c.last[c.slot(key)] = v
	c.mu.Unlock()
}

// lastKnown prefers the key's own entry, expired or not, over its slot.
func (c *Cache[V]) lastKnown(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.value, true
	}
	if c.slot != nil {
		if v, ok := c.last[c.slot(key)]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// touch moves key to the back of the LRU order. Callers hold mu.
func (c *Cache[V]) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}
