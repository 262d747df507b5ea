// Package ttl provides a small generic time-boxed cache. Both the exchange
// manager's network-metadata cache and other per-key expiring lookups share
// it so expiry semantics cannot diverge between call sites.
package ttl

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// call tracks one in-flight fetch so concurrent misses on the same key share
// a single upstream request.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Cache is a mutex-guarded map of key -> {value, expiresAt}. The zero value
// is not usable; construct with New.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]entry[V]
	inflight map[K]*call[V]
	ttl      time.Duration
	now      func() time.Time
}

// New creates a Cache whose entries expire ttl after they are set.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		entries:  make(map[K]entry[V]),
		inflight: make(map[K]*call[V]),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces the cache's time source. Test hook.
func (c *Cache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh expiry.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// GetOrFetch returns the cached value for key, or calls fetch and caches its
// result. A fetch error is returned to the caller and nothing is cached, so
// the next call retries. Concurrent misses on the same key are collapsed into
// one fetch; the waiters share the leader's result, errors included.
func (c *Cache[K, V]) GetOrFetch(ctx context.Context, key K, fetch func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.now().After(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		case <-cl.done:
		}
		return cl.val, cl.err
	}
	cl := &call[V]{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.val, cl.err = fetch(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if cl.err == nil {
		c.entries[key] = entry[V]{value: cl.val, expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	close(cl.done)
	return cl.val, cl.err
}

// Len returns the number of entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every expired entry.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
