package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Cache is a mutex-guarded key/value store with per-entry expiry. Reads of
// expired entries behave as misses and drop the entry; a periodic Cleanup
// sweep bounds memory for keys that are never read again.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
}

// New creates an empty cache. Entries stored without an explicit TTL use
// defaultTTL.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
	}
}

// Get returns the stored value for key, treating expired entries as absent
// and removing them.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, 0)
}

// SetTTL stores value under key; ttl <= 0 falls back to the default TTL.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: time.Now(), ttl: ttl}
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// GetOrSet returns the cached value for key, populating it via factory on a
// miss. The factory runs outside the lock, so concurrent misses on the same
// key invoke it independently (last write wins); callers must pass an
// idempotent factory. Factory errors are returned without caching.
func (c *Cache[V]) GetOrSet(key string, factory func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	value, err := factory()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, value)
	return value, nil
}

// Cleanup removes every expired entry and reports how many were dropped.
func (c *Cache[V]) Cleanup() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, expired ones included until swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
