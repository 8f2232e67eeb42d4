package lifecycle

import (
	"sync"
	"time"
)

// overviewCache is a small TTL cache for computed statistics. It never
// drifts on its own: every mutating engine call publishes an event that
// deletes the cached entry.
type overviewCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
	ttl  time.Duration
}

type cacheEntry struct {
	value      any
	expiration time.Time
}

func newOverviewCache(ttl time.Duration) *overviewCache {
	return &overviewCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
	}
}

func (c *overviewCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

func (c *overviewCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}

func (c *overviewCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}
