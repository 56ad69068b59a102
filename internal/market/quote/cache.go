package quote

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Cache is a small TTL cache for mid-prices, injected into providers so tests
// can pin the clock.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	mid decimal.Decimal
	at  time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: map[string]cacheEntry{}}
}

// WithClock replaces the cache's time source, for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Get(key string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.at) > c.ttl {
		return decimal.Decimal{}, false
	}
	return e.mid, true
}

func (c *Cache) Put(key string, mid decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{mid: mid, at: c.now()}
}
