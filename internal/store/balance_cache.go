package store

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cachedBalance struct {
	value   decimal.Decimal
	expires time.Time
}

type balanceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]cachedBalance
}

func newBalanceCache(ttl time.Duration) *balanceCache {
	return &balanceCache{ttl: ttl, entries: map[int64]cachedBalance{}}
}

func (c *balanceCache) get(userID int64, now time.Time) (decimal.Decimal, bool) {
	if c.ttl <= 0 {
		return decimal.Zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || now.After(e.expires) {
		return decimal.Zero, false
	}
	return e.value, true
}

func (c *balanceCache) put(userID int64, v decimal.Decimal, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[userID] = cachedBalance{value: v, expires: now.Add(c.ttl)}
	c.mu.Unlock()
}

func (c *balanceCache) invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func (c *balanceCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}
