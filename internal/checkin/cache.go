package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"ms-checkin/internal/models"
)

// DecisionCache holds recent decisions keyed by CacheKey.
type DecisionCache interface {
	Get(ctx context.Context, key string) (models.Decision, bool, error)
	Put(ctx context.Context, key string, decision models.Decision, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func CacheKey(eventID int64, code string) string {
	return fmt.Sprintf("%d:%s", eventID, code)
}

type cacheEntry struct {
	decision  models.Decision
	expiresAt time.Time
}

// MemoryCache is a bounded in-process DecisionCache. When full, the oldest
// inserted entry is evicted first; reads never refresh an entry's position.
type MemoryCache struct {
	lru *expirable.LRU[string, cacheEntry]
	now func() time.Time
}

func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1000
	}
	// Expiry is per entry and checked against c.now, so the LRU itself runs
	// without a TTL and without its background reaper.
	return &MemoryCache{
		lru: expirable.NewLRU[string, cacheEntry](capacity, nil, 0),
		now: time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (models.Decision, bool, error) {
	entry, ok := c.lru.Peek(key)
	if !ok {
		return models.Decision{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return models.Decision{}, false, nil
	}
	return entry.decision, true, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, decision models.Decision, ttl time.Duration) error {
	// Remove first so a rewrite counts as a fresh insertion.
	c.lru.Remove(key)
	c.lru.Add(key, cacheEntry{decision: decision, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.lru.Remove(key)
	}
	return nil
}

func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
