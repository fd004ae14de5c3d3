// Package cache provides a two-level cache: a bounded in-process fast layer
// in front of the durable store, with TTL expiry enforced on read.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trustlens/trustlens/internal/store"
)

// fastEntry is one slot of the in-process layer.
type fastEntry struct {
	value     []byte
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	FastEntries  int   `json:"fast_entries"`
	DurableCount int64 `json:"durable_count"`
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Evictions    int64 `json:"evictions"`
	Swept        int64 `json:"swept"`
}

// TieredCache layers a bounded FIFO in-process map over a durable store.
// Nothing past its expiry is ever returned: an expired entry found by Get is
// deleted from both layers and reported as a miss. Durable-layer failures are
// logged and swallowed so cache trouble never fails the caller.
type TieredCache struct {
	mu      sync.Mutex
	fast    map[string]fastEntry
	order   []string // insertion order for FIFO eviction
	maxFast int

	durable store.Store

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	swept     atomic.Int64
}

// New creates a tiered cache over the given durable store. maxFast bounds the
// in-process layer.
func New(durable store.Store, maxFast int) *TieredCache {
	if maxFast < 1 {
		maxFast = 1
	}
	return &TieredCache{
		fast:    make(map[string]fastEntry, maxFast),
		maxFast: maxFast,
		durable: durable,
	}
}

// Get returns the cached value for key, or (nil, false) when absent or
// expired. A durable hit repopulates the fast layer.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.fast[key]; ok {
		if now.Before(entry.expiresAt) {
			c.mu.Unlock()
			c.hits.Add(1)
			return entry.value, true
		}
		c.removeFastLocked(key)
	}
	c.mu.Unlock()

	entry, err := c.durable.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Durable cache read failed")
		c.misses.Add(1)
		return nil, false
	}
	if entry == nil {
		c.misses.Add(1)
		return nil, false
	}
	if entry.Expired(now) {
		c.deleteBoth(ctx, key)
		c.misses.Add(1)
		return nil, false
	}

	c.populateFast(key, entry.Value, entry.ExpiresAt)
	c.hits.Add(1)
	return entry.Value, true
}

// Put writes the value to both layers with the given TTL. Durable write
// failures are logged and swallowed.
func (c *TieredCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)
	c.populateFast(key, value, expiresAt)

	if err := c.durable.Put(ctx, key, value, ttl); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Durable cache write failed")
	}
}

// Invalidate removes the key from both layers.
func (c *TieredCache) Invalidate(ctx context.Context, key string) {
	c.deleteBoth(ctx, key)
}

// Sweep removes all durable entries past expiry. Returns the number removed.
func (c *TieredCache) Sweep(ctx context.Context) int {
	keys, err := c.durable.ScanExpired(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Cache sweep scan failed")
		return 0
	}

	removed := 0
	for _, key := range keys {
		c.deleteBoth(ctx, key)
		removed++
	}
	if removed > 0 {
		c.swept.Add(int64(removed))
		log.Debug().Int("removed", removed).Msg("Cache sweep complete")
	}
	return removed
}

// Stats returns a snapshot of cache counters.
func (c *TieredCache) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	fastLen := len(c.fast)
	c.mu.Unlock()

	durableCount, err := c.durable.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Durable cache count failed")
	}

	return Stats{
		FastEntries:  fastLen,
		DurableCount: durableCount,
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
		Swept:        c.swept.Load(),
	}
}

func (c *TieredCache) populateFast(key string, value []byte, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.fast[key]; !exists {
		for len(c.fast) >= c.maxFast && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			if _, ok := c.fast[oldest]; ok {
				delete(c.fast, oldest)
				c.evictions.Add(1)
			}
		}
		c.order = append(c.order, key)
	}
	c.fast[key] = fastEntry{value: value, expiresAt: expiresAt}
}

func (c *TieredCache) removeFastLocked(key string) {
	delete(c.fast, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *TieredCache) deleteBoth(ctx context.Context, key string) {
	c.mu.Lock()
	c.removeFastLocked(key)
	c.mu.Unlock()

	if err := c.durable.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Durable cache delete failed")
	}
}
