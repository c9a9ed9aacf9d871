package respcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Cache memoizes generation responses keyed by a request hash.
//
// It degrades gracefully: when the backing store fails, reads behave as
// misses and writes as no-ops. Callers must never fail a request because the
// cache is unavailable.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger

	hits   uint64
	misses uint64
}

// Stats holds cache hit/miss counters
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// New creates a cache over the given store with a default TTL for writes
func New(store Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Key derives a deterministic cache key from a prompt and its parameters
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0}) // separator so ("ab","c") != ("a","bc")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up a cached value. Store failures count as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", zap.Error(err))
		atomic.AddUint64(&c.misses, 1)
		return "", false
	}
	if !found {
		atomic.AddUint64(&c.misses, 1)
		return "", false
	}

	atomic.AddUint64(&c.hits, 1)
	return value, true
}

// Set writes a value with the configured TTL. Store failures are logged and
// swallowed.
func (c *Cache) Set(ctx context.Context, key, value string) {
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

// Exists reports whether the key currently resolves to a live entry.
// It does not touch the hit/miss counters.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	_, found, err := c.store.Get(ctx, key)
	if err != nil {
		return false
	}
	return found
}

// Delete removes one entry. Store failures are logged and swallowed.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("cache delete failed", zap.Error(err))
	}
}

// DeletePattern removes all entries matching a glob pattern and returns the
// number removed (zero when the store is unavailable)
func (c *Cache) DeletePattern(ctx context.Context, pattern string) int {
	n, err := c.store.DeletePattern(ctx, pattern)
	if err != nil {
		c.logger.Warn("cache pattern delete failed", zap.Error(err))
		return 0
	}
	return n
}

// Stats returns the hit/miss counters
func (c *Cache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{Hits: hits, Misses: misses, HitRate: rate}
}
