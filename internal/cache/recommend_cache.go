// Package cache decorates the recommender with a Redis-backed result cache.
// The core recommender stays cache-free; this decorator is wired in at the
// composition root. Redis failures fail open: the caller just sees a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickgig/backend/internal/capability"
	"github.com/quickgig/backend/internal/metrics"
	"github.com/quickgig/backend/internal/recommend"
)

// DefaultTTL keeps entries short-lived; reputation mirrors and pricing move.
const DefaultTTL = 60 * time.Second

// RecommendCache wraps a recommend.Provider with Redis get/set.
type RecommendCache struct {
	inner   recommend.Provider
	rdb     *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *log.Logger
}

// New creates a caching decorator around inner.
func New(inner recommend.Provider, rdb *redis.Client, ttl time.Duration, m *metrics.Metrics) *RecommendCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RecommendCache{
		inner:   inner,
		rdb:     rdb,
		ttl:     ttl,
		metrics: m,
		logger:  log.New(log.Writer(), "[RecCache] ", log.LstdFlags),
	}
}

// Recommend serves from Redis when possible, otherwise delegates and stores.
func (c *RecommendCache) Recommend(ctx context.Context, tag capability.Capability, opts recommend.Options) recommend.AgentRecommendation {
	key := cacheKey(tag, opts)

	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var rec recommend.AgentRecommendation
		if err := json.Unmarshal(cached, &rec); err == nil {
			c.metrics.RecordCacheHit()
			return rec
		}
		// Corrupt entry: drop it and fall through to the source
		c.rdb.Del(ctx, key)
	}
	c.metrics.RecordCacheMiss()

	rec := c.inner.Recommend(ctx, tag, opts)

	// Do not cache degraded (empty-on-error) results indistinguishably from
	// genuine empties; both are cheap to recompute, so only cache non-empty.
	if rec.TotalFound > 0 {
		if payload, err := json.Marshal(rec); err == nil {
			if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				c.logger.Printf("⚠️  Cache write failed for %s: %v", tag, err)
			}
		}
	}

	return rec
}

// RecommendMultiple fans out through the cached Recommend path.
func (c *RecommendCache) RecommendMultiple(ctx context.Context, caps []capability.Capability, opts recommend.Options) map[capability.Capability]recommend.AgentRecommendation {
	return recommend.FanOut(ctx, c, caps, opts, recommend.DefaultFanOutTimeout)
}

// cacheKey fingerprints the capability plus the effective query options.
func cacheKey(tag capability.Capability, opts recommend.Options) string {
	data := fmt.Sprintf("%s|%d|%d|%s", tag, opts.MinReputation, opts.Limit, opts.SortBy)
	hash := sha256.Sum256([]byte(data))
	return "quickgig:recommend:" + hex.EncodeToString(hash[:])
}
