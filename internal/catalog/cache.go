package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProductCache is a read-through cache for product lookups. Stale
// quantity snapshots inside cached ingredients are harmless: the ledger
// validates reservations against live quantities, the cache only serves
// the product composition.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache constructs ProductCache.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{client: client, ttl: ttl}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("catalog:product:%d", id)
}

// Get returns the cached product and whether it was present.
func (c *ProductCache) Get(ctx context.Context, id int64) (Product, bool) {
	if c == nil || c.client == nil {
		return Product{}, false
	}
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return Product{}, false
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, false
	}
	return p, true
}

// Set stores the product for the configured TTL. Failures are silent;
// the cache is an optimisation, not a source of truth.
func (c *ProductCache) Set(ctx context.Context, p Product) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(p.ID), data, c.ttl).Err()
}

// Invalidate drops the cached product after a mutation.
func (c *ProductCache) Invalidate(ctx context.Context, id int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(id)).Err()
}
