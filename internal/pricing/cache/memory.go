// Package cache holds price quote caches: an in-process one for single-node
// deployments and a Redis one shared across instances.
package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"bullion/internal/pricing"
)

// MemoryCache keeps quotes in process with per-entry expiry.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a cache that purges expired quotes every cleanup interval.
func NewMemoryCache(defaultTTL, cleanup time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(defaultTTL, cleanup)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*pricing.Quote, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	q := v.(pricing.Quote)
	return &q, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, quote *pricing.Quote, ttl time.Duration) error {
	c.store.Set(key, *quote, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
	return nil
}
