package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ecoshop/ecoshop/internal/domain"
)

// MemoryCache is a thread-safe in-memory cache with TTL support.
// Values are copied on the way in and out so callers never share buffers.
type MemoryCache struct {
	data *gocache.Cache
}

// NewMemoryCache creates a new in-memory cache that purges expired entries every 10 minutes
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := c.data.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), v.([]byte)...), nil
}

// Set stores a value in the cache with TTL. A non-positive TTL never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.data.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.data.Delete(key)
	return nil
}

// Exists checks if a key exists in the cache and is not expired
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.data.Get(key)
	return ok, nil
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	return c.data.ItemCount()
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.data.Flush()
}
