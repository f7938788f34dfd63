package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

// Cache defines the interface for report caching implementations.
// Get returns a cached report if present and not expired, Set stores it with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.Report, bool, error)
	Set(ctx context.Context, key string, value models.Report, ttl time.Duration) error
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.Report
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get returns (report, true, nil) on hit and (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return models.Report{}, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.Report{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores a report with the given TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Report, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Key builds the cache key for a range of one dataset version. A reload
// changes the version, so stale reports are never served after it.
func Key(version string, r models.DateRange) string {
	return version + ":" + r.Key()
}
