package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
)

const keyPrefix = "report:"

// MemcachedCache implements Cache using memcached. Reports are stored as JSON.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// memcached keys are limited to 250 bytes without spaces; range keys are
// short and use only digits, dashes, colons and underscores.
func (c *MemcachedCache) key(k string) string {
	return keyPrefix + k
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.Report, bool, error) {
	if ctx.Err() != nil {
		return models.Report{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.Report{}, false, nil
		}
		return models.Report{}, false, err
	}
	var rep models.Report
	if err := json.Unmarshal(item.Value, &rep); err != nil {
		return models.Report{}, false, err
	}
	return rep, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.Report, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expiration(ttl),
	})
}

// expiration converts ttl to memcached seconds. Values above 30 days would be
// read as a unix timestamp, so they fall back to one hour.
func expiration(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	sec := int32(ttl.Seconds())
	if sec <= 0 || sec > maxRelativeExp {
		return 3600
	}
	return sec
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
