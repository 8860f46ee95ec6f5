package model

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is a read-through wrapper over a Registry so a long-running service
// does not re-read artifacts from disk every run. Loading is idempotent, so
// the cache is purely an optimization; misses (nil models) are not cached,
// which lets newly trained artifacts show up on the next run.
type Cache struct {
	registry *Registry
	cache    *ttlcache.Cache[string, Model]
}

func NewCache(registry *Registry, ttl time.Duration) *Cache {
	c := &Cache{
		registry: registry,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, Model](ttl),
		),
	}
	go c.cache.Start()
	return c
}

// Load resolves a model through the cache.
func (c *Cache) Load(city, horizon string) Model {
	key := city + "|" + horizon
	if item := c.cache.Get(key); item != nil {
		return item.Value()
	}
	m := c.registry.Load(city, horizon)
	if m != nil {
		c.cache.Set(key, m, ttlcache.DefaultTTL)
	}
	return m
}

// Stop halts the cache's eviction loop.
func (c *Cache) Stop() {
	c.cache.Stop()
}
