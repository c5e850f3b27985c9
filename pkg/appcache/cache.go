// Package appcache is a process-local cache of per-app sign-in policy.
// Entries are invalidated through a Redis Streams feed so policy flips
// propagate ahead of the TTL.
package appcache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.insight.network/gateway/pkg/session"
)

// Cache keeps the single-sign-on flag of recently seen apps in memory
// in front of the shared store.
type Cache struct {
	Store *session.Store
	Cache *lru.Cache
	TTL   time.Duration
}

type cacheEntry struct {
	singleSignOn bool
	lastUpdated  time.Time
}

// NewCache creates a caching layer that keeps the number of entries specified.
func NewCache(store *session.Store, cacheSize int, ttl time.Duration) (*Cache, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Cache{
		Store: store,
		Cache: cache,
		TTL:   ttl,
	}, nil
}

// SingleSignOn consults the in-memory cache for an app's policy flag.
// If the cache is missed, it falls back to LookupSlow.
func (c *Cache) SingleSignOn(ctx context.Context, appID string) (bool, error) {
	entryI, ok := c.Cache.Get(appID)
	if ok {
		// Fast path: read from cache.
		entry := entryI.(*cacheEntry)
		now := time.Now()
		if now.Sub(entry.lastUpdated) > c.TTL {
			c.Cache.Remove(appID)
			c.GC() // Also prune other expired entries while we're at it.
			return c.LookupSlow(ctx, appID)
		}
		return entry.singleSignOn, nil
	}
	// Slow path: read from the store.
	return c.LookupSlow(ctx, appID)
}

// LookupSlow reads from the store, writes to the cache and returns.
func (c *Cache) LookupSlow(ctx context.Context, appID string) (bool, error) {
	sso, err := c.Store.AppSingleSignOn(ctx, appID)
	if err != nil {
		return false, err
	}
	c.Cache.Add(appID, &cacheEntry{
		singleSignOn: sso,
		lastUpdated:  time.Now(),
	})
	return sso, nil
}

// Invalidate drops an app's cached policy flag.
func (c *Cache) Invalidate(appID string) {
	c.Cache.Remove(appID)
}

// GC removes all expired entries.
func (c *Cache) GC() {
	now := time.Now()
	for {
		appID, entryI, ok := c.Cache.GetOldest()
		if !ok {
			break
		}
		entry := entryI.(*cacheEntry)
		if now.Sub(entry.lastUpdated) <= c.TTL {
			break
		}
		c.Cache.Remove(appID)
	}
}
