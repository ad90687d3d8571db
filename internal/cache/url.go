package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gridfed/hginventory/pkg/types"
)

// URLCache memoizes the home inventory endpoint of foreign users.
// Only successful resolutions are memoized; local users and unresolvable users
// are looked up again on every call.
type URLCache struct {
	mu   sync.RWMutex
	urls map[types.UserID]types.Endpoint

	identity types.IdentityResolver
	sessions types.SessionHost

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewURLCache creates a URL cache. A nil resolver treats every user as local;
// a nil session host skips the presence scan.
func NewURLCache(identity types.IdentityResolver, sessions types.SessionHost) *URLCache {
	return &URLCache{
		urls:     make(map[types.UserID]types.Endpoint),
		identity: identity,
		sessions: sessions,
	}
}

// Lookup returns the endpoint serving user's inventory, or the zero Endpoint
// when the local service is responsible
func (c *URLCache) Lookup(ctx context.Context, user types.UserID) types.Endpoint {
	endpoint, _ := c.Resolve(ctx, user)
	return endpoint
}

// Resolve is Lookup that also reports whether the endpoint was memoized
func (c *URLCache) Resolve(ctx context.Context, user types.UserID) (types.Endpoint, bool) {
	c.mu.RLock()
	endpoint, ok := c.urls[user]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return endpoint, true
	}
	c.misses.Add(1)

	if c.identity == nil || c.identity.IsLocalUser(ctx, user) {
		return "", false
	}

	endpoint = c.fromSessions(user)
	if endpoint.IsZero() {
		endpoint = types.CanonicalEndpoint(c.identity.ServiceURL(ctx, user, types.InventoryServiceKey))
	}
	if endpoint.IsZero() {
		return "", false
	}

	c.mu.Lock()
	c.urls[user] = endpoint
	c.mu.Unlock()
	return endpoint, false
}

func (c *URLCache) fromSessions(user types.UserID) types.Endpoint {
	if c.sessions == nil {
		return ""
	}
	for _, s := range c.sessions.Sessions() {
		p, ok := s.Presence(user)
		if !ok {
			continue
		}
		if endpoint := types.CanonicalEndpoint(p.ServiceURLs[types.InventoryServiceKey]); !endpoint.IsZero() {
			return endpoint
		}
	}
	return ""
}

// Remove forgets the memoized endpoint of user
func (c *URLCache) Remove(user types.UserID) {
	c.mu.Lock()
	delete(c.urls, user)
	c.mu.Unlock()
}

// Len returns the number of memoized endpoints
func (c *URLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.urls)
}

// Stats returns cache statistics
func (c *URLCache) Stats() types.CacheStats {
	return snapshot(c.hits.Load(), c.misses.Load(), c.Len())
}

func snapshot(hits, misses uint64, entries int) types.CacheStats {
	stats := types.CacheStats{Hits: hits, Misses: misses, Entries: entries}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
