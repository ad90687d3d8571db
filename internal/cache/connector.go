package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/logging"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// DefaultConnectorTTL is the lifetime of a cached connector
const DefaultConnectorTTL = 60 * time.Second

// ConnectorCacheConfig represents connector cache configuration
type ConnectorCacheConfig struct {
	TTL     time.Duration
	Factory types.ConnectorFactory
	Logger  *zap.Logger

	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// ConnectorCache holds at most one live connector per remote endpoint.
// Entries expire a fixed TTL after insertion and are evicted lazily on access.
type ConnectorCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	factory types.ConnectorFactory
	now     func() time.Time
	logger  *zap.Logger
	entries map[types.Endpoint]*connectorEntry

	stats types.CacheStats
}

type connectorEntry struct {
	service    types.InventoryService
	insertedAt time.Time
}

// NewConnectorCache creates a connector cache
func NewConnectorCache(config ConnectorCacheConfig) (*ConnectorCache, error) {
	if config.Factory == nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "connector factory is required").
			WithComponent("connector_cache")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConnectorTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &ConnectorCache{
		ttl:     config.TTL,
		factory: config.Factory,
		now:     config.Now,
		logger:  logging.OrNop(config.Logger),
		entries: make(map[types.Endpoint]*connectorEntry),
	}, nil
}

// GetOrCreate returns the live connector for endpoint, constructing one when
// none exists or the cached one has expired. created reports a construction.
func (c *ConnectorCache) GetOrCreate(endpoint types.Endpoint) (svc types.InventoryService, created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[endpoint]; ok {
		if now.Sub(entry.insertedAt) < c.ttl {
			c.stats.Hits++
			c.updateHitRate()
			return entry.service, false, nil
		}
		delete(c.entries, endpoint)
		c.stats.Evictions++
	}
	c.stats.Misses++
	c.updateHitRate()

	svc, err = c.factory(endpoint)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeConnectorBuild, "failed to construct connector", err).
			WithComponent("connector_cache").
			WithContext("endpoint", endpoint.String())
	}

	c.entries[endpoint] = &connectorEntry{service: svc, insertedAt: now}
	c.stats.Constructions++
	c.logger.Debug("Constructed inventory connector",
		zap.String("endpoint", endpoint.String()),
		zap.Duration("ttl", c.ttl))

	return svc, true, nil
}

// Purge evicts expired entries and returns how many were removed.
// GetOrCreate only replaces the entry it is asked for, so long-running
// owners call Purge periodically to drop endpoints nobody asks for again.
func (c *ConnectorCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for endpoint, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, endpoint)
			removed++
		}
	}
	c.stats.Evictions += uint64(removed)
	return removed
}

// Len returns the number of cached connectors, expired or not
func (c *ConnectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics
func (c *ConnectorCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	return stats
}

func (c *ConnectorCache) updateHitRate() {
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		c.stats.HitRate = float64(c.stats.Hits) / float64(total)
	}
}
