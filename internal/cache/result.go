package cache

import (
	"sync"
	"sync/atomic"

	"github.com/gridfed/hginventory/pkg/types"
)

// ResultCache remembers remote read results per user until the user's last
// local session ends. Entries never expire and writes do not invalidate them.
type ResultCache struct {
	mu       sync.RWMutex
	roots    map[types.UserID]*types.Folder
	typed    map[types.UserID]map[types.FolderType]*types.Folder
	contents map[types.UserID]map[types.FolderID]*types.Collection
	items    map[types.UserID]map[types.FolderID][]*types.Item

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResultCache creates an empty result cache
func NewResultCache() *ResultCache {
	return &ResultCache{
		roots:    make(map[types.UserID]*types.Folder),
		typed:    make(map[types.UserID]map[types.FolderType]*types.Folder),
		contents: make(map[types.UserID]map[types.FolderID]*types.Collection),
		items:    make(map[types.UserID]map[types.FolderID][]*types.Item),
	}
}

// GetRoot returns the cached root folder of user
func (c *ResultCache) GetRoot(user types.UserID) (*types.Folder, bool) {
	c.mu.RLock()
	f, ok := c.roots[user]
	c.mu.RUnlock()
	return f, c.record(ok)
}

// PutRoot caches the root folder of user
func (c *ResultCache) PutRoot(user types.UserID, folder *types.Folder) {
	c.mu.Lock()
	c.roots[user] = folder
	c.mu.Unlock()
}

// GetFolderForType returns the cached system folder of the given type
func (c *ResultCache) GetFolderForType(user types.UserID, t types.FolderType) (*types.Folder, bool) {
	c.mu.RLock()
	f, ok := c.typed[user][t]
	c.mu.RUnlock()
	return f, c.record(ok)
}

// PutFolderForType caches the system folder of the given type
func (c *ResultCache) PutFolderForType(user types.UserID, t types.FolderType, folder *types.Folder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.typed[user]
	if !ok {
		m = make(map[types.FolderType]*types.Folder)
		c.typed[user] = m
	}
	m[t] = folder
}

// GetContent returns the cached content of a folder
func (c *ResultCache) GetContent(user types.UserID, folder types.FolderID) (*types.Collection, bool) {
	c.mu.RLock()
	coll, ok := c.contents[user][folder]
	c.mu.RUnlock()
	return coll, c.record(ok)
}

// PutContent caches the content of a folder
func (c *ResultCache) PutContent(user types.UserID, folder types.FolderID, coll *types.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.contents[user]
	if !ok {
		m = make(map[types.FolderID]*types.Collection)
		c.contents[user] = m
	}
	m[folder] = coll
}

// GetItems returns the cached items of a folder
func (c *ResultCache) GetItems(user types.UserID, folder types.FolderID) ([]*types.Item, bool) {
	c.mu.RLock()
	items, ok := c.items[user][folder]
	c.mu.RUnlock()
	return items, c.record(ok)
}

// PutItems caches the items of a folder
func (c *ResultCache) PutItems(user types.UserID, folder types.FolderID, items []*types.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.items[user]
	if !ok {
		m = make(map[types.FolderID][]*types.Item)
		c.items[user] = m
	}
	m[folder] = items
}

// RemoveAll drops every cached result of user
func (c *ResultCache) RemoveAll(user types.UserID) {
	c.mu.Lock()
	delete(c.roots, user)
	delete(c.typed, user)
	delete(c.contents, user)
	delete(c.items, user)
	c.mu.Unlock()
}

// Has reports whether anything is cached for user
func (c *ResultCache) Has(user types.UserID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, root := c.roots[user]
	return root || len(c.typed[user]) > 0 || len(c.contents[user]) > 0 || len(c.items[user]) > 0
}

// Stats returns cache statistics; Entries counts users with cached results
func (c *ResultCache) Stats() types.CacheStats {
	c.mu.RLock()
	users := make(map[types.UserID]struct{}, len(c.roots))
	for u := range c.roots {
		users[u] = struct{}{}
	}
	for u := range c.typed {
		users[u] = struct{}{}
	}
	for u := range c.contents {
		users[u] = struct{}{}
	}
	for u := range c.items {
		users[u] = struct{}{}
	}
	c.mu.RUnlock()

	return snapshot(c.hits.Load(), c.misses.Load(), len(users))
}

func (c *ResultCache) record(hit bool) bool {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return hit
}
