// Package identity provides a static user directory that tells local accounts
// apart from foreign ones and records where foreign inventories live.
package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gridfed/hginventory/internal/config"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// Directory is an in-memory types.IdentityResolver. Users with a recorded
// service URL set are foreign; everyone else is local.
type Directory struct {
	mu      sync.RWMutex
	foreign map[types.UserID]map[string]string
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{foreign: make(map[types.UserID]map[string]string)}
}

// FromConfig builds a directory from the identity configuration section
func FromConfig(cfg config.IdentityConfig) (*Directory, error) {
	d := NewDirectory()
	for _, u := range cfg.ForeignUsers {
		id, err := uuid.Parse(u.UserID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "invalid foreign user id", err).
				WithComponent("identity").
				WithContext("user_id", u.UserID)
		}
		d.SetServiceURL(id, types.InventoryServiceKey, u.InventoryURL)
	}
	return d, nil
}

// SetServiceURL records a service URL for a foreign user
func (d *Directory) SetServiceURL(user types.UserID, key, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	urls, ok := d.foreign[user]
	if !ok {
		urls = make(map[string]string)
		d.foreign[user] = urls
	}
	urls[key] = url
}

// Forget removes a foreign user, making them local again
func (d *Directory) Forget(user types.UserID) {
	d.mu.Lock()
	delete(d.foreign, user)
	d.mu.Unlock()
}

// IsLocalUser reports whether user has no foreign record
func (d *Directory) IsLocalUser(_ context.Context, user types.UserID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, foreign := d.foreign[user]
	return !foreign
}

// ServiceURL returns the recorded URL for key, or ""
func (d *Directory) ServiceURL(_ context.Context, user types.UserID, key string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.foreign[user][key]
}

var _ types.IdentityResolver = (*Directory)(nil)
