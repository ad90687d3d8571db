package types

import (
	"context"
)

// InventoryService defines the inventory operation surface shared by the
// local store, remote connectors and the router itself
type InventoryService interface {
	// User lifecycle
	CreateUserInventory(ctx context.Context, user UserID) Result[bool]
	HasInventoryForUser(ctx context.Context, user UserID) Result[bool]

	// Folder reads
	GetInventorySkeleton(ctx context.Context, user UserID) Result[[]*Folder]
	GetRootFolder(ctx context.Context, user UserID) Result[*Folder]
	GetFolderForType(ctx context.Context, user UserID, folderType FolderType) Result[*Folder]
	GetFolderContent(ctx context.Context, user UserID, folderID FolderID) Result[*Collection]
	GetMultipleFoldersContent(ctx context.Context, user UserID, folderIDs []FolderID) Result[[]*Collection]
	GetFolderItems(ctx context.Context, user UserID, folderID FolderID) Result[[]*Item]
	GetFolder(ctx context.Context, user UserID, folderID FolderID) Result[*Folder]

	// Folder writes
	AddFolder(ctx context.Context, folder *Folder) Result[bool]
	UpdateFolder(ctx context.Context, folder *Folder) Result[bool]
	MoveFolder(ctx context.Context, folder *Folder) Result[bool]
	PurgeFolder(ctx context.Context, folder *Folder) Result[bool]
	DeleteFolders(ctx context.Context, owner UserID, folderIDs []FolderID) Result[bool]

	// Item operations
	AddItem(ctx context.Context, item *Item) Result[bool]
	UpdateItem(ctx context.Context, item *Item) Result[bool]
	MoveItems(ctx context.Context, owner UserID, items []*Item) Result[bool]
	DeleteItems(ctx context.Context, owner UserID, itemIDs []ItemID) Result[bool]
	GetItem(ctx context.Context, user UserID, itemID ItemID) Result[*Item]
	GetMultipleItems(ctx context.Context, user UserID, itemIDs []ItemID) Result[[]*Item]

	// Permissions
	GetAssetPermissions(ctx context.Context, user UserID, assetID AssetID) Result[int]
}

// IdentityResolver answers account questions for a user
type IdentityResolver interface {
	// IsLocalUser reports whether the account is served by the local grid
	IsLocalUser(ctx context.Context, user UserID) bool

	// ServiceURL returns the persisted service URL recorded under key for a
	// foreign user, or "" when none is known
	ServiceURL(ctx context.Context, user UserID, key string) string
}

// Session is one locally hosted session (a simulated region) that may carry
// presences of users
type Session interface {
	Name() string
	Presence(user UserID) (Presence, bool)
}

// SessionHost exposes the sessions currently hosted by this process
type SessionHost interface {
	Sessions() []Session
}

// ConnectorFactory constructs an inventory service bound to one remote endpoint
type ConnectorFactory func(endpoint Endpoint) (InventoryService, error)
