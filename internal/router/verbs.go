package router

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/gridfed/hginventory/pkg/types"
)

// CreateUserInventory always runs on the local service; inventories are only
// created on the home grid
func (r *Router) CreateUserInventory(ctx context.Context, user types.UserID) types.Result[bool] {
	start := r.now()
	res := r.local.CreateUserInventory(ctx, user)
	r.record("CreateUserInventory", target{}, start, res.Status, res.Err)
	return res
}

func (r *Router) HasInventoryForUser(ctx context.Context, user types.UserID) types.Result[bool] {
	return forward(ctx, r, "HasInventoryForUser", user, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.HasInventoryForUser(ctx, user)
		})
}

func (r *Router) GetInventorySkeleton(ctx context.Context, user types.UserID) types.Result[[]*types.Folder] {
	return forward(ctx, r, "GetInventorySkeleton", user, callOptions{serialize: true}, nil,
		func(svc types.InventoryService) types.Result[[]*types.Folder] {
			return svc.GetInventorySkeleton(ctx, user)
		})
}

func (r *Router) GetRootFolder(ctx context.Context, user types.UserID) types.Result[*types.Folder] {
	hooks := &cacheHooks[*types.Folder]{
		get: func() (*types.Folder, bool) { return r.results.GetRoot(user) },
		put: func(f *types.Folder) { r.results.PutRoot(user, f) },
	}
	return forward(ctx, r, "GetRootFolder", user, callOptions{}, hooks,
		func(svc types.InventoryService) types.Result[*types.Folder] {
			return svc.GetRootFolder(ctx, user)
		})
}

func (r *Router) GetFolderForType(ctx context.Context, user types.UserID, folderType types.FolderType) types.Result[*types.Folder] {
	hooks := &cacheHooks[*types.Folder]{
		get: func() (*types.Folder, bool) { return r.results.GetFolderForType(user, folderType) },
		put: func(f *types.Folder) { r.results.PutFolderForType(user, folderType, f) },
	}
	return forward(ctx, r, "GetFolderForType", user, callOptions{}, hooks,
		func(svc types.InventoryService) types.Result[*types.Folder] {
			return svc.GetFolderForType(ctx, user, folderType)
		})
}

func (r *Router) GetFolderContent(ctx context.Context, user types.UserID, folderID types.FolderID) types.Result[*types.Collection] {
	return forward(ctx, r, "GetFolderContent", user, callOptions{}, r.contentHooks(user, folderID),
		func(svc types.InventoryService) types.Result[*types.Collection] {
			return svc.GetFolderContent(ctx, user, folderID)
		})
}

func (r *Router) contentHooks(user types.UserID, folderID types.FolderID) *cacheHooks[*types.Collection] {
	return &cacheHooks[*types.Collection]{
		get: func() (*types.Collection, bool) { return r.results.GetContent(user, folderID) },
		put: func(c *types.Collection) { r.results.PutContent(user, folderID, c) },
	}
}

// GetMultipleFoldersContent forwards the whole list to the local service.
// For remote users each folder goes through the cached GetFolderContent path
// with bounded concurrency. The result always holds one slot per input id in
// input order; folders that were not found or failed to load are nil. When any
// folder failed the status is StatusFailed with the first error, and the
// folders that did load are kept in Value.
func (r *Router) GetMultipleFoldersContent(ctx context.Context, user types.UserID, folderIDs []types.FolderID) types.Result[[]*types.Collection] {
	if len(folderIDs) == 0 {
		return types.Result[[]*types.Collection]{Value: []*types.Collection{}, Status: types.StatusRejected}
	}

	start := r.now()
	endpoint := r.lookup(ctx, user)
	if endpoint.IsZero() {
		res := r.local.GetMultipleFoldersContent(ctx, user, folderIDs)
		r.record("GetMultipleFoldersContent", target{}, start, res.Status, res.Err)
		return res
	}

	out := make([]*types.Collection, len(folderIDs))
	errs := make([]error, len(folderIDs))
	var g errgroup.Group
	g.SetLimit(r.options.MultiFolderConcurrency)
	for i, id := range folderIDs {
		g.Go(func() error {
			res := r.GetFolderContent(ctx, user, id)
			if res.Status == types.StatusFailed {
				errs[i] = res.Err
				return nil
			}
			out[i] = res.Value
			return nil
		})
	}
	_ = g.Wait()

	res := types.OKResult(out)
	for _, err := range errs {
		if err != nil {
			res.Status = types.StatusFailed
			res.Err = err
			break
		}
	}
	r.record("GetMultipleFoldersContent", target{endpoint: endpoint}, start, res.Status, res.Err)
	return res
}

func (r *Router) GetFolderItems(ctx context.Context, user types.UserID, folderID types.FolderID) types.Result[[]*types.Item] {
	hooks := &cacheHooks[[]*types.Item]{
		get: func() ([]*types.Item, bool) { return r.results.GetItems(user, folderID) },
		put: func(items []*types.Item) { r.results.PutItems(user, folderID, items) },
	}
	return forward(ctx, r, "GetFolderItems", user, callOptions{}, hooks,
		func(svc types.InventoryService) types.Result[[]*types.Item] {
			return svc.GetFolderItems(ctx, user, folderID)
		})
}

func (r *Router) GetFolder(ctx context.Context, user types.UserID, folderID types.FolderID) types.Result[*types.Folder] {
	return forward(ctx, r, "GetFolder", user, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[*types.Folder] {
			return svc.GetFolder(ctx, user, folderID)
		})
}

func (r *Router) AddFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "AddFolder", folder.Owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.AddFolder(ctx, folder)
		})
}

func (r *Router) UpdateFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "UpdateFolder", folder.Owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.UpdateFolder(ctx, folder)
		})
}

func (r *Router) MoveFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "MoveFolder", folder.Owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.MoveFolder(ctx, folder)
		})
}

func (r *Router) PurgeFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "PurgeFolder", folder.Owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.PurgeFolder(ctx, folder)
		})
}

// DeleteFolders reports false for an empty list without forwarding it
func (r *Router) DeleteFolders(ctx context.Context, owner types.UserID, folderIDs []types.FolderID) types.Result[bool] {
	if len(folderIDs) == 0 {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "DeleteFolders", owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.DeleteFolders(ctx, owner, folderIDs)
		})
}

func (r *Router) AddItem(ctx context.Context, item *types.Item) types.Result[bool] {
	if item == nil {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "AddItem", item.Owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.AddItem(ctx, item)
		})
}

func (r *Router) UpdateItem(ctx context.Context, item *types.Item) types.Result[bool] {
	if item == nil {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "UpdateItem", item.Owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.UpdateItem(ctx, item)
		})
}

// MoveItems treats an empty list as a successful no-op and a nil list as
// invalid
func (r *Router) MoveItems(ctx context.Context, owner types.UserID, items []*types.Item) types.Result[bool] {
	if items == nil {
		return types.RejectedResult[bool]()
	}
	if len(items) == 0 {
		return types.OKResult(true)
	}
	return forward(ctx, r, "MoveItems", owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.MoveItems(ctx, owner, items)
		})
}

// DeleteItems reports false for an empty list without forwarding it
func (r *Router) DeleteItems(ctx context.Context, owner types.UserID, itemIDs []types.ItemID) types.Result[bool] {
	if len(itemIDs) == 0 {
		return types.RejectedResult[bool]()
	}
	return forward(ctx, r, "DeleteItems", owner, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[bool] {
			return svc.DeleteItems(ctx, owner, itemIDs)
		})
}

func (r *Router) GetItem(ctx context.Context, user types.UserID, itemID types.ItemID) types.Result[*types.Item] {
	return forward(ctx, r, "GetItem", user, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[*types.Item] {
			return svc.GetItem(ctx, user, itemID)
		})
}

// GetMultipleItems rejects an empty id list with an empty slice
func (r *Router) GetMultipleItems(ctx context.Context, user types.UserID, itemIDs []types.ItemID) types.Result[[]*types.Item] {
	if len(itemIDs) == 0 {
		return types.Result[[]*types.Item]{Value: []*types.Item{}, Status: types.StatusRejected}
	}
	res := forward(ctx, r, "GetMultipleItems", user, callOptions{}, nil,
		func(svc types.InventoryService) types.Result[[]*types.Item] {
			return svc.GetMultipleItems(ctx, user, itemIDs)
		})
	if res.Value == nil {
		res.Value = []*types.Item{}
	}
	return res
}

func (r *Router) GetAssetPermissions(ctx context.Context, user types.UserID, assetID types.AssetID) types.Result[int] {
	return forward(ctx, r, "GetAssetPermissions", user, callOptions{serialize: true}, nil,
		func(svc types.InventoryService) types.Result[int] {
			return svc.GetAssetPermissions(ctx, user, assetID)
		})
}
