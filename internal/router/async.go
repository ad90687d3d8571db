package router

import (
	"context"

	"github.com/gridfed/hginventory/pkg/types"
)

// Future is the pending result of a verb started with Go
type Future[T any] struct {
	done   chan struct{}
	result types.Result[T]
}

// Go runs call on its own goroutine and returns a future for its result
func Go[T any](ctx context.Context, call func(context.Context) types.Result[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result = call(ctx)
	}()
	return f
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx is done. Giving up on
// ctx yields a failed result; the call itself keeps running.
func (f *Future[T]) Await(ctx context.Context) types.Result[T] {
	select {
	case <-f.done:
		return f.result
	case <-ctx.Done():
		return types.FailedResult[T](ctx.Err())
	}
}

// AsyncInventory exposes the non-blocking form of every verb of an
// InventoryService
type AsyncInventory struct {
	svc types.InventoryService
}

// NewAsync wraps svc
func NewAsync(svc types.InventoryService) *AsyncInventory {
	return &AsyncInventory{svc: svc}
}

func (a *AsyncInventory) CreateUserInventoryAsync(ctx context.Context, user types.UserID) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.CreateUserInventory(ctx, user)
	})
}

func (a *AsyncInventory) HasInventoryForUserAsync(ctx context.Context, user types.UserID) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.HasInventoryForUser(ctx, user)
	})
}

func (a *AsyncInventory) GetInventorySkeletonAsync(ctx context.Context, user types.UserID) *Future[[]*types.Folder] {
	return Go(ctx, func(ctx context.Context) types.Result[[]*types.Folder] {
		return a.svc.GetInventorySkeleton(ctx, user)
	})
}

func (a *AsyncInventory) GetRootFolderAsync(ctx context.Context, user types.UserID) *Future[*types.Folder] {
	return Go(ctx, func(ctx context.Context) types.Result[*types.Folder] {
		return a.svc.GetRootFolder(ctx, user)
	})
}

func (a *AsyncInventory) GetFolderForTypeAsync(ctx context.Context, user types.UserID, folderType types.FolderType) *Future[*types.Folder] {
	return Go(ctx, func(ctx context.Context) types.Result[*types.Folder] {
		return a.svc.GetFolderForType(ctx, user, folderType)
	})
}

func (a *AsyncInventory) GetFolderContentAsync(ctx context.Context, user types.UserID, folderID types.FolderID) *Future[*types.Collection] {
	return Go(ctx, func(ctx context.Context) types.Result[*types.Collection] {
		return a.svc.GetFolderContent(ctx, user, folderID)
	})
}

func (a *AsyncInventory) GetMultipleFoldersContentAsync(ctx context.Context, user types.UserID, folderIDs []types.FolderID) *Future[[]*types.Collection] {
	return Go(ctx, func(ctx context.Context) types.Result[[]*types.Collection] {
		return a.svc.GetMultipleFoldersContent(ctx, user, folderIDs)
	})
}

func (a *AsyncInventory) GetFolderItemsAsync(ctx context.Context, user types.UserID, folderID types.FolderID) *Future[[]*types.Item] {
	return Go(ctx, func(ctx context.Context) types.Result[[]*types.Item] {
		return a.svc.GetFolderItems(ctx, user, folderID)
	})
}

func (a *AsyncInventory) GetFolderAsync(ctx context.Context, user types.UserID, folderID types.FolderID) *Future[*types.Folder] {
	return Go(ctx, func(ctx context.Context) types.Result[*types.Folder] {
		return a.svc.GetFolder(ctx, user, folderID)
	})
}

func (a *AsyncInventory) AddFolderAsync(ctx context.Context, folder *types.Folder) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.AddFolder(ctx, folder)
	})
}

func (a *AsyncInventory) UpdateFolderAsync(ctx context.Context, folder *types.Folder) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.UpdateFolder(ctx, folder)
	})
}

func (a *AsyncInventory) MoveFolderAsync(ctx context.Context, folder *types.Folder) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.MoveFolder(ctx, folder)
	})
}

func (a *AsyncInventory) PurgeFolderAsync(ctx context.Context, folder *types.Folder) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.PurgeFolder(ctx, folder)
	})
}

func (a *AsyncInventory) DeleteFoldersAsync(ctx context.Context, owner types.UserID, folderIDs []types.FolderID) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.DeleteFolders(ctx, owner, folderIDs)
	})
}

func (a *AsyncInventory) AddItemAsync(ctx context.Context, item *types.Item) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.AddItem(ctx, item)
	})
}

func (a *AsyncInventory) UpdateItemAsync(ctx context.Context, item *types.Item) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.UpdateItem(ctx, item)
	})
}

func (a *AsyncInventory) MoveItemsAsync(ctx context.Context, owner types.UserID, items []*types.Item) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.MoveItems(ctx, owner, items)
	})
}

func (a *AsyncInventory) DeleteItemsAsync(ctx context.Context, owner types.UserID, itemIDs []types.ItemID) *Future[bool] {
	return Go(ctx, func(ctx context.Context) types.Result[bool] {
		return a.svc.DeleteItems(ctx, owner, itemIDs)
	})
}

func (a *AsyncInventory) GetItemAsync(ctx context.Context, user types.UserID, itemID types.ItemID) *Future[*types.Item] {
	return Go(ctx, func(ctx context.Context) types.Result[*types.Item] {
		return a.svc.GetItem(ctx, user, itemID)
	})
}

func (a *AsyncInventory) GetMultipleItemsAsync(ctx context.Context, user types.UserID, itemIDs []types.ItemID) *Future[[]*types.Item] {
	return Go(ctx, func(ctx context.Context) types.Result[[]*types.Item] {
		return a.svc.GetMultipleItems(ctx, user, itemIDs)
	})
}

func (a *AsyncInventory) GetAssetPermissionsAsync(ctx context.Context, user types.UserID, assetID types.AssetID) *Future[int] {
	return Go(ctx, func(ctx context.Context) types.Result[int] {
		return a.svc.GetAssetPermissions(ctx, user, assetID)
	})
}
