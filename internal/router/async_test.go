package router

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridfed/hginventory/internal/inventorytest"
	"github.com/gridfed/hginventory/pkg/types"
)

func TestFutureAwait(t *testing.T) {
	f := Go(context.Background(), func(context.Context) types.Result[int] {
		return types.OKResult(42)
	})

	res := f.Await(context.Background())
	assert.True(t, res.OK())
	assert.Equal(t, 42, res.Value)

	select {
	case <-f.Done():
	default:
		t.Fatal("Done should be closed after Await returns a result")
	}

	// awaiting again returns the same result
	assert.Equal(t, 42, f.Await(context.Background()).Value)
}

func TestFutureAwaitCanceled(t *testing.T) {
	release := make(chan struct{})
	f := Go(context.Background(), func(context.Context) types.Result[bool] {
		<-release
		return types.OKResult(true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := f.Await(ctx)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.False(t, res.Value)
	assert.True(t, stderrors.Is(res.Err, context.DeadlineExceeded))

	close(release)
	assert.True(t, f.Await(context.Background()).Value)
}

func TestAsyncInventoryMatchesBlockingForm(t *testing.T) {
	ctx := context.Background()
	local := inventorytest.NewMockService("local")
	r, err := New(Dependencies{Local: local, Options: DefaultOptions()})
	require.NoError(t, err)
	async := NewAsync(r)

	u := uuid.New()
	require.True(t, async.CreateUserInventoryAsync(ctx, u).Await(ctx).Value)

	root := async.GetRootFolderAsync(ctx, u).Await(ctx)
	require.True(t, root.OK())
	assert.Equal(t, root.Value, r.GetRootFolder(ctx, u).Value)

	folder := &types.Folder{ID: uuid.New(), Owner: u, ParentID: root.Value.ID, Type: types.FolderTypeNone, Name: "async"}
	item := &types.Item{ID: uuid.New(), Owner: u, FolderID: folder.ID, Name: "coin"}

	// start independent calls together, then await them
	addFolder := async.AddFolderAsync(ctx, folder)
	skeleton := async.GetInventorySkeletonAsync(ctx, u)
	assert.True(t, addFolder.Await(ctx).Value)
	assert.True(t, skeleton.Await(ctx).OK())

	assert.True(t, async.AddItemAsync(ctx, item).Await(ctx).Value)
	assert.Equal(t, item.Name, async.GetItemAsync(ctx, u, item.ID).Await(ctx).Value.Name)
	assert.Len(t, async.GetMultipleItemsAsync(ctx, u, []types.ItemID{item.ID}).Await(ctx).Value, 1)
	assert.Len(t, async.GetFolderItemsAsync(ctx, u, folder.ID).Await(ctx).Value, 1)
	assert.True(t, async.GetFolderContentAsync(ctx, u, folder.ID).Await(ctx).OK())
	assert.Len(t, async.GetMultipleFoldersContentAsync(ctx, u, []types.FolderID{folder.ID}).Await(ctx).Value, 1)
	assert.True(t, async.GetFolderAsync(ctx, u, folder.ID).Await(ctx).OK())
	assert.True(t, async.UpdateItemAsync(ctx, item).Await(ctx).Value)
	assert.True(t, async.MoveItemsAsync(ctx, u, []*types.Item{item}).Await(ctx).Value)
	assert.Zero(t, async.GetAssetPermissionsAsync(ctx, u, uuid.New()).Await(ctx).Value)
	assert.True(t, async.DeleteItemsAsync(ctx, u, []types.ItemID{item.ID}).Await(ctx).Value)
	assert.True(t, async.UpdateFolderAsync(ctx, folder).Await(ctx).Value)
	assert.True(t, async.MoveFolderAsync(ctx, folder).Await(ctx).Value)
	assert.True(t, async.PurgeFolderAsync(ctx, folder).Await(ctx).Value)
	assert.True(t, async.DeleteFoldersAsync(ctx, u, []types.FolderID{folder.ID}).Await(ctx).Value)
	assert.True(t, async.GetFolderForTypeAsync(ctx, u, types.FolderTypeRoot).Await(ctx).OK())
	assert.Equal(t,
		r.HasInventoryForUser(ctx, u).Value,
		async.HasInventoryForUserAsync(ctx, u).Await(ctx).Value)

	// argument guards apply to the async form too
	assert.Equal(t, types.StatusRejected, async.AddItemAsync(ctx, nil).Await(ctx).Status)
}
