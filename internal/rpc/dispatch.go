package rpc

import (
	"context"

	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// Dispatch invokes verb on svc with the arguments in req
func Dispatch(ctx context.Context, svc types.InventoryService, verb Verb, req *Request) (*Response, error) {
	switch verb {
	case VerbCreateUserInventory:
		return NewResponse(svc.CreateUserInventory(ctx, req.User))
	case VerbHasInventoryForUser:
		return NewResponse(svc.HasInventoryForUser(ctx, req.User))
	case VerbGetInventorySkeleton:
		return NewResponse(svc.GetInventorySkeleton(ctx, req.User))
	case VerbGetRootFolder:
		return NewResponse(svc.GetRootFolder(ctx, req.User))
	case VerbGetFolderForType:
		return NewResponse(svc.GetFolderForType(ctx, req.User, req.FolderType))
	case VerbGetFolderContent:
		return NewResponse(svc.GetFolderContent(ctx, req.User, req.FolderID))
	case VerbGetMultipleFoldersContent:
		return NewResponse(svc.GetMultipleFoldersContent(ctx, req.User, req.FolderIDs))
	case VerbGetFolderItems:
		return NewResponse(svc.GetFolderItems(ctx, req.User, req.FolderID))
	case VerbGetFolder:
		return NewResponse(svc.GetFolder(ctx, req.User, req.FolderID))
	case VerbAddFolder:
		return NewResponse(svc.AddFolder(ctx, req.Folder))
	case VerbUpdateFolder:
		return NewResponse(svc.UpdateFolder(ctx, req.Folder))
	case VerbMoveFolder:
		return NewResponse(svc.MoveFolder(ctx, req.Folder))
	case VerbPurgeFolder:
		return NewResponse(svc.PurgeFolder(ctx, req.Folder))
	case VerbDeleteFolders:
		return NewResponse(svc.DeleteFolders(ctx, req.User, req.FolderIDs))
	case VerbAddItem:
		return NewResponse(svc.AddItem(ctx, req.Item))
	case VerbUpdateItem:
		return NewResponse(svc.UpdateItem(ctx, req.Item))
	case VerbMoveItems:
		return NewResponse(svc.MoveItems(ctx, req.User, req.Items))
	case VerbDeleteItems:
		return NewResponse(svc.DeleteItems(ctx, req.User, req.ItemIDs))
	case VerbGetItem:
		return NewResponse(svc.GetItem(ctx, req.User, req.ItemID))
	case VerbGetMultipleItems:
		return NewResponse(svc.GetMultipleItems(ctx, req.User, req.ItemIDs))
	case VerbGetAssetPermissions:
		return NewResponse(svc.GetAssetPermissions(ctx, req.User, req.AssetID))
	default:
		return nil, errors.NewError(errors.ErrCodeUnknownVerb, "unknown inventory verb").
			WithComponent("rpc").
			WithContext("verb", string(verb))
	}
}
