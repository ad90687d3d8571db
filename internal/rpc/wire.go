// Package rpc defines the JSON envelope exchanged between remote inventory
// connectors and the inventory server.
//
// Every verb is a POST to {endpoint}{prefix}/{verb} carrying a Request. The
// reply is always a Response with HTTP 200; the outcome lives in Status.
package rpc

import (
	"encoding/json"

	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// Verb names one inventory operation on the wire
type Verb string

const (
	VerbCreateUserInventory       Verb = "create_user_inventory"
	VerbHasInventoryForUser       Verb = "has_inventory_for_user"
	VerbGetInventorySkeleton      Verb = "get_inventory_skeleton"
	VerbGetRootFolder             Verb = "get_root_folder"
	VerbGetFolderForType          Verb = "get_folder_for_type"
	VerbGetFolderContent          Verb = "get_folder_content"
	VerbGetMultipleFoldersContent Verb = "get_multiple_folders_content"
	VerbGetFolderItems            Verb = "get_folder_items"
	VerbGetFolder                 Verb = "get_folder"
	VerbAddFolder                 Verb = "add_folder"
	VerbUpdateFolder              Verb = "update_folder"
	VerbMoveFolder                Verb = "move_folder"
	VerbPurgeFolder               Verb = "purge_folder"
	VerbDeleteFolders             Verb = "delete_folders"
	VerbAddItem                   Verb = "add_item"
	VerbUpdateItem                Verb = "update_item"
	VerbMoveItems                 Verb = "move_items"
	VerbDeleteItems               Verb = "delete_items"
	VerbGetItem                   Verb = "get_item"
	VerbGetMultipleItems          Verb = "get_multiple_items"
	VerbGetAssetPermissions       Verb = "get_asset_permissions"
)

// DefaultPathPrefix is the path under which verbs are served
const DefaultPathPrefix = "/inventory"

// Request carries the arguments of any verb; unused fields stay zero
type Request struct {
	User       types.UserID     `json:"user"`
	Folder     *types.Folder    `json:"folder,omitempty"`
	Item       *types.Item      `json:"item,omitempty"`
	FolderID   types.FolderID   `json:"folder_id"`
	ItemID     types.ItemID     `json:"item_id"`
	AssetID    types.AssetID    `json:"asset_id"`
	FolderType types.FolderType `json:"folder_type"`
	FolderIDs  []types.FolderID `json:"folder_ids,omitempty"`
	ItemIDs    []types.ItemID   `json:"item_ids,omitempty"`
	Items      []*types.Item    `json:"items,omitempty"`
}

// Response is the reply to any verb
type Response struct {
	Status string          `json:"status"`
	Value  json.RawMessage `json:"value,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewResponse encodes a result for the wire
func NewResponse[T any](r types.Result[T]) (*Response, error) {
	resp := &Response{Status: r.Status.String()}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	if r.Status == types.StatusOK {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternalError, "failed to encode result", err).
				WithComponent("rpc")
		}
		resp.Value = value
	}
	return resp, nil
}

// DecodeResult turns a response back into a typed result. Non-OK statuses
// carry the zero value of T, so callers see the usual sentinel.
func DecodeResult[T any](resp *Response) (types.Result[T], error) {
	status, err := types.ParseStatus(resp.Status)
	if err != nil {
		return types.Result[T]{}, errors.Wrap(errors.ErrCodeDecodeFailed, "malformed response status", err).
			WithComponent("rpc")
	}

	switch status {
	case types.StatusOK:
		var v T
		if len(resp.Value) > 0 {
			if err := json.Unmarshal(resp.Value, &v); err != nil {
				return types.Result[T]{}, errors.Wrap(errors.ErrCodeDecodeFailed, "malformed response value", err).
					WithComponent("rpc")
			}
		}
		return types.OKResult(v), nil
	case types.StatusFailed:
		return types.FailedResult[T](errors.NewError(errors.ErrCodeRemoteStatus, resp.Error).
			WithComponent("rpc")), nil
	case types.StatusRejected:
		return types.RejectedResult[T](), nil
	default:
		return types.NotFoundResult[T](), nil
	}
}
