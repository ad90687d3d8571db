// Package connector implements types.InventoryService against a remote
// inventory server. Remote failures never surface as Go errors: they become
// StatusFailed results carrying the same value a missing object would.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/logging"
	"github.com/gridfed/hginventory/internal/rpc"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// maxResponseBytes bounds a decoded response body
const maxResponseBytes = 16 << 20

// Config configures remote connectors
type Config struct {
	// Timeout bounds each call; zero leaves calls bounded only by the caller's context
	Timeout    time.Duration
	PathPrefix string
	UserAgent  string
	Client     *http.Client
	Logger     *zap.Logger
}

// Connector is an inventory service bound to one remote endpoint
type Connector struct {
	endpoint types.Endpoint
	base     string
	config   Config
	client   *http.Client
	logger   *zap.Logger
}

// New creates a connector for endpoint
func New(endpoint types.Endpoint, config Config) (*Connector, error) {
	u, err := url.Parse(endpoint.String())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectorBuild, "invalid endpoint", err).
			WithComponent("connector").
			WithContext("endpoint", endpoint.String())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.NewError(errors.ErrCodeConnectorBuild, "endpoint must be an absolute http(s) URL").
			WithComponent("connector").
			WithContext("endpoint", endpoint.String())
	}

	if config.PathPrefix == "" {
		config.PathPrefix = rpc.DefaultPathPrefix
	}
	client := config.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &Connector{
		endpoint: endpoint,
		base:     strings.TrimRight(endpoint.String(), "/") + "/" + strings.Trim(config.PathPrefix, "/"),
		config:   config,
		client:   client,
		logger:   logging.OrNop(config.Logger).With(zap.String("endpoint", endpoint.String())),
	}, nil
}

// Factory returns a ConnectorFactory building connectors with config
func Factory(config Config) types.ConnectorFactory {
	return func(endpoint types.Endpoint) (types.InventoryService, error) {
		return New(endpoint, config)
	}
}

// Endpoint returns the remote endpoint
func (c *Connector) Endpoint() types.Endpoint {
	return c.endpoint
}

// invoke performs one round trip and decodes the typed result
func invoke[T any](ctx context.Context, c *Connector, verb rpc.Verb, req *rpc.Request) types.Result[T] {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.roundTrip(ctx, verb, req)
	if err == nil {
		var result types.Result[T]
		if result, err = rpc.DecodeResult[T](resp); err == nil {
			return result
		}
	}

	c.logger.Warn("Remote inventory call failed", zap.String("verb", string(verb)), zap.Error(err))
	if ie, ok := err.(*errors.InventoryError); ok {
		ie.WithComponent("connector").WithOperation(string(verb))
	}
	return types.FailedResult[T](err)
}

func (c *Connector) roundTrip(ctx context.Context, verb rpc.Verb, req *rpc.Request) (*rpc.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternalError, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+string(verb), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "request failed", err).
			WithContext("endpoint", c.endpoint.String())
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxResponseBytes))
		return nil, errors.NewError(errors.ErrCodeRemoteStatus, fmt.Sprintf("unexpected status %d", httpResp.StatusCode)).
			WithContext("endpoint", c.endpoint.String())
	}

	var resp rpc.Response
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, maxResponseBytes)).Decode(&resp); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, "malformed response body", err)
	}
	return &resp, nil
}

// CreateUserInventory is never forwarded; inventories are created on their home grid
func (c *Connector) CreateUserInventory(_ context.Context, _ types.UserID) types.Result[bool] {
	return types.BoolResult(false)
}

// HasInventoryForUser is never forwarded
func (c *Connector) HasInventoryForUser(_ context.Context, _ types.UserID) types.Result[bool] {
	return types.BoolResult(false)
}

func (c *Connector) GetInventorySkeleton(ctx context.Context, user types.UserID) types.Result[[]*types.Folder] {
	return invoke[[]*types.Folder](ctx, c, rpc.VerbGetInventorySkeleton, &rpc.Request{User: user})
}

func (c *Connector) GetRootFolder(ctx context.Context, user types.UserID) types.Result[*types.Folder] {
	return nonNil(invoke[*types.Folder](ctx, c, rpc.VerbGetRootFolder, &rpc.Request{User: user}))
}

func (c *Connector) GetFolderForType(ctx context.Context, user types.UserID, t types.FolderType) types.Result[*types.Folder] {
	return nonNil(invoke[*types.Folder](ctx, c, rpc.VerbGetFolderForType, &rpc.Request{User: user, FolderType: t}))
}

func (c *Connector) GetFolderContent(ctx context.Context, user types.UserID, id types.FolderID) types.Result[*types.Collection] {
	return nonNil(invoke[*types.Collection](ctx, c, rpc.VerbGetFolderContent, &rpc.Request{User: user, FolderID: id}))
}

func (c *Connector) GetMultipleFoldersContent(ctx context.Context, user types.UserID, ids []types.FolderID) types.Result[[]*types.Collection] {
	return invoke[[]*types.Collection](ctx, c, rpc.VerbGetMultipleFoldersContent, &rpc.Request{User: user, FolderIDs: ids})
}

func (c *Connector) GetFolderItems(ctx context.Context, user types.UserID, id types.FolderID) types.Result[[]*types.Item] {
	return invoke[[]*types.Item](ctx, c, rpc.VerbGetFolderItems, &rpc.Request{User: user, FolderID: id})
}

func (c *Connector) GetFolder(ctx context.Context, user types.UserID, id types.FolderID) types.Result[*types.Folder] {
	return nonNil(invoke[*types.Folder](ctx, c, rpc.VerbGetFolder, &rpc.Request{User: user, FolderID: id}))
}

func (c *Connector) AddFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return invoke[bool](ctx, c, rpc.VerbAddFolder, &rpc.Request{User: folder.Owner, Folder: folder})
}

func (c *Connector) UpdateFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return invoke[bool](ctx, c, rpc.VerbUpdateFolder, &rpc.Request{User: folder.Owner, Folder: folder})
}

func (c *Connector) MoveFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return invoke[bool](ctx, c, rpc.VerbMoveFolder, &rpc.Request{User: folder.Owner, Folder: folder})
}

func (c *Connector) PurgeFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	return invoke[bool](ctx, c, rpc.VerbPurgeFolder, &rpc.Request{User: folder.Owner, Folder: folder})
}

func (c *Connector) DeleteFolders(ctx context.Context, owner types.UserID, ids []types.FolderID) types.Result[bool] {
	return invoke[bool](ctx, c, rpc.VerbDeleteFolders, &rpc.Request{User: owner, FolderIDs: ids})
}

func (c *Connector) AddItem(ctx context.Context, item *types.Item) types.Result[bool] {
	if item == nil {
		return types.RejectedResult[bool]()
	}
	return invoke[bool](ctx, c, rpc.VerbAddItem, &rpc.Request{User: item.Owner, Item: item})
}

func (c *Connector) UpdateItem(ctx context.Context, item *types.Item) types.Result[bool] {
	if item == nil {
		return types.RejectedResult[bool]()
	}
	return invoke[bool](ctx, c, rpc.VerbUpdateItem, &rpc.Request{User: item.Owner, Item: item})
}

func (c *Connector) MoveItems(ctx context.Context, owner types.UserID, items []*types.Item) types.Result[bool] {
	return invoke[bool](ctx, c, rpc.VerbMoveItems, &rpc.Request{User: owner, Items: items})
}

func (c *Connector) DeleteItems(ctx context.Context, owner types.UserID, ids []types.ItemID) types.Result[bool] {
	return invoke[bool](ctx, c, rpc.VerbDeleteItems, &rpc.Request{User: owner, ItemIDs: ids})
}

func (c *Connector) GetItem(ctx context.Context, user types.UserID, id types.ItemID) types.Result[*types.Item] {
	return nonNil(invoke[*types.Item](ctx, c, rpc.VerbGetItem, &rpc.Request{User: user, ItemID: id}))
}

func (c *Connector) GetMultipleItems(ctx context.Context, user types.UserID, ids []types.ItemID) types.Result[[]*types.Item] {
	return invoke[[]*types.Item](ctx, c, rpc.VerbGetMultipleItems, &rpc.Request{User: user, ItemIDs: ids})
}

func (c *Connector) GetAssetPermissions(ctx context.Context, user types.UserID, asset types.AssetID) types.Result[int] {
	return invoke[int](ctx, c, rpc.VerbGetAssetPermissions, &rpc.Request{User: user, AssetID: asset})
}

// nonNil downgrades an OK result carrying a null object to not-found
func nonNil[T any](r types.Result[*T]) types.Result[*T] {
	if r.Status == types.StatusOK && r.Value == nil {
		return types.NotFoundResult[*T]()
	}
	return r
}

var _ types.InventoryService = (*Connector)(nil)
