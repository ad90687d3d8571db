package router

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gridfed/hginventory/internal/diagnostics"
	"github.com/gridfed/hginventory/internal/identity"
	"github.com/gridfed/hginventory/internal/inventorytest"
	"github.com/gridfed/hginventory/internal/metrics"
	"github.com/gridfed/hginventory/internal/session"
	"github.com/gridfed/hginventory/internal/store/sqlite"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const remoteURL = "http://remote.grid.example:8003/"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// remotes hands out one mock per endpoint and counts constructions
type remotes struct {
	mu      sync.Mutex
	byURL   map[types.Endpoint]*inventorytest.MockService
	built   map[types.Endpoint]int
	failing bool
}

func (r *remotes) factory(endpoint types.Endpoint) (types.InventoryService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, stderrors.New("bad endpoint")
	}
	r.built[endpoint]++
	return r.serviceLocked(endpoint), nil
}

func (r *remotes) service(endpoint types.Endpoint) *inventorytest.MockService {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.serviceLocked(endpoint)
}

func (r *remotes) serviceLocked(endpoint types.Endpoint) *inventorytest.MockService {
	svc, ok := r.byURL[endpoint]
	if !ok {
		svc = inventorytest.NewMockService(endpoint.String())
		r.byURL[endpoint] = svc
	}
	return svc
}

func (r *remotes) constructions(endpoint types.Endpoint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.built[endpoint]
}

type fixture struct {
	router  *Router
	local   *inventorytest.MockService
	remotes *remotes
	dir     *identity.Directory
	host    *session.Host
	clock   *fakeClock
}

func newFixture(t *testing.T, mutate ...func(*Dependencies)) *fixture {
	t.Helper()
	f := &fixture{
		local:   inventorytest.NewMockService("local"),
		remotes: &remotes{byURL: map[types.Endpoint]*inventorytest.MockService{}, built: map[types.Endpoint]int{}},
		dir:     identity.NewDirectory(),
		host:    session.NewHost(nil),
		clock:   &fakeClock{now: time.Unix(1700000000, 0)},
	}
	deps := Dependencies{
		Local:            f.local,
		Identity:         f.dir,
		Sessions:         f.host,
		ConnectorFactory: f.remotes.factory,
		Options:          DefaultOptions(),
		Now:              f.clock.Now,
	}
	for _, m := range mutate {
		m(&deps)
	}
	r, err := New(deps)
	require.NoError(t, err)
	f.router = r
	f.host.OnClientClosed(r.HandleClientClosed)
	return f
}

// foreign registers a user whose home inventory lives at remoteURL
func (f *fixture) foreign() types.UserID {
	u := uuid.New()
	f.dir.SetServiceURL(u, types.InventoryServiceKey, remoteURL)
	return u
}

func (f *fixture) remote() *inventorytest.MockService {
	return f.remotes.service(types.CanonicalEndpoint(remoteURL))
}

func TestNewRequiresLocalService(t *testing.T) {
	_, err := New(Dependencies{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.NewError(errors.ErrCodeMissingLocalService, "")))

	var ie *errors.InventoryError
	require.True(t, stderrors.As(err, &ie))
	assert.Equal(t, errors.CategoryConfiguration, ie.Category)
}

func TestUnresolvableUserForwardsOnceToLocal(t *testing.T) {
	ctx := context.Background()
	folderID := uuid.New()
	itemID := uuid.New()
	assetID := uuid.New()

	tests := []struct {
		verb string
		call func(svc types.InventoryService, u types.UserID) (any, types.Status)
	}{
		{"HasInventoryForUser", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.HasInventoryForUser(ctx, u)
			return r.Value, r.Status
		}},
		{"GetInventorySkeleton", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetInventorySkeleton(ctx, u)
			return r.Value, r.Status
		}},
		{"GetRootFolder", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetRootFolder(ctx, u)
			return r.Value, r.Status
		}},
		{"GetFolderForType", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetFolderForType(ctx, u, types.FolderTypeTrash)
			return r.Value, r.Status
		}},
		{"GetFolderContent", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetFolderContent(ctx, u, folderID)
			return r.Value, r.Status
		}},
		{"GetMultipleFoldersContent", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetMultipleFoldersContent(ctx, u, []types.FolderID{folderID, uuid.Nil})
			return r.Value, r.Status
		}},
		{"GetFolderItems", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetFolderItems(ctx, u, folderID)
			return r.Value, r.Status
		}},
		{"GetFolder", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetFolder(ctx, u, folderID)
			return r.Value, r.Status
		}},
		{"GetItem", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetItem(ctx, u, itemID)
			return r.Value, r.Status
		}},
		{"GetMultipleItems", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetMultipleItems(ctx, u, []types.ItemID{itemID})
			return r.Value, r.Status
		}},
		{"GetAssetPermissions", func(svc types.InventoryService, u types.UserID) (any, types.Status) {
			r := svc.GetAssetPermissions(ctx, u, assetID)
			return r.Value, r.Status
		}},
	}

	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			f := newFixture(t)
			u := uuid.New()
			root := f.local.SeedRoot(u)
			f.local.SeedFolder(&types.Folder{ID: folderID, Owner: u, ParentID: root.ID, Type: types.FolderTypeNone, Name: "stuff"})
			f.local.SeedItem(&types.Item{ID: itemID, Owner: u, FolderID: folderID, AssetID: assetID, Name: "hat", Permissions: 7})

			got, gotStatus := tt.call(f.router, u)
			assert.Equal(t, 1, f.local.Calls(tt.verb))
			assert.Equal(t, 1, f.local.TotalCalls())

			want, wantStatus := tt.call(f.local, u)
			assert.Equal(t, wantStatus, gotStatus)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s result mismatch (-local +router):\n%s", tt.verb, diff)
			}
			assert.Zero(t, f.remote().TotalCalls())
		})
	}
}

func TestLocalWritesForwardOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := uuid.New()
	root := f.local.SeedRoot(u)

	folder := &types.Folder{ID: uuid.New(), Owner: u, ParentID: root.ID, Type: types.FolderTypeNone, Name: "new"}
	item := &types.Item{ID: uuid.New(), Owner: u, FolderID: folder.ID, Name: "box"}

	assert.True(t, f.router.AddFolder(ctx, folder).Value)
	assert.True(t, f.router.UpdateFolder(ctx, folder).Value)
	assert.True(t, f.router.MoveFolder(ctx, folder).Value)
	assert.True(t, f.router.AddItem(ctx, item).Value)
	assert.True(t, f.router.UpdateItem(ctx, item).Value)
	assert.True(t, f.router.MoveItems(ctx, u, []*types.Item{item}).Value)
	assert.True(t, f.router.DeleteItems(ctx, u, []types.ItemID{item.ID}).Value)
	assert.True(t, f.router.PurgeFolder(ctx, folder).Value)
	assert.True(t, f.router.DeleteFolders(ctx, u, []types.FolderID{folder.ID}).Value)

	for _, verb := range []string{"AddFolder", "UpdateFolder", "MoveFolder", "AddItem", "UpdateItem",
		"MoveItems", "DeleteItems", "PurgeFolder", "DeleteFolders"} {
		assert.Equal(t, 1, f.local.Calls(verb), verb)
	}
	assert.Zero(t, f.remote().TotalCalls())
}

func TestCreateUserInventoryAlwaysLocal(t *testing.T) {
	f := newFixture(t)
	u := f.foreign()

	res := f.router.CreateUserInventory(context.Background(), u)
	assert.True(t, res.Value)
	assert.Equal(t, 1, f.local.Calls("CreateUserInventory"))
	assert.Zero(t, f.remote().TotalCalls())
	assert.Zero(t, f.remotes.constructions(types.CanonicalEndpoint(remoteURL)))
}

func TestConnectorReusedWithinTTL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	endpoint := types.CanonicalEndpoint(remoteURL)

	f.router.GetItem(ctx, u, uuid.New())
	f.clock.Advance(30 * time.Second)
	f.router.GetItem(ctx, u, uuid.New())
	assert.Equal(t, 1, f.remotes.constructions(endpoint))
	assert.Equal(t, 2, f.remote().Calls("GetItem"))

	f.clock.Advance(31 * time.Second)
	f.router.GetItem(ctx, u, uuid.New())
	assert.Equal(t, 2, f.remotes.constructions(endpoint))

	stats := f.router.Stats().Connectors
	assert.Equal(t, uint64(2), stats.Constructions)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestPurgeExpiredConnectors(t *testing.T) {
	ctx := context.Background()
	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Namespace: "test"}, nil)
	require.NoError(t, err)
	f := newFixture(t, func(d *Dependencies) { d.Metrics = collector })
	u := f.foreign()

	f.router.GetItem(ctx, u, uuid.New())
	assert.Equal(t, 1.0, cachedConnectors(t, collector))

	assert.Zero(t, f.router.PurgeExpired())
	f.clock.Advance(61 * time.Second)
	assert.Equal(t, 1, f.router.PurgeExpired())
	assert.Equal(t, 0.0, cachedConnectors(t, collector))
	assert.Equal(t, uint64(1), f.router.Stats().Connectors.Evictions)

	f.router.GetItem(ctx, u, uuid.New())
	assert.Equal(t, 2, f.remotes.constructions(types.CanonicalEndpoint(remoteURL)))
}

func TestRunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.router.Run(ctx, time.Millisecond)
	}()
	cancel()
	<-done
}

func cachedConnectors(t *testing.T, c *metrics.Collector) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "test_cached_connectors" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("cached_connectors gauge not registered")
	return 0
}

func TestRemoteReadsAreCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	root := f.remote().SeedRoot(u)
	trash := &types.Folder{ID: uuid.New(), Owner: u, ParentID: root.ID, Type: types.FolderTypeTrash, Name: "Trash"}
	f.remote().SeedFolder(trash)
	f.remote().SeedItem(&types.Item{ID: uuid.New(), Owner: u, FolderID: trash.ID, Name: "old"})

	first := f.router.GetRootFolder(ctx, u)
	second := f.router.GetRootFolder(ctx, u)
	require.True(t, first.OK())
	assert.Equal(t, 1, f.remote().Calls("GetRootFolder"))
	if diff := cmp.Diff(first.Value, second.Value); diff != "" {
		t.Errorf("cached root differs:\n%s", diff)
	}
	if diff := cmp.Diff(root, first.Value); diff != "" {
		t.Errorf("root mismatch:\n%s", diff)
	}

	f.router.GetFolderForType(ctx, u, types.FolderTypeTrash)
	f.router.GetFolderForType(ctx, u, types.FolderTypeTrash)
	assert.Equal(t, 1, f.remote().Calls("GetFolderForType"))

	f.router.GetFolderContent(ctx, u, trash.ID)
	f.router.GetFolderContent(ctx, u, trash.ID)
	assert.Equal(t, 1, f.remote().Calls("GetFolderContent"))

	items := f.router.GetFolderItems(ctx, u, trash.ID)
	f.router.GetFolderItems(ctx, u, trash.ID)
	assert.Equal(t, 1, f.remote().Calls("GetFolderItems"))
	assert.Len(t, items.Value, 1)

	// uncached reads go through every time
	f.router.GetFolder(ctx, u, trash.ID)
	f.router.GetFolder(ctx, u, trash.ID)
	assert.Equal(t, 2, f.remote().Calls("GetFolder"))

	assert.True(t, f.router.results.Has(u))
	assert.Equal(t, uint64(4), f.router.Stats().Results.Hits)
}

func TestLocalReadsAreNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := uuid.New()
	f.local.SeedRoot(u)

	f.router.GetRootFolder(ctx, u)
	f.router.GetRootFolder(ctx, u)
	assert.Equal(t, 2, f.local.Calls("GetRootFolder"))
	assert.False(t, f.router.results.Has(u))
}

func TestFailedRemoteReadIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	f.remote().SeedRoot(u)

	f.remote().FailWith(errors.NewError(errors.ErrCodeTransportFailed, "connection refused"))
	res := f.router.GetRootFolder(ctx, u)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Nil(t, res.Value)
	assert.True(t, errors.IsTransport(res.Err))

	f.remote().FailWith(nil)
	res = f.router.GetRootFolder(ctx, u)
	assert.True(t, res.OK())
	assert.Equal(t, 2, f.remote().Calls("GetRootFolder"))
}

func TestNotFoundRemoteReadIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()

	assert.Equal(t, types.StatusNotFound, f.router.GetRootFolder(ctx, u).Status)
	f.remote().SeedRoot(u)
	assert.True(t, f.router.GetRootFolder(ctx, u).OK())
	assert.Equal(t, 2, f.remote().Calls("GetRootFolder"))
}

func TestWritesDoNotInvalidateResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	root := f.remote().SeedRoot(u)

	before := f.router.GetRootFolder(ctx, u)
	require.True(t, before.OK())

	renamed := *root
	renamed.Name = "Renamed"
	require.True(t, f.router.UpdateFolder(ctx, &renamed).Value)

	after := f.router.GetRootFolder(ctx, u)
	assert.Equal(t, before.Value.Name, after.Value.Name)
	assert.Equal(t, 1, f.remote().Calls("GetRootFolder"))
	assert.Equal(t, 1, f.remote().Calls("UpdateFolder"))
}

func TestConnectorBuildFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remotes.failing = true
	u := f.foreign()

	root := f.router.GetRootFolder(ctx, u)
	assert.Equal(t, types.StatusFailed, root.Status)
	assert.Nil(t, root.Value)
	assert.True(t, stderrors.Is(root.Err, errors.NewError(errors.ErrCodeConnectorBuild, "")))

	added := f.router.AddItem(ctx, &types.Item{ID: uuid.New(), Owner: u})
	assert.Equal(t, types.StatusFailed, added.Status)
	assert.False(t, added.Value)

	perms := f.router.GetAssetPermissions(ctx, u, uuid.New())
	assert.Equal(t, types.StatusFailed, perms.Status)
	assert.Zero(t, perms.Value)
	assert.Zero(t, f.local.TotalCalls())
}

func TestMissingConnectorFactory(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.ConnectorFactory = nil })
	u := f.foreign()

	res := f.router.GetFolder(context.Background(), u, uuid.New())
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.True(t, stderrors.Is(res.Err, errors.NewError(errors.ErrCodeConnectorBuild, "")))
}

func TestEmptyAndNilArguments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := uuid.New()

	tests := []struct {
		name   string
		res    types.Result[bool]
		want   bool
		status types.Status
	}{
		{"DeleteItems empty", f.router.DeleteItems(ctx, u, []types.ItemID{}), false, types.StatusRejected},
		{"DeleteItems nil", f.router.DeleteItems(ctx, u, nil), false, types.StatusRejected},
		{"DeleteFolders empty", f.router.DeleteFolders(ctx, u, []types.FolderID{}), false, types.StatusRejected},
		{"DeleteFolders nil", f.router.DeleteFolders(ctx, u, nil), false, types.StatusRejected},
		{"MoveItems empty", f.router.MoveItems(ctx, u, []*types.Item{}), true, types.StatusOK},
		{"MoveItems nil", f.router.MoveItems(ctx, u, nil), false, types.StatusRejected},
		{"AddFolder nil", f.router.AddFolder(ctx, nil), false, types.StatusRejected},
		{"UpdateFolder nil", f.router.UpdateFolder(ctx, nil), false, types.StatusRejected},
		{"MoveFolder nil", f.router.MoveFolder(ctx, nil), false, types.StatusRejected},
		{"PurgeFolder nil", f.router.PurgeFolder(ctx, nil), false, types.StatusRejected},
		{"AddItem nil", f.router.AddItem(ctx, nil), false, types.StatusRejected},
		{"UpdateItem nil", f.router.UpdateItem(ctx, nil), false, types.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Value)
			assert.Equal(t, tt.status, tt.res.Status)
		})
	}

	items := f.router.GetMultipleItems(ctx, u, nil)
	assert.Equal(t, types.StatusRejected, items.Status)
	assert.NotNil(t, items.Value)
	assert.Empty(t, items.Value)

	folders := f.router.GetMultipleFoldersContent(ctx, u, []types.FolderID{})
	assert.Equal(t, types.StatusRejected, folders.Status)
	assert.Empty(t, folders.Value)

	assert.Zero(t, f.local.TotalCalls(), "rejected calls must not be forwarded")
}

func TestGetMultipleFoldersContentRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(d *Dependencies) { d.Options.MultiFolderConcurrency = 2 })
	u := f.foreign()
	root := f.remote().SeedRoot(u)

	var ids []types.FolderID
	for i := 0; i < 5; i++ {
		folder := &types.Folder{ID: uuid.New(), Owner: u, ParentID: root.ID, Type: types.FolderTypeNone, Name: "f"}
		f.remote().SeedFolder(folder)
		ids = append(ids, folder.ID)
	}
	missing := uuid.New()
	ids = append(ids[:2], append([]types.FolderID{missing}, ids[2:]...)...)

	res := f.router.GetMultipleFoldersContent(ctx, u, ids)
	require.True(t, res.OK())
	require.Len(t, res.Value, len(ids))
	for i, id := range ids {
		if id == missing {
			assert.Nil(t, res.Value[i])
			continue
		}
		require.NotNil(t, res.Value[i])
		assert.Equal(t, id, res.Value[i].Folder.ID)
	}
	assert.Equal(t, len(ids), f.remote().Calls("GetFolderContent"))
	assert.Zero(t, f.remote().Calls("GetMultipleFoldersContent"))

	// found folders now come from the cache; the missing one is asked again
	f.router.GetMultipleFoldersContent(ctx, u, ids)
	assert.Equal(t, len(ids)+1, f.remote().Calls("GetFolderContent"))
}

func TestGetMultipleFoldersContentRemoteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	root := f.remote().SeedRoot(u)
	cached := &types.Folder{ID: uuid.New(), Owner: u, ParentID: root.ID, Type: types.FolderTypeNone, Name: "cached"}
	f.remote().SeedFolder(cached)
	require.True(t, f.router.GetFolderContent(ctx, u, cached.ID).OK())

	f.remote().FailWith(errors.NewError(errors.ErrCodeRemoteStatus, "status 502"))

	unreachable := uuid.New()
	res := f.router.GetMultipleFoldersContent(ctx, u, []types.FolderID{cached.ID, unreachable})
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.True(t, errors.IsTransport(res.Err))
	require.Len(t, res.Value, 2)
	require.NotNil(t, res.Value[0])
	assert.Equal(t, cached.ID, res.Value[0].Folder.ID)
	assert.Nil(t, res.Value[1])
}

func TestGetMultipleFoldersContentLocalForwardsList(t *testing.T) {
	f := newFixture(t)
	u := uuid.New()

	f.router.GetMultipleFoldersContent(context.Background(), u, []types.FolderID{uuid.New(), uuid.New()})
	assert.Equal(t, 1, f.local.Calls("GetMultipleFoldersContent"))
	assert.Zero(t, f.local.Calls("GetFolderContent"))
}

func TestClientClosedEviction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	f.remote().SeedRoot(u)

	presence := types.Presence{
		UserID:      u,
		Active:      true,
		ServiceURLs: map[string]string{types.InventoryServiceKey: remoteURL},
	}
	f.host.Open("west").Enter(presence)
	f.host.Open("east").Enter(presence)
	child := presence
	child.ChildAgent = true
	f.host.Open("north").Enter(child)

	require.True(t, f.router.GetRootFolder(ctx, u).OK())
	require.Equal(t, 1, f.remote().Calls("GetRootFolder"))

	// still present in east
	f.host.ClientClosed(ctx, "west", u)
	assert.True(t, f.router.results.Has(u))
	assert.Equal(t, 1, f.router.urls.Len())

	// the child presence in north does not keep the cache alive
	f.host.ClientClosed(ctx, "east", u)
	assert.False(t, f.router.results.Has(u))
	assert.Zero(t, f.router.urls.Len())

	require.True(t, f.router.GetRootFolder(ctx, u).OK())
	assert.Equal(t, 2, f.remote().Calls("GetRootFolder"))
	assert.True(t, f.router.results.Has(u))
	assert.Equal(t, 1, f.router.urls.Len())
}

func TestClientClosedKeepsWhileInactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	f.remote().SeedRoot(u)
	f.host.Open("west").Enter(types.Presence{UserID: u, Active: false})

	f.router.GetRootFolder(ctx, u)
	f.router.HandleClientClosed(ctx, u)
	assert.False(t, f.router.results.Has(u), "an inactive presence does not keep the cache")
}

func TestPresenceOverridesPersistedURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.foreign()
	override := "http://visiting.grid.example:9000"
	f.remotes.service(types.CanonicalEndpoint(override)).SeedRoot(u)
	f.host.Open("west").Enter(types.Presence{
		UserID:      u,
		Active:      true,
		ServiceURLs: map[string]string{types.InventoryServiceKey: override + "/"},
	})

	assert.True(t, f.router.GetRootFolder(ctx, u).OK())
	assert.Equal(t, 1, f.remotes.constructions(types.CanonicalEndpoint(override)))
	assert.Zero(t, f.remotes.constructions(types.CanonicalEndpoint(remoteURL)))
}

// concurrencyProbe records the largest number of overlapping skeleton reads
type concurrencyProbe struct {
	*inventorytest.MockService
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *concurrencyProbe) GetInventorySkeleton(ctx context.Context, u types.UserID) types.Result[[]*types.Folder] {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	defer p.inFlight.Add(-1)
	return p.MockService.GetInventorySkeleton(ctx, u)
}

func TestLocalSkeletonReadsAreSerialized(t *testing.T) {
	probe := &concurrencyProbe{MockService: inventorytest.NewMockService("local")}
	r, err := New(Dependencies{Local: probe, Options: DefaultOptions()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.GetInventorySkeleton(context.Background(), uuid.New())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), probe.peak.Load())
	assert.Equal(t, 8, probe.Calls("GetInventorySkeleton"))
}

func TestRemoteCallsAreTracked(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	mon := diagnostics.New(diagnostics.Config{Enabled: true, Now: clock.Now})
	f := newFixture(t, func(d *Dependencies) { d.Monitor = mon })
	remoteUser := f.foreign()
	localUser := uuid.New()

	f.router.GetItem(ctx, remoteUser, uuid.New())
	f.router.GetItem(ctx, localUser, uuid.New())
	assert.Equal(t, diagnostics.Stats{Total: 1}, mon.Stats(), "only remote calls are tracked")

	// a second call on the same user within the race window counts
	f.router.GetItem(ctx, remoteUser, uuid.New())
	assert.Equal(t, int64(1), mon.Stats().Anomalies)

	untracked := newFixture(t, func(d *Dependencies) {
		d.Monitor = mon
		d.Options.TrackRemoteCalls = false
	})
	mon.Reset()
	untracked.router.GetItem(ctx, untracked.foreign(), uuid.New())
	assert.Zero(t, mon.Stats().Total)
}

func TestRouteMetrics(t *testing.T) {
	ctx := context.Background()
	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Namespace: "test"}, nil)
	require.NoError(t, err)
	f := newFixture(t, func(d *Dependencies) { d.Metrics = collector })

	remoteUser := f.foreign()
	f.remote().SeedRoot(remoteUser)
	f.router.GetRootFolder(ctx, uuid.New())
	f.router.GetRootFolder(ctx, remoteUser)
	f.router.GetRootFolder(ctx, remoteUser)

	ops := collector.GetMetrics()["operations"].(map[string]*metrics.OperationMetrics)
	require.Contains(t, ops, "GetRootFolder")
	m := ops["GetRootFolder"]
	assert.Equal(t, int64(3), m.Count)
	assert.Equal(t, int64(1), m.Local)
	assert.Equal(t, int64(1), m.Remote)
	assert.Equal(t, int64(1), m.Cached)
}

func TestItemRoundTripThroughLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r, err := New(Dependencies{Local: store, Identity: identity.NewDirectory(), Options: DefaultOptions()})
	require.NoError(t, err)

	u := uuid.New()
	require.True(t, r.CreateUserInventory(ctx, u).Value)
	root := r.GetRootFolder(ctx, u)
	require.True(t, root.OK())

	item := &types.Item{
		ID:          uuid.New(),
		Owner:       u,
		FolderID:    root.Value.ID,
		AssetID:     uuid.New(),
		Name:        "walking stick",
		Permissions: 0x7fffffff,
	}
	require.True(t, r.AddItem(ctx, item).Value)

	got := r.GetItem(ctx, u, item.ID)
	require.True(t, got.OK())
	if diff := cmp.Diff(item, got.Value); diff != "" {
		t.Errorf("item changed in round trip (-want +got):\n%s", diff)
	}

	perms := r.GetAssetPermissions(ctx, u, item.AssetID)
	assert.Equal(t, item.Permissions, perms.Value)
}
