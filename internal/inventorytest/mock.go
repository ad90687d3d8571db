// Package inventorytest provides an in-memory inventory service for tests.
package inventorytest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gridfed/hginventory/pkg/types"
)

// MockService implements types.InventoryService in memory and counts calls
// per verb
type MockService struct {
	Name string

	mu      sync.Mutex
	calls   map[string]int
	folders map[types.FolderID]*types.Folder
	items   map[types.ItemID]*types.Item
	fail    error
}

// NewMockService creates an empty mock service
func NewMockService(name string) *MockService {
	return &MockService{
		Name:    name,
		calls:   make(map[string]int),
		folders: make(map[types.FolderID]*types.Folder),
		items:   make(map[types.ItemID]*types.Item),
	}
}

// FailWith makes every subsequent verb return StatusFailed with err; nil
// restores normal behaviour
func (m *MockService) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Calls returns the number of calls made to verb
func (m *MockService) Calls(verb string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[verb]
}

// TotalCalls returns the number of calls across all verbs
func (m *MockService) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// SeedRoot creates a root folder for user and returns it
func (m *MockService) SeedRoot(user types.UserID) *types.Folder {
	root := &types.Folder{ID: uuid.New(), Owner: user, Type: types.FolderTypeRoot, Name: types.FolderTypeRoot.String(), Version: 1}
	m.SeedFolder(root)
	return root
}

// SeedFolder stores a copy of folder
func (m *MockService) SeedFolder(folder *types.Folder) {
	m.mu.Lock()
	cp := *folder
	m.folders[folder.ID] = &cp
	m.mu.Unlock()
}

// SeedItem stores a copy of item
func (m *MockService) SeedItem(item *types.Item) {
	m.mu.Lock()
	cp := *item
	m.items[item.ID] = &cp
	m.mu.Unlock()
}

// begin records a call and reports the configured failure, if any. The lock
// is held on return.
func (m *MockService) begin(verb string) error {
	m.mu.Lock()
	m.calls[verb]++
	return m.fail
}

func (m *MockService) CreateUserInventory(_ context.Context, user types.UserID) types.Result[bool] {
	if err := m.begin("CreateUserInventory"); err != nil {
		defer m.mu.Unlock()
		return types.FailedResult[bool](err)
	}
	if m.rootLocked(user) != nil {
		m.mu.Unlock()
		return types.BoolResult(false)
	}
	root := &types.Folder{ID: uuid.New(), Owner: user, Type: types.FolderTypeRoot, Name: types.FolderTypeRoot.String(), Version: 1}
	m.folders[root.ID] = root
	m.mu.Unlock()
	return types.BoolResult(true)
}

func (m *MockService) HasInventoryForUser(_ context.Context, user types.UserID) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("HasInventoryForUser"); err != nil {
		return types.FailedResult[bool](err)
	}
	return types.BoolResult(m.rootLocked(user) != nil)
}

func (m *MockService) GetInventorySkeleton(_ context.Context, user types.UserID) types.Result[[]*types.Folder] {
	defer m.mu.Unlock()
	if err := m.begin("GetInventorySkeleton"); err != nil {
		return types.FailedResult[[]*types.Folder](err)
	}
	var out []*types.Folder
	for _, f := range m.sortedFolders() {
		if f.Owner == user {
			out = append(out, copyFolder(f))
		}
	}
	if len(out) == 0 {
		return types.NotFoundResult[[]*types.Folder]()
	}
	return types.OKResult(out)
}

func (m *MockService) GetRootFolder(_ context.Context, user types.UserID) types.Result[*types.Folder] {
	defer m.mu.Unlock()
	if err := m.begin("GetRootFolder"); err != nil {
		return types.FailedResult[*types.Folder](err)
	}
	return types.ValueResult(copyFolder(m.rootLocked(user)))
}

func (m *MockService) GetFolderForType(_ context.Context, user types.UserID, t types.FolderType) types.Result[*types.Folder] {
	defer m.mu.Unlock()
	if err := m.begin("GetFolderForType"); err != nil {
		return types.FailedResult[*types.Folder](err)
	}
	for _, f := range m.sortedFolders() {
		if f.Owner == user && f.Type == t {
			return types.OKResult(copyFolder(f))
		}
	}
	return types.NotFoundResult[*types.Folder]()
}

func (m *MockService) GetFolderContent(_ context.Context, user types.UserID, id types.FolderID) types.Result[*types.Collection] {
	defer m.mu.Unlock()
	if err := m.begin("GetFolderContent"); err != nil {
		return types.FailedResult[*types.Collection](err)
	}
	return types.ValueResult(m.contentLocked(user, id))
}

func (m *MockService) GetMultipleFoldersContent(_ context.Context, user types.UserID, ids []types.FolderID) types.Result[[]*types.Collection] {
	defer m.mu.Unlock()
	if err := m.begin("GetMultipleFoldersContent"); err != nil {
		return types.FailedResult[[]*types.Collection](err)
	}
	out := make([]*types.Collection, len(ids))
	for i, id := range ids {
		out[i] = m.contentLocked(user, id)
	}
	return types.OKResult(out)
}

func (m *MockService) GetFolderItems(_ context.Context, user types.UserID, id types.FolderID) types.Result[[]*types.Item] {
	defer m.mu.Unlock()
	if err := m.begin("GetFolderItems"); err != nil {
		return types.FailedResult[[]*types.Item](err)
	}
	if f, ok := m.folders[id]; !ok || f.Owner != user {
		return types.NotFoundResult[[]*types.Item]()
	}
	return types.OKResult(m.itemsInLocked(id))
}

func (m *MockService) GetFolder(_ context.Context, user types.UserID, id types.FolderID) types.Result[*types.Folder] {
	defer m.mu.Unlock()
	if err := m.begin("GetFolder"); err != nil {
		return types.FailedResult[*types.Folder](err)
	}
	if f, ok := m.folders[id]; ok && f.Owner == user {
		return types.OKResult(copyFolder(f))
	}
	return types.NotFoundResult[*types.Folder]()
}

func (m *MockService) AddFolder(_ context.Context, folder *types.Folder) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("AddFolder"); err != nil {
		return types.FailedResult[bool](err)
	}
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	if _, exists := m.folders[folder.ID]; exists {
		return types.BoolResult(false)
	}
	m.folders[folder.ID] = copyFolder(folder)
	return types.BoolResult(true)
}

func (m *MockService) UpdateFolder(_ context.Context, folder *types.Folder) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("UpdateFolder"); err != nil {
		return types.FailedResult[bool](err)
	}
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	existing, ok := m.folders[folder.ID]
	if !ok {
		return types.BoolResult(false)
	}
	cp := copyFolder(folder)
	cp.Version = existing.Version + 1
	m.folders[folder.ID] = cp
	return types.BoolResult(true)
}

func (m *MockService) MoveFolder(_ context.Context, folder *types.Folder) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("MoveFolder"); err != nil {
		return types.FailedResult[bool](err)
	}
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	existing, ok := m.folders[folder.ID]
	if !ok {
		return types.BoolResult(false)
	}
	existing.ParentID = folder.ParentID
	return types.BoolResult(true)
}

func (m *MockService) PurgeFolder(_ context.Context, folder *types.Folder) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("PurgeFolder"); err != nil {
		return types.FailedResult[bool](err)
	}
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	if _, ok := m.folders[folder.ID]; !ok {
		return types.BoolResult(false)
	}
	for id, item := range m.items {
		if item.FolderID == folder.ID {
			delete(m.items, id)
		}
	}
	for id, f := range m.folders {
		if f.ParentID == folder.ID {
			delete(m.folders, id)
		}
	}
	return types.BoolResult(true)
}

func (m *MockService) DeleteFolders(_ context.Context, owner types.UserID, ids []types.FolderID) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("DeleteFolders"); err != nil {
		return types.FailedResult[bool](err)
	}
	deleted := false
	for _, id := range ids {
		if f, ok := m.folders[id]; ok && f.Owner == owner {
			delete(m.folders, id)
			deleted = true
		}
	}
	return types.BoolResult(deleted)
}

func (m *MockService) AddItem(_ context.Context, item *types.Item) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("AddItem"); err != nil {
		return types.FailedResult[bool](err)
	}
	if item == nil {
		return types.RejectedResult[bool]()
	}
	if _, exists := m.items[item.ID]; exists {
		return types.BoolResult(false)
	}
	m.items[item.ID] = copyItem(item)
	return types.BoolResult(true)
}

func (m *MockService) UpdateItem(_ context.Context, item *types.Item) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("UpdateItem"); err != nil {
		return types.FailedResult[bool](err)
	}
	if item == nil {
		return types.RejectedResult[bool]()
	}
	if _, ok := m.items[item.ID]; !ok {
		return types.BoolResult(false)
	}
	m.items[item.ID] = copyItem(item)
	return types.BoolResult(true)
}

func (m *MockService) MoveItems(_ context.Context, owner types.UserID, items []*types.Item) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("MoveItems"); err != nil {
		return types.FailedResult[bool](err)
	}
	for _, it := range items {
		if existing, ok := m.items[it.ID]; ok && existing.Owner == owner {
			existing.FolderID = it.FolderID
		}
	}
	return types.BoolResult(true)
}

func (m *MockService) DeleteItems(_ context.Context, owner types.UserID, ids []types.ItemID) types.Result[bool] {
	defer m.mu.Unlock()
	if err := m.begin("DeleteItems"); err != nil {
		return types.FailedResult[bool](err)
	}
	deleted := false
	for _, id := range ids {
		if it, ok := m.items[id]; ok && it.Owner == owner {
			delete(m.items, id)
			deleted = true
		}
	}
	return types.BoolResult(deleted)
}

func (m *MockService) GetItem(_ context.Context, user types.UserID, id types.ItemID) types.Result[*types.Item] {
	defer m.mu.Unlock()
	if err := m.begin("GetItem"); err != nil {
		return types.FailedResult[*types.Item](err)
	}
	if it, ok := m.items[id]; ok && it.Owner == user {
		return types.OKResult(copyItem(it))
	}
	return types.NotFoundResult[*types.Item]()
}

func (m *MockService) GetMultipleItems(_ context.Context, user types.UserID, ids []types.ItemID) types.Result[[]*types.Item] {
	defer m.mu.Unlock()
	if err := m.begin("GetMultipleItems"); err != nil {
		return types.FailedResult[[]*types.Item](err)
	}
	out := make([]*types.Item, len(ids))
	for i, id := range ids {
		if it, ok := m.items[id]; ok && it.Owner == user {
			out[i] = copyItem(it)
		}
	}
	return types.OKResult(out)
}

func (m *MockService) GetAssetPermissions(_ context.Context, user types.UserID, asset types.AssetID) types.Result[int] {
	defer m.mu.Unlock()
	if err := m.begin("GetAssetPermissions"); err != nil {
		return types.FailedResult[int](err)
	}
	perms := 0
	for _, it := range m.items {
		if it.Owner == user && it.AssetID == asset {
			perms |= it.Permissions
		}
	}
	return types.OKResult(perms)
}

func (m *MockService) rootLocked(user types.UserID) *types.Folder {
	for _, f := range m.folders {
		if f.Owner == user && f.Type == types.FolderTypeRoot {
			return f
		}
	}
	return nil
}

func (m *MockService) contentLocked(user types.UserID, id types.FolderID) *types.Collection {
	f, ok := m.folders[id]
	if !ok || f.Owner != user {
		return nil
	}
	coll := &types.Collection{Folder: copyFolder(f), Items: m.itemsInLocked(id)}
	for _, child := range m.sortedFolders() {
		if child.ParentID == id && child.ID != id {
			coll.Folders = append(coll.Folders, copyFolder(child))
		}
	}
	return coll
}

func (m *MockService) itemsInLocked(id types.FolderID) []*types.Item {
	out := []*types.Item{}
	for _, it := range m.items {
		if it.FolderID == id {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *MockService) sortedFolders() []*types.Folder {
	out := make([]*types.Folder, 0, len(m.folders))
	for _, f := range m.folders {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func copyFolder(f *types.Folder) *types.Folder {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func copyItem(it *types.Item) *types.Item {
	if it == nil {
		return nil
	}
	cp := *it
	return &cp
}

var _ types.InventoryService = (*MockService)(nil)
