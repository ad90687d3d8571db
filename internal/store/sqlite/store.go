// Package sqlite implements the local inventory service on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/gridfed/hginventory/internal/logging"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite
const DriverName = "sqlite"

// Store is a types.InventoryService backed by a SQLite database
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at dsn. Use ":memory:" for a
// private in-memory database.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageOpen, "failed to open database", err).
			WithComponent("sqlite").
			WithContext("dsn", dsn)
	}
	// One connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logging.OrNop(logger)}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeStorageOpen, "failed to initialize schema", err).
			WithComponent("sqlite").
			WithContext("dsn", dsn)
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the database schema.
func (s *Store) initSchema() error {
	schema := `
	PRAGMA foreign_keys = OFF;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		type INTEGER NOT NULL,
		parent_id TEXT NOT NULL,
		name TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_folders_owner ON folders(owner, type);
	CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		folder_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		name TEXT NOT NULL,
		permissions INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_items_folder ON items(folder_id);
	CREATE INDEX IF NOT EXISTS idx_items_asset ON items(owner, asset_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const folderColumns = "id, owner, type, parent_id, name, version"
const itemColumns = "id, owner, folder_id, asset_id, name, permissions"

// descendantsCTE selects a folder and all folders below it
const descendantsCTE = `
	WITH RECURSIVE tree(id) AS (
		SELECT id FROM folders WHERE id = ? AND owner = ?
		UNION
		SELECT f.id FROM folders f JOIN tree t ON f.parent_id = t.id
	)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(r rowScanner) (*types.Folder, error) {
	var f types.Folder
	var t int
	if err := r.Scan(&f.ID, &f.Owner, &t, &f.ParentID, &f.Name, &f.Version); err != nil {
		return nil, err
	}
	f.Type = types.FolderType(t)
	return &f, nil
}

func scanItem(r rowScanner) (*types.Item, error) {
	var it types.Item
	if err := r.Scan(&it.ID, &it.Owner, &it.FolderID, &it.AssetID, &it.Name, &it.Permissions); err != nil {
		return nil, err
	}
	return &it, nil
}

func readFailure[T any](s *Store, op string, err error) types.Result[T] {
	s.logger.Warn("Inventory read failed", zap.String("operation", op), zap.Error(err))
	return types.FailedResult[T](errors.Wrap(errors.ErrCodeStorageRead, "query failed", err).
		WithComponent("sqlite").
		WithOperation(op))
}

func writeFailure(s *Store, op string, err error) types.Result[bool] {
	s.logger.Warn("Inventory write failed", zap.String("operation", op), zap.Error(err))
	return types.FailedResult[bool](errors.Wrap(errors.ErrCodeStorageWrite, "statement failed", err).
		WithComponent("sqlite").
		WithOperation(op))
}

// queryFolder returns the single folder matched by query, or nil
func (s *Store) queryFolder(ctx context.Context, query string, args ...any) (*types.Folder, error) {
	f, err := scanFolder(s.db.QueryRowContext(ctx, query, args...))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

func (s *Store) queryFolders(ctx context.Context, query string, args ...any) ([]*types.Folder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*types.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*types.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*types.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) rootFolder(ctx context.Context, user types.UserID) (*types.Folder, error) {
	return s.queryFolder(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE owner = ? AND type = ? ORDER BY rowid LIMIT 1",
		user, int(types.FolderTypeRoot))
}

func (s *Store) content(ctx context.Context, user types.UserID, id types.FolderID) (*types.Collection, error) {
	folder, err := s.queryFolder(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = ? AND owner = ?", id, user)
	if err != nil || folder == nil {
		return nil, err
	}

	children, err := s.queryFolders(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE parent_id = ? AND id <> ? ORDER BY name, id", id, id)
	if err != nil {
		return nil, err
	}
	items, err := s.queryItems(ctx,
		"SELECT "+itemColumns+" FROM items WHERE folder_id = ? ORDER BY name, id", id)
	if err != nil {
		return nil, err
	}

	return &types.Collection{Folder: folder, Folders: children, Items: items}, nil
}

// CreateUserInventory creates a root folder and the standard system folders
func (s *Store) CreateUserInventory(ctx context.Context, user types.UserID) types.Result[bool] {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailure(s, "CreateUserInventory", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM folders WHERE owner = ? AND type = ?",
		user, int(types.FolderTypeRoot)).Scan(&exists)
	if err != nil {
		return writeFailure(s, "CreateUserInventory", err)
	}
	if exists > 0 {
		return types.BoolResult(false)
	}

	insert := "INSERT INTO folders (" + folderColumns + ") VALUES (?, ?, ?, ?, ?, 1)"
	root := uuid.New()
	if _, err := tx.ExecContext(ctx, insert, root, user, int(types.FolderTypeRoot), uuid.Nil, types.FolderTypeRoot.String()); err != nil {
		return writeFailure(s, "CreateUserInventory", err)
	}
	for _, t := range types.StandardFolderTypes {
		if _, err := tx.ExecContext(ctx, insert, uuid.New(), user, int(t), root, t.String()); err != nil {
			return writeFailure(s, "CreateUserInventory", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return writeFailure(s, "CreateUserInventory", err)
	}
	s.logger.Info("Created user inventory", zap.String("user", user.String()))
	return types.BoolResult(true)
}

// HasInventoryForUser reports whether user has a root folder
func (s *Store) HasInventoryForUser(ctx context.Context, user types.UserID) types.Result[bool] {
	root, err := s.rootFolder(ctx, user)
	if err != nil {
		return readFailure[bool](s, "HasInventoryForUser", err)
	}
	return types.BoolResult(root != nil)
}

// GetInventorySkeleton returns every folder of user
func (s *Store) GetInventorySkeleton(ctx context.Context, user types.UserID) types.Result[[]*types.Folder] {
	folders, err := s.queryFolders(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE owner = ? ORDER BY rowid", user)
	if err != nil {
		return readFailure[[]*types.Folder](s, "GetInventorySkeleton", err)
	}
	if len(folders) == 0 {
		return types.NotFoundResult[[]*types.Folder]()
	}
	return types.OKResult(folders)
}

func (s *Store) GetRootFolder(ctx context.Context, user types.UserID) types.Result[*types.Folder] {
	root, err := s.rootFolder(ctx, user)
	if err != nil {
		return readFailure[*types.Folder](s, "GetRootFolder", err)
	}
	return types.ValueResult(root)
}

func (s *Store) GetFolderForType(ctx context.Context, user types.UserID, t types.FolderType) types.Result[*types.Folder] {
	f, err := s.queryFolder(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE owner = ? AND type = ? ORDER BY rowid LIMIT 1",
		user, int(t))
	if err != nil {
		return readFailure[*types.Folder](s, "GetFolderForType", err)
	}
	return types.ValueResult(f)
}

func (s *Store) GetFolderContent(ctx context.Context, user types.UserID, id types.FolderID) types.Result[*types.Collection] {
	coll, err := s.content(ctx, user, id)
	if err != nil {
		return readFailure[*types.Collection](s, "GetFolderContent", err)
	}
	return types.ValueResult(coll)
}

// GetMultipleFoldersContent returns one entry per id, nil where the folder is missing
func (s *Store) GetMultipleFoldersContent(ctx context.Context, user types.UserID, ids []types.FolderID) types.Result[[]*types.Collection] {
	out := make([]*types.Collection, len(ids))
	for i, id := range ids {
		coll, err := s.content(ctx, user, id)
		if err != nil {
			return readFailure[[]*types.Collection](s, "GetMultipleFoldersContent", err)
		}
		out[i] = coll
	}
	return types.OKResult(out)
}

func (s *Store) GetFolderItems(ctx context.Context, user types.UserID, id types.FolderID) types.Result[[]*types.Item] {
	folder, err := s.queryFolder(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = ? AND owner = ?", id, user)
	if err != nil {
		return readFailure[[]*types.Item](s, "GetFolderItems", err)
	}
	if folder == nil {
		return types.NotFoundResult[[]*types.Item]()
	}
	items, err := s.queryItems(ctx,
		"SELECT "+itemColumns+" FROM items WHERE folder_id = ? ORDER BY name, id", id)
	if err != nil {
		return readFailure[[]*types.Item](s, "GetFolderItems", err)
	}
	return types.OKResult(items)
}

func (s *Store) GetFolder(ctx context.Context, user types.UserID, id types.FolderID) types.Result[*types.Folder] {
	f, err := s.queryFolder(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = ? AND owner = ?", id, user)
	if err != nil {
		return readFailure[*types.Folder](s, "GetFolder", err)
	}
	return types.ValueResult(f)
}

// AddFolder inserts folder; false when the id is taken
func (s *Store) AddFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	version := folder.Version
	if version <= 0 {
		version = 1
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO folders ("+folderColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		folder.ID, folder.Owner, int(folder.Type), folder.ParentID, folder.Name, version)
	return s.affected(res, err, "AddFolder")
}

// UpdateFolder renames or retypes folder and bumps its version
func (s *Store) UpdateFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE folders SET name = ?, type = ?, version = version + 1 WHERE id = ? AND owner = ?",
		folder.Name, int(folder.Type), folder.ID, folder.Owner)
	return s.affected(res, err, "UpdateFolder")
}

// MoveFolder reparents folder
func (s *Store) MoveFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	if folder.ParentID == folder.ID {
		return types.RejectedResult[bool]()
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE folders SET parent_id = ? WHERE id = ? AND owner = ?",
		folder.ParentID, folder.ID, folder.Owner)
	return s.affected(res, err, "MoveFolder")
}

// PurgeFolder removes everything below folder but keeps folder itself
func (s *Store) PurgeFolder(ctx context.Context, folder *types.Folder) types.Result[bool] {
	if folder == nil {
		return types.RejectedResult[bool]()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailure(s, "PurgeFolder", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM folders WHERE id = ? AND owner = ?",
		folder.ID, folder.Owner).Scan(&n); err != nil {
		return writeFailure(s, "PurgeFolder", err)
	}
	if n == 0 {
		return types.BoolResult(false)
	}

	if _, err := tx.ExecContext(ctx, descendantsCTE+" DELETE FROM items WHERE folder_id IN (SELECT id FROM tree)",
		folder.ID, folder.Owner); err != nil {
		return writeFailure(s, "PurgeFolder", err)
	}
	if _, err := tx.ExecContext(ctx, descendantsCTE+" DELETE FROM folders WHERE id IN (SELECT id FROM tree) AND id <> ?",
		folder.ID, folder.Owner, folder.ID); err != nil {
		return writeFailure(s, "PurgeFolder", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE folders SET version = version + 1 WHERE id = ?", folder.ID); err != nil {
		return writeFailure(s, "PurgeFolder", err)
	}

	if err := tx.Commit(); err != nil {
		return writeFailure(s, "PurgeFolder", err)
	}
	return types.BoolResult(true)
}

// DeleteFolders removes folders with their descendants and items
func (s *Store) DeleteFolders(ctx context.Context, owner types.UserID, ids []types.FolderID) types.Result[bool] {
	if len(ids) == 0 {
		return types.BoolResult(false)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailure(s, "DeleteFolders", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	deleted := false
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, descendantsCTE+" DELETE FROM items WHERE folder_id IN (SELECT id FROM tree)",
			id, owner); err != nil {
			return writeFailure(s, "DeleteFolders", err)
		}
		res, err := tx.ExecContext(ctx, descendantsCTE+" DELETE FROM folders WHERE id IN (SELECT id FROM tree)",
			id, owner)
		if err != nil {
			return writeFailure(s, "DeleteFolders", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted = true
		}
	}

	if err := tx.Commit(); err != nil {
		return writeFailure(s, "DeleteFolders", err)
	}
	return types.BoolResult(deleted)
}

// AddItem inserts item; false when the id is taken
func (s *Store) AddItem(ctx context.Context, item *types.Item) types.Result[bool] {
	if item == nil {
		return types.RejectedResult[bool]()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		item.ID, item.Owner, item.FolderID, item.AssetID, item.Name, item.Permissions)
	return s.affected(res, err, "AddItem")
}

// UpdateItem overwrites item's mutable fields
func (s *Store) UpdateItem(ctx context.Context, item *types.Item) types.Result[bool] {
	if item == nil {
		return types.RejectedResult[bool]()
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET folder_id = ?, asset_id = ?, name = ?, permissions = ? WHERE id = ? AND owner = ?",
		item.FolderID, item.AssetID, item.Name, item.Permissions, item.ID, item.Owner)
	return s.affected(res, err, "UpdateItem")
}

// MoveItems reparents each item to its FolderID
func (s *Store) MoveItems(ctx context.Context, owner types.UserID, items []*types.Item) types.Result[bool] {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailure(s, "MoveItems", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, it := range items {
		if it == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, "UPDATE items SET folder_id = ? WHERE id = ? AND owner = ?",
			it.FolderID, it.ID, owner); err != nil {
			return writeFailure(s, "MoveItems", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return writeFailure(s, "MoveItems", err)
	}
	return types.BoolResult(true)
}

// DeleteItems removes items owned by owner
func (s *Store) DeleteItems(ctx context.Context, owner types.UserID, ids []types.ItemID) types.Result[bool] {
	if len(ids) == 0 {
		return types.BoolResult(false)
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, owner)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM items WHERE owner = ? AND id IN ("+placeholders(len(ids))+")", args...)
	return s.affected(res, err, "DeleteItems")
}

func (s *Store) GetItem(ctx context.Context, user types.UserID, id types.ItemID) types.Result[*types.Item] {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ? AND owner = ?", id, user))
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.NotFoundResult[*types.Item]()
	}
	if err != nil {
		return readFailure[*types.Item](s, "GetItem", err)
	}
	return types.OKResult(it)
}

// GetMultipleItems returns one entry per id, nil where the item is missing
func (s *Store) GetMultipleItems(ctx context.Context, user types.UserID, ids []types.ItemID) types.Result[[]*types.Item] {
	out := make([]*types.Item, len(ids))
	if len(ids) == 0 {
		return types.OKResult(out)
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, user)
	for _, id := range ids {
		args = append(args, id)
	}
	found, err := s.queryItems(ctx,
		"SELECT "+itemColumns+" FROM items WHERE owner = ? AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return readFailure[[]*types.Item](s, "GetMultipleItems", err)
	}

	byID := make(map[types.ItemID]*types.Item, len(found))
	for _, it := range found {
		byID[it.ID] = it
	}
	for i, id := range ids {
		out[i] = byID[id]
	}
	return types.OKResult(out)
}

// GetAssetPermissions ORs the permissions of user's items referencing asset
func (s *Store) GetAssetPermissions(ctx context.Context, user types.UserID, asset types.AssetID) types.Result[int] {
	rows, err := s.db.QueryContext(ctx,
		"SELECT permissions FROM items WHERE owner = ? AND asset_id = ?", user, asset)
	if err != nil {
		return readFailure[int](s, "GetAssetPermissions", err)
	}
	defer rows.Close()

	perms := 0
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return readFailure[int](s, "GetAssetPermissions", err)
		}
		perms |= p
	}
	if err := rows.Err(); err != nil {
		return readFailure[int](s, "GetAssetPermissions", err)
	}
	return types.OKResult(perms)
}

func (s *Store) affected(res sql.Result, err error, op string) types.Result[bool] {
	if err != nil {
		return writeFailure(s, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return writeFailure(s, op, err)
	}
	return types.BoolResult(n > 0)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ types.InventoryService = (*Store)(nil)
