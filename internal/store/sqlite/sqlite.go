// Package sqlite is the durable implementation of store.ItemStore backing
// the on-disk liferea.db file, driven by github.com/mattn/go-sqlite3 since
// this store must actually run against a file, not only be mocked.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"feedcore/internal/domain"
	"feedcore/internal/searchfolder"
	"feedcore/internal/store"
)

// Store is a database/sql-backed store.ItemStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and ensures
// the schema exists. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB wraps an already-open *sql.DB. Unlike Open, it does not create
// the schema.
func OpenDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id TEXT NOT NULL,
			guid TEXT NOT NULL DEFAULT '',
			valid_guid INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			real_source_url TEXT NOT NULL DEFAULT '',
			real_source_title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			item_time INTEGER NOT NULL DEFAULT 0,
			read INTEGER NOT NULL DEFAULT 0,
			new INTEGER NOT NULL DEFAULT 0,
			popup INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			flag INTEGER NOT NULL DEFAULT 0,
			has_enclosure INTEGER NOT NULL DEFAULT 0,
			source_node_id TEXT NOT NULL DEFAULT '',
			source_item_nr INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_node_id ON items(node_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_guid ON items(guid) WHERE valid_guid = 1`,
		`CREATE INDEX IF NOT EXISTS idx_items_node_time ON items(node_id, item_time DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS item_metadata (
			item_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			FOREIGN KEY(item_id) REFERENCES items(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_item_metadata_item_id ON item_metadata(item_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadItems implements store.ItemStore.
func (s *Store) LoadItems(ctx context.Context, node domain.NodeID) ([]domain.ItemID, error) {
	const q = `SELECT id FROM items WHERE node_id = ? ORDER BY item_time DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, string(node))
	if err != nil {
		return nil, fmt.Errorf("sqlite: LoadItems: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []domain.ItemID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: LoadItems: scan: %w", err)
		}
		ids = append(ids, domain.ItemID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: LoadItems: rows: %w", err)
	}
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetItem implements store.ItemStore.
func (s *Store) GetItem(ctx context.Context, id domain.ItemID) (*domain.Item, error) {
	const q = `
SELECT id, node_id, guid, valid_guid, title, source_url, real_source_url,
       real_source_title, description, content_type, item_time, read, new,
       popup, updated, flag, has_enclosure, source_node_id, source_item_nr
FROM items WHERE id = ?`

	row := s.db.QueryRowContext(ctx, q, int64(id))
	it, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: GetItem: %w", err)
	}

	meta, err := s.loadMetadata(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	it.MetadataList = meta
	return it, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var it domain.Item
	var id, nodeID, sourceNodeID, sourceItemNr int64
	var itemTime int64
	var validGUID, read, newFlag, popup, updated, flag, hasEnc int
	var nodeIDStr, sourceNodeIDStr string

	err := row.Scan(&id, &nodeIDStr, &it.GUID, &validGUID, &it.Title, &it.SourceURL,
		&it.RealSourceURL, &it.RealSourceTitle, &it.Description, &it.ContentType,
		&itemTime, &read, &newFlag, &popup, &updated, &flag, &hasEnc,
		&sourceNodeIDStr, &sourceItemNr)
	if err != nil {
		return nil, err
	}
	_ = nodeID
	_ = sourceNodeID
	it.ID = domain.ItemID(id)
	it.NodeID = domain.NodeID(nodeIDStr)
	it.SourceNodeID = domain.NodeID(sourceNodeIDStr)
	it.SourceItemNr = domain.ItemID(sourceItemNr)
	it.ValidGUID = validGUID != 0
	it.Time = time.Unix(itemTime, 0).UTC()
	it.Read = read != 0
	it.New = newFlag != 0
	it.Popup = popup != 0
	it.Updated = updated != 0
	it.Flag = flag != 0
	it.HasEnclosure = hasEnc != 0
	return &it, nil
}

func (s *Store) loadMetadata(ctx context.Context, id domain.ItemID) ([]domain.MetadataPair, error) {
	const q = `SELECT key, value FROM item_metadata WHERE item_id = ? ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q, int64(id))
	if err != nil {
		return nil, fmt.Errorf("sqlite: loadMetadata: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.MetadataPair
	for rows.Next() {
		var m domain.MetadataPair
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("sqlite: loadMetadata: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PutItem implements store.ItemStore. The write is wrapped in a
// transaction so a crash leaves either the prior row or the new one
// readable, never a partial write.
func (s *Store) PutItem(ctx context.Context, item *domain.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: PutItem: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if item.ID == 0 {
		const ins = `
INSERT INTO items (node_id, guid, valid_guid, title, source_url, real_source_url,
	real_source_title, description, content_type, item_time, read, new, popup,
	updated, flag, has_enclosure, source_node_id, source_item_nr)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, ins, string(item.NodeID), item.GUID, boolToInt(item.ValidGUID),
			item.Title, item.SourceURL, item.RealSourceURL, item.RealSourceTitle, item.Description,
			item.ContentType, item.Time.Unix(), boolToInt(item.Read), boolToInt(item.New),
			boolToInt(item.Popup), boolToInt(item.Updated), boolToInt(item.Flag),
			boolToInt(item.HasEnclosure), string(item.SourceNodeID), int64(item.SourceItemNr))
		if err != nil {
			return fmt.Errorf("sqlite: PutItem: insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: PutItem: last insert id: %w", err)
		}
		item.ID = domain.ItemID(id)
	} else {
		const upd = `
UPDATE items SET node_id=?, guid=?, valid_guid=?, title=?, source_url=?, real_source_url=?,
	real_source_title=?, description=?, content_type=?, item_time=?, read=?, new=?, popup=?,
	updated=?, flag=?, has_enclosure=?, source_node_id=?, source_item_nr=? WHERE id=?`
		if _, err := tx.ExecContext(ctx, upd, string(item.NodeID), item.GUID, boolToInt(item.ValidGUID),
			item.Title, item.SourceURL, item.RealSourceURL, item.RealSourceTitle, item.Description,
			item.ContentType, item.Time.Unix(), boolToInt(item.Read), boolToInt(item.New),
			boolToInt(item.Popup), boolToInt(item.Updated), boolToInt(item.Flag),
			boolToInt(item.HasEnclosure), string(item.SourceNodeID), int64(item.SourceItemNr),
			int64(item.ID)); err != nil {
			return fmt.Errorf("sqlite: PutItem: update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_metadata WHERE item_id = ?`, int64(item.ID)); err != nil {
			return fmt.Errorf("sqlite: PutItem: clear metadata: %w", err)
		}
	}

	const insMeta = `INSERT INTO item_metadata (item_id, seq, key, value) VALUES (?, ?, ?, ?)`
	for i, m := range item.MetadataList {
		if _, err := tx.ExecContext(ctx, insMeta, int64(item.ID), i, m.Key, m.Value); err != nil {
			return fmt.Errorf("sqlite: PutItem: metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: PutItem: commit: %w", err)
	}
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, id domain.ItemID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM item_metadata WHERE item_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("sqlite: RemoveItem: metadata: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, int64(id)); err != nil {
		return fmt.Errorf("sqlite: RemoveItem: %w", err)
	}
	return nil
}

func (s *Store) setBoolField(ctx context.Context, id domain.ItemID, field string, v bool) error {
	q := fmt.Sprintf(`UPDATE items SET %s = ? WHERE id = ?`, field)
	if _, err := s.db.ExecContext(ctx, q, boolToInt(v), int64(id)); err != nil {
		return fmt.Errorf("sqlite: set %s: %w", field, err)
	}
	return nil
}

func (s *Store) SetRead(ctx context.Context, id domain.ItemID, read bool) error {
	return s.setBoolField(ctx, id, "read", read)
}

func (s *Store) SetFlag(ctx context.Context, id domain.ItemID, flag bool) error {
	return s.setBoolField(ctx, id, "flag", flag)
}

func (s *Store) SetUpdated(ctx context.Context, id domain.ItemID, updated bool) error {
	return s.setBoolField(ctx, id, "updated", updated)
}

func (s *Store) SetPopup(ctx context.Context, id domain.ItemID, popup bool) error {
	return s.setBoolField(ctx, id, "popup", popup)
}

func (s *Store) FindDuplicates(ctx context.Context, guid string) ([]domain.NodeID, error) {
	const q = `SELECT DISTINCT node_id FROM items WHERE guid = ? AND valid_guid = 1`
	rows, err := s.db.QueryContext(ctx, q, guid)
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindDuplicates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.NodeID
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite: FindDuplicates: scan: %w", err)
		}
		out = append(out, domain.NodeID(n))
	}
	return out, rows.Err()
}

// ItemsByGUID implements store.ItemStore.
func (s *Store) ItemsByGUID(ctx context.Context, guid string) ([]*domain.Item, error) {
	const q = `
SELECT id, node_id, guid, valid_guid, title, source_url, real_source_url,
       real_source_title, description, content_type, item_time, read, new,
       popup, updated, flag, has_enclosure, source_node_id, source_item_nr
FROM items WHERE guid = ? AND valid_guid = 1`
	rows, err := s.db.QueryContext(ctx, q, guid)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ItemsByGUID: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: ItemsByGUID: scan: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SearchFolderRescan loads every stored item and evaluates the rule set
// against each one in-process via internal/searchfolder; no rule is
// pushed into the SQL query.
func (s *Store) SearchFolderRescan(ctx context.Context, rules domain.RuleSet) ([]domain.ItemID, error) {
	const q = `
SELECT id, node_id, guid, valid_guid, title, source_url, real_source_url,
       real_source_title, description, content_type, item_time, read, new,
       popup, updated, flag, has_enclosure, source_node_id, source_item_nr
FROM items`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: SearchFolderRescan: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []*domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: SearchFolderRescan: scan: %w", err)
		}
		candidates = append(candidates, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var matched []domain.ItemID
	for _, it := range candidates {
		if searchfolder.Matches(it, rules) {
			matched = append(matched, it.ID)
		}
	}
	return matched, nil
}
