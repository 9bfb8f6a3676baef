package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bamsammich/snapwatch/internal/item"
)

var _ Store = (*SQLite)(nil)

// SQLite stores baselines in a SQLite database. Each commit rewrites the
// root's node rows and header inside one transaction.
type SQLite struct {
	db   *sql.DB
	path string
	now  func() time.Time

	// beforeInsert, when set, runs before each node insert. Tests use it to
	// fail a commit midway.
	beforeInsert func(n int) error
}

// OpenSQLite opens (or creates) the baseline database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create baseline dir: %w: %w", ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open baseline db: %w: %w", ErrStorageUnavailable, err)
	}
	// One writer at a time; parallel roots queue on the connection.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS baselines (
			root_key   TEXT PRIMARY KEY,
			root_path  TEXT NOT NULL,
			generation INTEGER NOT NULL,
			node_count INTEGER NOT NULL,
			checksum   INTEGER NOT NULL,
			scanned_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS nodes (
			root_key    TEXT NOT NULL REFERENCES baselines(root_key) ON DELETE CASCADE,
			node_id     INTEGER NOT NULL,
			parent_id   INTEGER NOT NULL,
			kind        INTEGER NOT NULL,
			identifier  INTEGER NOT NULL,
			name        TEXT NOT NULL,
			size        INTEGER NOT NULL,
			created     INTEGER NOT NULL,
			modified    INTEGER NOT NULL,
			copying     INTEGER NOT NULL,
			add_pending INTEGER NOT NULL,
			PRIMARY KEY (root_key, node_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Path returns the database file location.
func (s *SQLite) Path() string {
	return s.path
}

// Load implements Store. The header and node rows are read from one
// snapshot, so a commit from another handle is seen whole or not at all.
func (s *SQLite) Load(ctx context.Context, root string) (*item.Tree, error) {
	key := RootKey(root)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin load %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	var (
		count    int
		checksum int64
	)
	err = tx.QueryRowContext(ctx,
		"SELECT node_count, checksum FROM baselines WHERE root_key = ?", key,
	).Scan(&count, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // never scanned
	}
	if err != nil {
		return nil, fmt.Errorf("load header %s: %w: %w", root, ErrStorageUnavailable, err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT node_id, parent_id, kind, identifier, name, size, created, modified, copying, add_pending
		FROM nodes WHERE root_key = ? ORDER BY node_id`, key)
	if err != nil {
		return nil, fmt.Errorf("load nodes %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var tree *item.Tree
	for rows.Next() {
		var (
			id, parent              int32
			kind                    uint8
			identifier              int64
			name                    string
			size, created, modified int64
			copying, pending        bool
		)
		if err := rows.Scan(&id, &parent, &kind, &identifier, &name, &size, &created, &modified, &copying, &pending); err != nil {
			return nil, fmt.Errorf("scan node %s: %w: %w", root, ErrStorageUnavailable, err)
		}
		it, err := item.Decode(item.Kind(kind), uint64(identifier), name, size, created, modified, 0) //nolint:gosec // G115: bit cast
		if err != nil {
			return nil, fmt.Errorf("baseline %s: %w: %w", root, ErrCorruptBaseline, err)
		}
		if f, ok := it.(*item.File); ok {
			f.Copying, f.AddPending = copying, pending
		}
		if tree, err = item.Rebuild(tree, item.NodeID(id), item.NodeID(parent), it); err != nil {
			return nil, fmt.Errorf("baseline %s: %w: %w", root, ErrCorruptBaseline, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load nodes %s: %w: %w", root, ErrStorageUnavailable, err)
	}

	if tree == nil {
		return nil, fmt.Errorf("baseline %s has no nodes: %w", root, ErrCorruptBaseline)
	}
	if tree.Len() != count {
		return nil, fmt.Errorf("baseline %s has %d nodes, header says %d: %w", root, tree.Len(), count, ErrCorruptBaseline)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("baseline %s: %w: %w", root, ErrCorruptBaseline, err)
	}
	if tree.Checksum() != uint64(checksum) { //nolint:gosec // G115: bit cast
		return nil, fmt.Errorf("baseline %s checksum mismatch: %w", root, ErrCorruptBaseline)
	}
	return tree, nil
}

// Commit implements Store.
func (s *SQLite) Commit(ctx context.Context, root string, tree *item.Tree) error {
	key := RootKey(root)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	if err := s.writeTree(ctx, tx, key, root, tree); err != nil {
		_ = tx.Rollback() //nolint:errcheck // original error is more useful
		return fmt.Errorf("commit %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLite) writeTree(ctx context.Context, tx *sql.Tx, key, root string, tree *item.Tree) error {
	var generation int64
	err := tx.QueryRowContext(ctx, "SELECT generation FROM baselines WHERE root_key = ?", key).Scan(&generation)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read generation: %w", err)
	}

	// The header goes first so node rows satisfy the foreign key.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO baselines (root_key, root_path, generation, node_count, checksum, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(root_key) DO UPDATE SET
			root_path = excluded.root_path,
			generation = excluded.generation,
			node_count = excluded.node_count,
			checksum = excluded.checksum,
			scanned_at = excluded.scanned_at`,
		key, root, generation+1, tree.Len(), int64(tree.Checksum()), s.now().UnixNano()) //nolint:gosec // G115: bit cast
	if err != nil {
		return fmt.Errorf("upsert header: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE root_key = ?", key); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (root_key, node_id, parent_id, kind, identifier, name, size, created, modified, copying, add_pending)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for n := range tree.Len() {
		id := item.NodeID(n) //nolint:gosec // G115: arena bounded by NodeID
		it := tree.Get(id)
		a := it.Attributes()
		if s.beforeInsert != nil {
			if err := s.beforeInsert(n); err != nil {
				return err
			}
		}
		_, err := stmt.ExecContext(ctx, key, int32(id), int32(tree.Parent(id)), uint8(it.Kind()),
			int64(a.Identifier), a.Name, item.SizeOf(it), //nolint:gosec // G115: bit cast
			item.Nanos(a.Created), item.Nanos(a.Modified), item.CopyingOf(it), item.PendingOf(it))
		if err != nil {
			return fmt.Errorf("insert node %d: %w", n, err)
		}
	}
	return nil
}

// Forget implements Store.
func (s *SQLite) Forget(ctx context.Context, root string) error {
	key := RootKey(root)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forget %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE root_key = ?", key); err != nil {
		return fmt.Errorf("forget %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM baselines WHERE root_key = ?", key)
	if err != nil {
		return fmt.Errorf("forget %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports
		return fmt.Errorf("forget %s: %w", root, ErrUnknownRoot)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("forget %s: %w: %w", root, ErrStorageUnavailable, err)
	}
	return nil
}

// Roots implements Store.
func (s *SQLite) Roots(ctx context.Context) ([]Baseline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT root_key, root_path, generation, node_count, checksum, scanned_at
		FROM baselines ORDER BY root_path`)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []Baseline
	for rows.Next() {
		var (
			b         Baseline
			checksum  int64
			scannedAt int64
		)
		if err := rows.Scan(&b.Key, &b.Root, &b.Generation, &b.Nodes, &checksum, &scannedAt); err != nil {
			return nil, fmt.Errorf("list baselines: %w: %w", ErrStorageUnavailable, err)
		}
		b.Checksum = uint64(checksum) //nolint:gosec // G115: bit cast
		b.ScannedAt = time.Unix(0, scannedAt)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list baselines: %w: %w", ErrStorageUnavailable, err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
