// Package pg implements a vfs.FS backed by Postgres, the optional
// persistence boundary for the versioned VFS.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/internal/vfs"
	"github.com/arium/arium/pkg/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS vfs_versions (
	id         TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	content    BYTEA NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	prev       TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS vfs_versions_path_idx ON vfs_versions (path);

CREATE TABLE IF NOT EXISTS vfs_latest (
	path       TEXT PRIMARY KEY,
	version_id TEXT NOT NULL REFERENCES vfs_versions(id)
);

CREATE TABLE IF NOT EXISTS vfs_snapshots (
	id   TEXT NOT NULL,
	path TEXT NOT NULL,
	version_id TEXT NOT NULL,
	PRIMARY KEY (id, path)
);
`

// FS is a Postgres-backed vfs.FS. Open only sets up the pool; Init runs the
// schema migration and must complete before the FS serves requests,
// so bootstrap can run it asynchronously and gate on the result.
type FS struct {
	db  *sql.DB
	bus *bus.Bus

	mu    sync.Mutex
	ready bool
}

// Open connects (lazily — database/sql pools on first use) to dsn.
func Open(b *bus.Bus, dsn string) (*FS, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("vfs/pg: open: %w", err)
	}
	return &FS{db: db, bus: b}, nil
}

// Init runs the schema migration. Must complete before Write/Read/etc.
// are called; the caller is expected to await it during bootstrap.
func (f *FS) Init(ctx context.Context) error {
	if _, err := f.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("vfs/pg: migrate: %w", err)
	}
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()
	return nil
}

func (f *FS) checkReady() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return fmt.Errorf("vfs/pg: not initialized; call Init first")
	}
	return nil
}

func (f *FS) emit(path, versionID string, op vfs.ChangeOp) {
	if f.bus == nil {
		return
	}
	f.bus.Emit(protocol.EventVFSChange, vfs.VFSChangePayload{Path: path, VersionID: versionID, Op: op})
}

// Write inserts a new version row chained to the path's current version
// and updates vfs_latest inside a single transaction, so a concurrent
// write to the same path can't observe a torn prev/latest pair, then
// emits one VFSChangeEvent after the commit.
func (f *FS) Write(path string, content []byte, author string) (vfs.FileVersion, error) {
	if err := f.checkReady(); err != nil {
		return vfs.FileVersion{}, err
	}
	ctx := context.Background()
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return vfs.FileVersion{}, fmt.Errorf("vfs/pg: begin: %w", err)
	}
	defer tx.Rollback()

	var prev sql.NullString
	row := tx.QueryRowContext(ctx, `SELECT version_id FROM vfs_latest WHERE path = $1 FOR UPDATE`, path)
	_ = row.Scan(&prev)

	v := vfs.FileVersion{
		ID:        uuid.NewString(),
		Path:      path,
		Content:   append([]byte(nil), content...),
		Author:    author,
		Timestamp: time.Now().UTC(),
		Prev:      prev.String,
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vfs_versions (id, path, content, author, prev, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		v.ID, v.Path, v.Content, v.Author, nullIfEmpty(v.Prev), v.Timestamp); err != nil {
		return vfs.FileVersion{}, fmt.Errorf("vfs/pg: insert version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vfs_latest (path, version_id) VALUES ($1,$2)
		 ON CONFLICT (path) DO UPDATE SET version_id = EXCLUDED.version_id`,
		path, v.ID); err != nil {
		return vfs.FileVersion{}, fmt.Errorf("vfs/pg: upsert latest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return vfs.FileVersion{}, fmt.Errorf("vfs/pg: commit: %w", err)
	}

	f.emit(path, v.ID, vfs.OpWrite)
	return v, nil
}

func (f *FS) Read(path string) ([]byte, bool) {
	if err := f.checkReady(); err != nil {
		return nil, false
	}
	var content []byte
	err := f.db.QueryRow(
		`SELECT v.content FROM vfs_versions v JOIN vfs_latest l ON l.version_id = v.id WHERE l.path = $1`,
		path).Scan(&content)
	if err != nil {
		return nil, false
	}
	return content, true
}

func (f *FS) Delete(path string) vfs.DeleteResult {
	if err := f.checkReady(); err != nil {
		return vfs.DeleteResult{Ok: false}
	}
	res, err := f.db.Exec(`DELETE FROM vfs_latest WHERE path = $1`, path)
	if err != nil {
		return vfs.DeleteResult{Ok: false}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return vfs.DeleteResult{Ok: true, NoOp: true}
	}
	f.emit(path, "", vfs.OpDelete)
	return vfs.DeleteResult{Ok: true}
}

func (f *FS) ListFiles() []string {
	if err := f.checkReady(); err != nil {
		return nil
	}
	rows, err := f.db.Query(`SELECT path FROM vfs_latest`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if rows.Scan(&p) == nil {
			out = append(out, p)
		}
	}
	return out
}

func (f *FS) GetVersion(id string) (vfs.FileVersion, bool) {
	if err := f.checkReady(); err != nil {
		return vfs.FileVersion{}, false
	}
	var v vfs.FileVersion
	var prev sql.NullString
	err := f.db.QueryRow(
		`SELECT id, path, content, author, prev, created_at FROM vfs_versions WHERE id = $1`, id,
	).Scan(&v.ID, &v.Path, &v.Content, &v.Author, &prev, &v.Timestamp)
	if err != nil {
		return vfs.FileVersion{}, false
	}
	v.Prev = prev.String
	return v, true
}

func (f *FS) History(path string) []vfs.FileVersion {
	id, ok := f.currentVersionID(path)
	if !ok {
		return nil
	}
	var out []vfs.FileVersion
	for id != "" {
		v, ok := f.GetVersion(id)
		if !ok {
			break
		}
		out = append(out, v)
		id = v.Prev
	}
	return out
}

// currentVersionID prefers the live mapping and falls back to the most
// recent version row, so History keeps working for deleted paths.
func (f *FS) currentVersionID(path string) (string, bool) {
	var id string
	err := f.db.QueryRow(`SELECT version_id FROM vfs_latest WHERE path = $1`, path).Scan(&id)
	if err == nil {
		return id, true
	}
	err = f.db.QueryRow(
		`SELECT id FROM vfs_versions WHERE path = $1 ORDER BY created_at DESC LIMIT 1`, path).Scan(&id)
	if err != nil {
		return "", false
	}
	return id, true
}

// Snapshot freezes the current path to latest-version mapping under a
// new snapshot id. Postgres never deletes version rows, so snapshots
// here never race a collection.
func (f *FS) Snapshot() string {
	if err := f.checkReady(); err != nil {
		return ""
	}
	id := uuid.NewString()
	f.db.Exec(
		`INSERT INTO vfs_snapshots (id, path, version_id) SELECT $1, path, version_id FROM vfs_latest`, id)
	return id
}

// Restore replaces vfs_latest with the snapshot's mapping and emits one
// VFSChangeEvent per affected path.
func (f *FS) Restore(snapshotID string) error {
	if err := f.checkReady(); err != nil {
		return err
	}
	ctx := context.Background()
	rows, err := f.db.QueryContext(ctx, `SELECT path, version_id FROM vfs_snapshots WHERE id = $1`, snapshotID)
	if err != nil {
		return fmt.Errorf("vfs/pg: read snapshot: %w", err)
	}
	frozen := make(map[string]string)
	for rows.Next() {
		var p, v string
		if rows.Scan(&p, &v) == nil {
			frozen[p] = v
		}
	}
	rows.Close()
	if len(frozen) == 0 {
		return fmt.Errorf("vfs/pg: snapshot not found: %s", snapshotID)
	}

	current := make(map[string]string)
	for _, p := range f.ListFiles() {
		if id, ok := f.currentVersionID(p); ok {
			current[p] = id
		}
	}

	changed := make(map[string]string)
	for p, id := range frozen {
		if current[p] != id {
			changed[p] = id
		}
	}
	for p := range current {
		if _, ok := frozen[p]; !ok {
			changed[p] = ""
		}
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vfs/pg: begin restore: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM vfs_latest`); err != nil {
		return err
	}
	for p, v := range frozen {
		if _, err := tx.ExecContext(ctx, `INSERT INTO vfs_latest (path, version_id) VALUES ($1,$2)`, p, v); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vfs/pg: commit restore: %w", err)
	}

	for p, id := range changed {
		op := vfs.OpWrite
		if id == "" {
			op = vfs.OpDelete
		}
		f.emit(p, id, op)
	}
	return nil
}

func (f *FS) Close() error { return f.db.Close() }

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ vfs.FS = (*FS)(nil)
