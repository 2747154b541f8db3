package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/pkg/protocol"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL,
	type      TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	payload   TEXT
);
`

// SQLiteStore journals events into an embedded SQLite database. It is
// the default persistent backing: no server to run, a single file next
// to the workspace.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the journal database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, ev bus.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		payload = []byte("null")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, type, timestamp, payload) VALUES (?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, limit int) ([]bus.Event, error) {
	query := `SELECT id, type, timestamp, payload FROM events ORDER BY seq`
	args := []interface{}{}
	if limit > 0 {
		query = `SELECT id, type, timestamp, payload FROM (
			SELECT seq, id, type, timestamp, payload FROM events ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: load events: %w", err)
	}
	defer rows.Close()

	var out []bus.Event
	for rows.Next() {
		var ev bus.Event
		var typ, payload string
		if err := rows.Scan(&ev.ID, &typ, &ev.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		ev.Type = protocol.EventType(typ)
		var p interface{}
		if err := json.Unmarshal([]byte(payload), &p); err == nil {
			ev.Payload = p
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
