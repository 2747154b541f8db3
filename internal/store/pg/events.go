// Package pg is the Postgres backing for the event journal. Schema
// setup runs through golang-migrate against embedded migration files,
// and Open returns before the migration finishes: Ready blocks until
// the store is serving, keeping startup async.
package pg

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/pkg/protocol"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EventStore journals events into Postgres.
type EventStore struct {
	db *sql.DB

	mu      sync.Mutex
	ready   chan struct{}
	initErr error
}

// Open connects to dsn and starts the schema migration in the
// background. Use Ready to wait for it before serving.
func Open(dsn string) (*EventStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store/pg: open: %w", err)
	}
	s := &EventStore{db: db, ready: make(chan struct{})}
	go s.init()
	return s, nil
}

func (s *EventStore) init() {
	defer close(s.ready)

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		s.setInitErr(fmt.Errorf("store/pg: load migrations: %w", err))
		return
	}
	driver, err := postgres.WithInstance(s.db, &postgres.Config{})
	if err != nil {
		s.setInitErr(fmt.Errorf("store/pg: migration driver: %w", err))
		return
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		s.setInitErr(fmt.Errorf("store/pg: create migrator: %w", err))
		return
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		s.setInitErr(fmt.Errorf("store/pg: migrate up: %w", err))
	}
}

func (s *EventStore) setInitErr(err error) {
	s.mu.Lock()
	s.initErr = err
	s.mu.Unlock()
}

// Ready blocks until the background migration completes (or ctx ends)
// and returns its result.
func (s *EventStore) Ready(ctx context.Context) error {
	select {
	case <-s.ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EventStore) Append(ctx context.Context, ev bus.Event) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		payload = []byte("null")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, type, timestamp, payload) VALUES ($1, $2, $3, $4)`,
		ev.ID, string(ev.Type), ev.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("store/pg: append event: %w", err)
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, limit int) ([]bus.Event, error) {
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}
	query := `SELECT id, type, timestamp, payload FROM events ORDER BY seq`
	args := []interface{}{}
	if limit > 0 {
		query = `SELECT id, type, timestamp, payload FROM (
			SELECT seq, id, type, timestamp, payload FROM events ORDER BY seq DESC LIMIT $1
		) sub ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/pg: load events: %w", err)
	}
	defer rows.Close()

	var out []bus.Event
	for rows.Next() {
		var ev bus.Event
		var typ string
		var payload []byte
		if err := rows.Scan(&ev.ID, &typ, &ev.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("store/pg: scan event: %w", err)
		}
		ev.Type = protocol.EventType(typ)
		var p interface{}
		if err := json.Unmarshal(payload, &p); err == nil {
			ev.Payload = p
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *EventStore) Close() error { return s.db.Close() }
