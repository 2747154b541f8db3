// Package store is the persistence boundary for the runtime: pluggable
// backings that journal the event stream and recover it on restart.
// Persistence is best-effort; the in-memory bus and VFS remain the
// source of truth while the process is up.
package store

import (
	"context"
	"fmt"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/internal/config"
	"github.com/arium/arium/internal/store/pg"
)

// EventStore journals emitted events and recovers them at startup.
type EventStore interface {
	// Append journals one event. Errors are logged by the journal
	// hook, never surfaced to the emitter.
	Append(ctx context.Context, ev bus.Event) error
	// Load returns the journalled events in emission order. limit
	// takes the most recent N; 0 means all.
	Load(ctx context.Context, limit int) ([]bus.Event, error)
	Close() error
}

// New selects an EventStore backing from the storage config. With
// persistence disabled it returns the in-memory store, which survives
// only as long as the process.
func New(cfg config.StorageConfig) (EventStore, error) {
	if !cfg.Persistent {
		return NewMemory(), nil
	}
	switch cfg.Backend {
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "arium.db"
		}
		return OpenSQLite(path)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("store: backend postgres requires ARIUM_POSTGRES_DSN")
		}
		return pg.Open(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
