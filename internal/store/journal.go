package store

import (
	"context"
	"log/slog"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/pkg/protocol"
)

// Journal attaches es to b so every emission is appended to the store.
// Append failures are logged and swallowed: journalling is best-effort
// and must never interrupt an emitter. Returns the handle so callers
// can detach.
func Journal(b *bus.Bus, es EventStore) bus.Handle {
	return b.On(protocol.EventAny, func(ev bus.Event) {
		if err := es.Append(context.Background(), ev); err != nil {
			slog.Error("store: journal append failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		}
	})
}

// Replay loads the journalled stream from es. Callers decide what to do
// with it (seed a fresh bus history view, rebuild projections); replayed
// events are not re-emitted, which would double-journal them.
func Replay(ctx context.Context, es EventStore, limit int) ([]bus.Event, error) {
	return es.Load(ctx, limit)
}
