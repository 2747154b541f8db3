package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/internal/config"
	"github.com/arium/arium/pkg/protocol"
)

func TestJournalCapturesEmissions(t *testing.T) {
	b := bus.New(bus.Config{})
	es := NewMemory()
	h := Journal(b, es)
	defer b.Off(h)

	b.Emit(protocol.EventPrompt, map[string]interface{}{"step": 1})
	b.Emit(protocol.EventAgentStart, nil)

	events, err := es.Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 journalled events, got %d", len(events))
	}
	if events[0].Type != protocol.EventPrompt || events[1].Type != protocol.EventAgentStart {
		t.Fatalf("unexpected order %v %v", events[0].Type, events[1].Type)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	es, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer es.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ev := bus.Event{
			ID:        "ev-" + string(rune('a'+i)),
			Type:      protocol.EventPrompt,
			Timestamp: int64(1000 + i),
			Payload:   map[string]interface{}{"step": float64(i)},
		}
		if err := es.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := es.Load(ctx, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	if events[0].ID != "ev-a" || events[4].ID != "ev-e" {
		t.Fatalf("unexpected order %s..%s", events[0].ID, events[4].ID)
	}

	recent, err := es.Load(ctx, 2)
	if err != nil {
		t.Fatalf("load limit: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "ev-d" {
		t.Fatalf("expected most recent 2 in order, got %+v", recent)
	}
	if step := recent[1].Payload.(map[string]interface{})["step"]; step != float64(4) {
		t.Fatalf("expected payload round-trip, got %v", step)
	}
}

func TestFactorySelectsBacking(t *testing.T) {
	es, err := New(config.StorageConfig{Persistent: false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := es.(*MemoryStore); !ok {
		t.Fatalf("expected memory store when persistence disabled, got %T", es)
	}

	es, err = New(config.StorageConfig{
		Persistent: true,
		Backend:    "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "x.db"),
	})
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	defer es.Close()
	if _, ok := es.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", es)
	}

	if _, err := New(config.StorageConfig{Persistent: true, Backend: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
