package vfs

import (
	"testing"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/pkg/protocol"
)

func TestWriteRead(t *testing.T) {
	b := bus.New(bus.Config{})
	m := NewMemory(b)

	if _, err := m.Write("a.txt", []byte("hi"), "test"); err != nil {
		t.Fatalf("write: %v", err)
	}
	content, ok := m.Read("a.txt")
	if !ok || string(content) != "hi" {
		t.Fatalf("expected hi, got %q ok=%v", content, ok)
	}

	changes := b.GetHistory(bus.HistoryFilter{Type: protocol.EventVFSChange})
	if len(changes) != 1 {
		t.Fatalf("expected 1 VFSChangeEvent, got %d", len(changes))
	}
	p := changes[0].Payload.(VFSChangePayload)
	if p.Path != "a.txt" || p.Op != OpWrite {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestVersionChain(t *testing.T) {
	m := NewMemory(nil)
	v1, _ := m.Write("a.txt", []byte("one"), "")
	v2, _ := m.Write("a.txt", []byte("two"), "")

	if v2.Prev != v1.ID {
		t.Fatalf("expected v2.Prev == v1.ID, got %q vs %q", v2.Prev, v1.ID)
	}
	if v1.ID == v2.ID {
		t.Fatalf("expected distinct version ids")
	}
	got, ok := m.GetVersion(v1.ID)
	if !ok || string(got.Content) != "one" {
		t.Fatalf("expected v1 content 'one', got %q ok=%v", got.Content, ok)
	}
}

func TestReadNeverWritten(t *testing.T) {
	m := NewMemory(nil)
	if _, ok := m.Read("nope.txt"); ok {
		t.Fatalf("expected no content for never-written path")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	m := NewMemory(nil)
	res := m.Delete("nope.txt")
	if !res.Ok || !res.NoOp {
		t.Fatalf("expected ok no-op delete, got %+v", res)
	}

	m.Write("a.txt", []byte("x"), "")
	res = m.Delete("a.txt")
	if !res.Ok || res.NoOp {
		t.Fatalf("expected ok non-no-op delete, got %+v", res)
	}
	if _, ok := m.Read("a.txt"); ok {
		t.Fatalf("expected deleted path to read as absent")
	}
	for _, p := range m.ListFiles() {
		if p == "a.txt" {
			t.Fatalf("expected a.txt excluded from ListFiles after delete")
		}
	}
}

func TestHistoryChainNewestFirst(t *testing.T) {
	m := NewMemory(nil)
	v1, _ := m.Write("a.txt", []byte("one"), "")
	v2, _ := m.Write("a.txt", []byte("two"), "")
	v3, _ := m.Write("a.txt", []byte("three"), "")

	hist := m.History("a.txt")
	if len(hist) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(hist))
	}
	if hist[0].ID != v3.ID || hist[1].ID != v2.ID || hist[2].ID != v1.ID {
		t.Fatalf("expected newest-to-oldest order")
	}
}

func TestHistorySurvivesDelete(t *testing.T) {
	m := NewMemory(nil)
	v1, _ := m.Write("a.txt", []byte("one"), "")
	m.Delete("a.txt")

	hist := m.History("a.txt")
	if len(hist) != 1 || hist[0].ID != v1.ID {
		t.Fatalf("expected chain reachable after delete, got %+v", hist)
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := NewMemory(nil)
	m.Write("a.txt", []byte("one"), "")
	snap := m.Snapshot()

	m.Write("a.txt", []byte("two"), "")
	m.Write("b.txt", []byte("new"), "")

	if err := m.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	content, ok := m.Read("a.txt")
	if !ok || string(content) != "one" {
		t.Fatalf("expected restored content 'one', got %q", content)
	}
	if _, ok := m.Read("b.txt"); ok {
		t.Fatalf("expected b.txt absent after restore to earlier snapshot")
	}
}

func TestPathTraversalKeysHaveNoEffect(t *testing.T) {
	m := NewMemory(nil)
	m.Write("../../etc/passwd", []byte("x"), "")
	content, ok := m.Read("../../etc/passwd")
	if !ok || string(content) != "x" {
		t.Fatalf("expected opaque key treatment, got ok=%v content=%q", ok, content)
	}
}
