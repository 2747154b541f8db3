package bus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/arium/arium/pkg/protocol"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(Config{Now: fixedClock(time.Unix(0, 0))})
	id := b.Emit(protocol.EventPrompt, map[string]string{"step": "1"})
	if id == "" {
		t.Fatalf("expected non-empty event id")
	}
	hist := b.History()
	if len(hist) != 1 {
		t.Fatalf("expected 1 event, got %d", len(hist))
	}
	if hist[0].Type != protocol.EventPrompt {
		t.Fatalf("unexpected type %v", hist[0].Type)
	}
}

func TestListenerIsolation(t *testing.T) {
	b := New(Config{})
	var count int32
	b.On(protocol.EventPrompt, func(Event) { panic("boom") })
	b.On(protocol.EventPrompt, func(Event) { atomic.AddInt32(&count, 1) })

	b.Emit(protocol.EventPrompt, nil)

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected second listener to run once, got %d", got)
	}
}

func TestBoundedHistoryTruncate(t *testing.T) {
	b := New(Config{MaxHistorySize: 10, RetentionPolicy: RetentionTruncate})
	for i := 0; i < 15; i++ {
		b.Emit(protocol.EventPrompt, map[string]int{"step": i})
	}
	hist := b.History()
	if len(hist) != 10 {
		t.Fatalf("expected 10 retained events, got %d", len(hist))
	}
	first := hist[0].Payload.(map[string]int)["step"]
	last := hist[9].Payload.(map[string]int)["step"]
	if first != 5 || last != 14 {
		t.Fatalf("expected steps 5..14, got first=%d last=%d", first, last)
	}
}

func TestBoundedHistoryCircular(t *testing.T) {
	b := New(Config{MaxHistorySize: 10, RetentionPolicy: RetentionCircular})
	for i := 0; i < 15; i++ {
		b.Emit(protocol.EventPrompt, map[string]int{"step": i})
	}
	hist := b.History()
	if len(hist) != 10 {
		t.Fatalf("expected 10 retained events, got %d", len(hist))
	}
	first := hist[0].Payload.(map[string]int)["step"]
	last := hist[9].Payload.(map[string]int)["step"]
	if first != 5 || last != 14 {
		t.Fatalf("expected steps 5..14, got first=%d last=%d", first, last)
	}
}

func TestZeroCapacityStillDispatches(t *testing.T) {
	b := New(Config{MaxHistorySize: 0})
	var fired bool
	b.On(protocol.EventPrompt, func(Event) { fired = true })
	b.Emit(protocol.EventPrompt, nil)
	if !fired {
		t.Fatalf("expected listener to fire even with zero history capacity")
	}
	if len(b.History()) != 0 {
		t.Fatalf("expected no retained history")
	}
}

func TestGetHistoryLimit(t *testing.T) {
	b := New(Config{MaxHistorySize: 100})
	for i := 0; i < 5; i++ {
		b.Emit(protocol.EventPrompt, i)
	}
	got := b.GetHistory(HistoryFilter{Limit: 3})
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[2].Payload.(int) != 4 {
		t.Fatalf("expected most recent event last, got %v", got[2].Payload)
	}
}

func TestOffUnregisteredIsNoop(t *testing.T) {
	b := New(Config{})
	h := b.On(protocol.EventPrompt, func(Event) {})
	b.Off(h)
	b.Off(h) // second Off of the same handle: no-op, must not panic
}

func TestDuplicateRegistrationFiresTwice(t *testing.T) {
	b := New(Config{})
	var count int32
	l := func(Event) { atomic.AddInt32(&count, 1) }
	b.On(protocol.EventPrompt, l)
	b.On(protocol.EventPrompt, l)
	b.Emit(protocol.EventPrompt, nil)
	if got := atomic.LoadInt32(&count); got != 2 {
		t.Fatalf("expected listener to fire twice, got %d", got)
	}
}

func TestDispatchOrderTypeBeforeAny(t *testing.T) {
	b := New(Config{})
	var order []string
	b.On(protocol.EventAny, func(Event) { order = append(order, "any") })
	b.On(protocol.EventPrompt, func(Event) { order = append(order, "typed") })
	b.Emit(protocol.EventPrompt, nil)
	if len(order) != 2 || order[0] != "typed" || order[1] != "any" {
		t.Fatalf("expected typed before any, got %v", order)
	}
}
