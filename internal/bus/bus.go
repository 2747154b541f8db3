// Package bus implements the in-process typed event bus: emit/subscribe
// with bounded, append-only history and two interchangeable retention
// policies.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arium/arium/pkg/protocol"
)

// RetentionPolicy governs how the bus enforces maxHistorySize. Both
// policies produce the same observable result (history holds the last
// maxHistorySize emissions in order); they differ only in operational
// cost.
type RetentionPolicy string

const (
	// RetentionTruncate drops the oldest excess events once the buffer
	// exceeds capacity.
	RetentionTruncate RetentionPolicy = "truncate"
	// RetentionCircular overwrites the oldest slots in place.
	RetentionCircular RetentionPolicy = "circular"
)

const defaultMaxHistorySize = 10000

// Event is an immutable record appended to the bus history. Once
// returned from Emit, its fields never change.
type Event struct {
	ID        string             `json:"id"`
	Type      protocol.EventType `json:"type"`
	Timestamp int64              `json:"timestamp"` // ms since epoch
	Payload   interface{}        `json:"payload,omitempty"`
}

// Listener is a callable registered under a type tag or EventAny.
type Listener func(Event)

// HistoryFilter narrows GetHistory's view of retained events.
type HistoryFilter struct {
	Type    protocol.EventType
	SinceTs int64
	UntilTs int64
	Limit   int
}

// Handle identifies a registration so it can be removed with Off.
type Handle struct {
	typ string
	fn  *Listener
}

// Config configures a new Bus.
type Config struct {
	MaxHistorySize  int
	RetentionPolicy RetentionPolicy
	// Now returns the current time; overridable in tests. Defaults to
	// time.Now.
	Now func() time.Time
}

// Bus is a typed pub/sub with bounded append-only history. All exported
// methods are safe for concurrent use. Within a single Emit, listeners
// registered for the specific type fire before listeners registered for
// EventAny, in registration order.
type Bus struct {
	mu        sync.Mutex
	cfg       Config
	listeners map[protocol.EventType][]*Listener
	history   []Event
	// circular buffer state, used only when cfg.RetentionPolicy == RetentionCircular
	circBuf  []Event
	circNext int
	circFull bool
}

// New creates a Bus. A zero Config yields maxHistorySize=10000 and the
// truncate policy.
func New(cfg Config) *Bus {
	if cfg.MaxHistorySize == 0 {
		cfg.MaxHistorySize = defaultMaxHistorySize
	}
	if cfg.MaxHistorySize < 0 {
		cfg.MaxHistorySize = 0
	}
	if cfg.RetentionPolicy == "" {
		cfg.RetentionPolicy = RetentionTruncate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	b := &Bus{
		cfg:       cfg,
		listeners: make(map[protocol.EventType][]*Listener),
	}
	if cfg.RetentionPolicy == RetentionCircular && cfg.MaxHistorySize > 0 {
		b.circBuf = make([]Event, cfg.MaxHistorySize)
	}
	return b
}

// Emit stamps an id and timestamp onto payload, appends it to history
// (subject to retention), dispatches it synchronously to listeners, and
// returns the assigned event id. Emit never fails because a listener
// errors — failures are logged and swallowed, never journalled (to avoid
// feedback loops).
func (b *Bus) Emit(typ protocol.EventType, payload interface{}) string {
	if typ == protocol.EventAny {
		// "any" is a subscription filter, never an emitted type; treat
		// a caller mistake as internal rather than corrupting history.
		slog.Error("bus: refusing to emit reserved type", "type", typ)
		return ""
	}

	ev := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: b.cfg.Now().UnixMilli(),
		Payload:   payload,
	}

	b.mu.Lock()
	b.append(ev)
	typed := append([]*Listener(nil), b.listeners[typ]...)
	any := append([]*Listener(nil), b.listeners[protocol.EventAny]...)
	b.mu.Unlock()

	dispatch := append(typed, any...)
	for _, l := range dispatch {
		b.safeDispatch(*l, ev)
	}

	return ev.ID
}

func (b *Bus) safeDispatch(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus: listener panicked", "type", ev.Type, "event_id", ev.ID, "recover", r)
		}
	}()
	l(ev)
}

// append must be called with b.mu held.
func (b *Bus) append(ev Event) {
	if b.cfg.MaxHistorySize == 0 {
		return
	}
	switch b.cfg.RetentionPolicy {
	case RetentionCircular:
		b.circBuf[b.circNext] = ev
		b.circNext = (b.circNext + 1) % len(b.circBuf)
		if b.circNext == 0 {
			b.circFull = true
		}
	default: // RetentionTruncate
		b.history = append(b.history, ev)
		if len(b.history) > b.cfg.MaxHistorySize {
			excess := len(b.history) - b.cfg.MaxHistorySize
			b.history = append([]Event(nil), b.history[excess:]...)
		}
	}
}

// snapshot returns the retained events in emission order. Must be called
// with b.mu held.
func (b *Bus) snapshot() []Event {
	if b.cfg.MaxHistorySize == 0 {
		return nil
	}
	if b.cfg.RetentionPolicy != RetentionCircular {
		out := make([]Event, len(b.history))
		copy(out, b.history)
		return out
	}
	if !b.circFull {
		out := make([]Event, b.circNext)
		copy(out, b.circBuf[:b.circNext])
		return out
	}
	out := make([]Event, len(b.circBuf))
	copy(out, b.circBuf[b.circNext:])
	copy(out[len(b.circBuf)-b.circNext:], b.circBuf[:b.circNext])
	return out
}

// History returns an ordered, read-only copy of retained events in
// emission order.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// GetHistory returns a filtered view over retained events. Limit takes
// the most recent N events after the type/time filters are applied.
func (b *Bus) GetHistory(f HistoryFilter) []Event {
	b.mu.Lock()
	all := b.snapshot()
	b.mu.Unlock()

	var out []Event
	for _, ev := range all {
		if f.Type != "" && f.Type != protocol.EventAny && ev.Type != f.Type {
			continue
		}
		if f.SinceTs != 0 && ev.Timestamp < f.SinceTs {
			continue
		}
		if f.UntilTs != 0 && ev.Timestamp > f.UntilTs {
			continue
		}
		out = append(out, ev)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// On registers a listener under a type tag or protocol.EventAny.
// Duplicate registrations of the same pair are allowed and fire N times.
func (b *Bus) On(typ protocol.EventType, l Listener) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &l
	b.listeners[typ] = append(b.listeners[typ], p)
	return Handle{typ: string(typ), fn: p}
}

// Off removes the first matching registration; a no-op if absent.
func (b *Bus) Off(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	typ := protocol.EventType(h.typ)
	list := b.listeners[typ]
	for i, p := range list {
		if p == h.fn {
			b.listeners[typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// EventPublisher is a narrow view of the bus for callers (the CLI, a
// future HTTP layer) that want to observe emissions by an opaque
// subscriber id rather than through the typed On/Off handle API.
type EventPublisher interface {
	Subscribe(id string, handler func(Event))
	Unsubscribe(id string)
	Broadcast(ev Event)
}

type subscriberBus struct {
	*Bus
	mu   sync.Mutex
	subs map[string]Handle
}

// AsEventPublisher adapts a Bus to the EventPublisher interface, keyed
// on protocol.EventAny so every emission reaches every subscriber.
func AsEventPublisher(b *Bus) EventPublisher {
	return &subscriberBus{Bus: b, subs: make(map[string]Handle)}
}

func (s *subscriberBus) Subscribe(id string, handler func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.subs[id]; ok {
		s.Bus.Off(old)
	}
	s.subs[id] = s.Bus.On(protocol.EventAny, Listener(handler))
}

func (s *subscriberBus) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.subs[id]; ok {
		s.Bus.Off(h)
		delete(s.subs, id)
	}
}

func (s *subscriberBus) Broadcast(ev Event) {
	s.Bus.Emit(ev.Type, ev.Payload)
}
