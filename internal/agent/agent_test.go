package agent

import (
	"context"
	"testing"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/internal/providers"
	"github.com/arium/arium/internal/tools"
	"github.com/arium/arium/pkg/protocol"
)

func newTestEngine(b *bus.Bus) *tools.Engine {
	reg := tools.NewRegistry()
	reg.Register(tools.Registration{
		Descriptor: tools.Descriptor{ID: "t", Name: "t", Runner: tools.RunnerBuiltin},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			return protocol.OkResult(nil)
		},
	})
	return tools.NewEngine(reg, b)
}

func countEvents(b *bus.Bus, typ protocol.EventType) int {
	return len(b.GetHistory(bus.HistoryFilter{Type: typ}))
}

func TestRunExhaustsMaxSteps(t *testing.T) {
	b := bus.New(bus.Config{})
	engine := newTestEngine(b)
	provider := providers.NewMockProvider(protocol.ModelResponse{
		Type: protocol.ModelResponseTool, Tool: "t",
	})

	a, err := New(Config{ID: "a1", Provider: provider, MaxSteps: 3}, b, engine)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := a.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Ok {
		t.Fatalf("expected ok=false")
	}
	if res.Message != "max steps exceeded" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if a.State() != StateExhausted {
		t.Fatalf("expected exhausted state, got %v", a.State())
	}

	if got := countEvents(b, protocol.EventAgentStep); got != 3 {
		t.Fatalf("expected 3 step events, got %d", got)
	}
	if got := countEvents(b, protocol.EventToolInvocation); got != 3 {
		t.Fatalf("expected 3 invocation events, got %d", got)
	}
	if got := countEvents(b, protocol.EventToolResult); got != 3 {
		t.Fatalf("expected 3 result events, got %d", got)
	}
	if got := countEvents(b, protocol.EventAgentStart); got != 1 {
		t.Fatalf("expected 1 start event, got %d", got)
	}
	if got := countEvents(b, protocol.EventAgentEnd); got != 1 {
		t.Fatalf("expected 1 end event, got %d", got)
	}
}

func TestRunFinalOnFirstCall(t *testing.T) {
	b := bus.New(bus.Config{})
	provider := providers.NewMockProvider(protocol.ModelResponse{
		Type: protocol.ModelResponseFinal, Content: "done",
	})

	a, err := New(Config{ID: "a1", Provider: provider, MaxSteps: 5}, b, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := a.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Ok || res.Data != "done" {
		t.Fatalf("expected ok final 'done', got %+v", res)
	}
	if a.State() != StateFinal {
		t.Fatalf("expected final state, got %v", a.State())
	}
	if got := countEvents(b, protocol.EventAgentEnd); got != 1 {
		t.Fatalf("expected exactly 1 end event, got %d", got)
	}
	ends := b.GetHistory(bus.HistoryFilter{Type: protocol.EventAgentEnd})
	if p := ends[0].Payload.(EndPayload); !p.Ok {
		t.Fatalf("expected ok end payload, got %+v", p)
	}
}

func TestRunToolThenFinal(t *testing.T) {
	b := bus.New(bus.Config{})
	engine := newTestEngine(b)
	provider := providers.NewMockProvider(
		protocol.ModelResponse{Type: protocol.ModelResponseTool, Tool: "t"},
		protocol.ModelResponse{Type: protocol.ModelResponseFinal, Content: "after tool"},
	)

	a, _ := New(Config{ID: "a1", Provider: provider, MaxSteps: 5}, b, engine)
	res, err := a.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Ok || res.Data != "after tool" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := countEvents(b, protocol.EventToolInvocation); got != 1 {
		t.Fatalf("expected 1 invocation, got %d", got)
	}

	// Invocation precedes result in history.
	hist := b.History()
	var invIdx, resIdx = -1, -1
	for i, ev := range hist {
		switch ev.Type {
		case protocol.EventToolInvocation:
			invIdx = i
		case protocol.EventToolResult:
			resIdx = i
		}
	}
	if invIdx == -1 || resIdx == -1 || invIdx > resIdx {
		t.Fatalf("expected invocation before result, got inv=%d res=%d", invIdx, resIdx)
	}
}

func TestRunMalformedResponseCountsTowardMaxSteps(t *testing.T) {
	b := bus.New(bus.Config{})
	provider := providers.NewMockProvider(protocol.ModelResponse{Type: "garbage"})

	a, _ := New(Config{ID: "a1", Provider: provider, MaxSteps: 2}, b, nil)
	res, err := a.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Ok || res.Message != "max steps exceeded" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := countEvents(b, protocol.EventAgentStep); got != 2 {
		t.Fatalf("expected 2 step events, got %d", got)
	}
}

func TestRunPermanentModelErrorSurfaces(t *testing.T) {
	b := bus.New(bus.Config{})
	provider := &providers.MockProvider{
		Err: &providers.AdapterError{Kind: providers.ErrorPermanent, Err: context.DeadlineExceeded},
	}

	a, _ := New(Config{ID: "a1", Provider: provider, MaxSteps: 3}, b, nil)
	_, err := a.Run(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected error for permanent model failure")
	}
	if a.State() != StateErrored {
		t.Fatalf("expected errored state, got %v", a.State())
	}
	if got := countEvents(b, protocol.EventAgentEnd); got != 1 {
		t.Fatalf("expected 1 end event, got %d", got)
	}
}

func TestRunCancelledBeforeStep(t *testing.T) {
	b := bus.New(bus.Config{})
	provider := providers.NewMockProvider(protocol.ModelResponse{
		Type: protocol.ModelResponseTool, Tool: "t",
	})
	a, _ := New(Config{ID: "a1", Provider: provider, MaxSteps: 10}, b, newTestEngine(b))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := a.Run(ctx, "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Ok || res.Message != "cancelled" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := countEvents(b, protocol.EventAgentStep); got != 0 {
		t.Fatalf("expected no step events after immediate cancel, got %d", got)
	}
	ends := b.GetHistory(bus.HistoryFilter{Type: protocol.EventAgentEnd})
	if len(ends) != 1 || ends[0].Payload.(EndPayload).Reason != "cancelled" {
		t.Fatalf("expected one cancelled end event, got %+v", ends)
	}
}

func TestMaxStepsValidation(t *testing.T) {
	provider := providers.NewMockProvider()
	if _, err := New(Config{ID: "a1", Provider: provider}, nil, nil); err == nil {
		t.Fatalf("expected error for MaxSteps=0")
	}
	if _, err := New(Config{ID: "a1", MaxSteps: 1}, nil, nil); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}
