package tools

import (
	"context"
	"testing"
	"time"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/pkg/protocol"
)

func echoRegistration(id string, perms ...string) Registration {
	return Registration{
		Descriptor: Descriptor{
			ID:          id,
			Name:        id,
			Runner:      RunnerBuiltin,
			Permissions: perms,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"msg"},
				"properties": map[string]interface{}{
					"msg": map[string]interface{}{"type": "string"},
				},
			},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			return protocol.OkResult(args["msg"])
		},
	}
}

func TestInvokeEmitsEventPair(t *testing.T) {
	b := bus.New(bus.Config{})
	reg := NewRegistry()
	reg.Register(echoRegistration("echo"))
	e := NewEngine(reg, b)

	res := e.Invoke(context.Background(), "echo", map[string]interface{}{"msg": "hi"}, InvokeOpts{})
	if !res.Ok || res.Data != "hi" {
		t.Fatalf("unexpected result %+v", res)
	}

	hist := b.History()
	if len(hist) != 2 {
		t.Fatalf("expected 2 events, got %d", len(hist))
	}
	if hist[0].Type != protocol.EventToolInvocation || hist[1].Type != protocol.EventToolResult {
		t.Fatalf("expected invocation then result, got %v %v", hist[0].Type, hist[1].Type)
	}
	inv := hist[0].Payload.(ToolInvocationPayload)
	out := hist[1].Payload.(ToolResultPayload)
	if inv.ToolID != "echo" || out.ToolID != "echo" {
		t.Fatalf("expected matching tool ids, got %q %q", inv.ToolID, out.ToolID)
	}
}

func TestInvokePermissionDenied(t *testing.T) {
	b := bus.New(bus.Config{})
	reg := NewRegistry()

	called := false
	r := echoRegistration("guarded", "net")
	inner := r.Builtin
	r.Builtin = func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
		called = true
		return inner(ctx, args)
	}
	reg.Register(r)
	e := NewEngine(reg, b)

	res := e.Invoke(context.Background(), "guarded", map[string]interface{}{"msg": "x"}, InvokeOpts{Permissions: []string{"vfs.read"}})
	if res.Ok {
		t.Fatalf("expected denial")
	}
	if res.Error.Code != protocol.ErrPermissionDenied {
		t.Fatalf("expected permission_denied, got %v", res.Error.Code)
	}
	if called {
		t.Fatalf("tool body must not run on denial")
	}
	// The attempt is still auditable: both events present.
	if len(b.History()) != 2 {
		t.Fatalf("expected event pair for denied call, got %d", len(b.History()))
	}
}

func TestInvokeSchemaViolation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoRegistration("echo"))
	e := NewEngine(reg, bus.New(bus.Config{}))

	res := e.Invoke(context.Background(), "echo", map[string]interface{}{}, InvokeOpts{})
	if res.Ok || res.Error.Code != protocol.ErrSchemaViolation {
		t.Fatalf("expected schema_violation, got %+v", res)
	}

	res = e.Invoke(context.Background(), "echo", map[string]interface{}{"msg": 42}, InvokeOpts{})
	if res.Ok || res.Error.Code != protocol.ErrSchemaViolation {
		t.Fatalf("expected schema_violation for wrong type, got %+v", res)
	}
}

func TestInvokePanicNormalized(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Registration{
		Descriptor: Descriptor{ID: "boom", Runner: RunnerBuiltin},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			panic("kaboom")
		},
	})
	e := NewEngine(reg, nil)

	res := e.Invoke(context.Background(), "boom", nil, InvokeOpts{})
	if res.Ok || res.Error.Code != protocol.ErrRunnerFailure {
		t.Fatalf("expected runner_failure for panic, got %+v", res)
	}
}

func TestInvokeTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Registration{
		Descriptor: Descriptor{ID: "slow", Runner: RunnerBuiltin},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			<-ctx.Done()
			return protocol.OkResult(nil)
		},
	})
	e := NewEngine(reg, nil, WithTimeout(10*time.Millisecond))

	res := e.Invoke(context.Background(), "slow", nil, InvokeOpts{})
	if res.Ok || res.Error.Code != protocol.ErrTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	e := NewEngine(NewRegistry(), nil)
	res := e.Invoke(context.Background(), "nope", nil, InvokeOpts{})
	if res.Ok || res.Error.Code != protocol.ErrInternal {
		t.Fatalf("expected internal error for unknown tool, got %+v", res)
	}
}

func TestReRegistrationReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoRegistration("dup"))

	r2 := echoRegistration("dup")
	r2.Builtin = func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
		return protocol.OkResult("second")
	}
	reg.Register(r2)

	descs := reg.List()
	count := 0
	for _, d := range descs {
		if d.ID == "dup" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one descriptor for dup, got %d", count)
	}

	e := NewEngine(reg, nil)
	res := e.Invoke(context.Background(), "dup", map[string]interface{}{"msg": "x"}, InvokeOpts{})
	if !res.Ok || res.Data != "second" {
		t.Fatalf("expected second registration to win, got %+v", res)
	}
}
