package tools

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/arium/arium/pkg/protocol"
)

func requireInterpreter(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

func TestPyRunnerCallsRunFunction(t *testing.T) {
	requireInterpreter(t, "python3")
	r := NewPyRunner()
	reg := Registration{
		Descriptor: Descriptor{ID: "py.echo", Runner: RunnerPy},
		Source: `def run(args):
    return {"ok": True, "data": args.get("msg")}
`,
	}

	res := r.Run(context.Background(), reg, map[string]interface{}{"msg": "hi"}, 30*time.Second)
	if !res.Ok || res.Data != "hi" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPyRunnerPropagatesFailureEnvelope(t *testing.T) {
	requireInterpreter(t, "python3")
	r := NewPyRunner()
	reg := Registration{
		Descriptor: Descriptor{ID: "py.fail", Runner: RunnerPy},
		Source: `def run(args):
    return {"ok": False, "error": {"message": "bad input", "code": "schema_violation"}}
`,
	}

	res := r.Run(context.Background(), reg, nil, 30*time.Second)
	if res.Ok {
		t.Fatalf("expected failure envelope, got %+v", res)
	}
	if res.Error.Message != "bad input" || res.Error.Code != protocol.ErrSchemaViolation {
		t.Fatalf("unexpected error %+v", res.Error)
	}
}

func TestPyRunnerMissingEntrypoint(t *testing.T) {
	requireInterpreter(t, "python3")
	r := NewPyRunner()
	reg := Registration{
		Descriptor: Descriptor{ID: "py.bad", Runner: RunnerPy},
		Source:     `x = 1`,
	}

	res := r.Run(context.Background(), reg, nil, 30*time.Second)
	if res.Ok || res.Error.Code != protocol.ErrRunnerFailure {
		t.Fatalf("expected runner_failure for missing run(args), got %+v", res)
	}
}

func TestJSRunnerCallsRunFunction(t *testing.T) {
	requireInterpreter(t, "node")
	r := NewJSRunner()
	reg := Registration{
		Descriptor: Descriptor{ID: "js.echo", Runner: RunnerJS},
		Source: `async function run(args) {
	return { ok: true, data: args.msg };
}
`,
	}

	res := r.Run(context.Background(), reg, map[string]interface{}{"msg": "hi"}, 30*time.Second)
	if !res.Ok || res.Data != "hi" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestJSRunnerModuleExports(t *testing.T) {
	requireInterpreter(t, "node")
	r := NewJSRunner()
	reg := Registration{
		Descriptor: Descriptor{ID: "js.exported", Runner: RunnerJS},
		Source: `module.exports.run = async (args) => ({ ok: true, data: "exported" });
`,
	}

	res := r.Run(context.Background(), reg, nil, 30*time.Second)
	if !res.Ok || res.Data != "exported" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAsEnvelope(t *testing.T) {
	res, ok := asEnvelope(map[string]interface{}{"ok": true, "data": "x"})
	if !ok || !res.Ok || res.Data != "x" {
		t.Fatalf("expected ok envelope, got ok=%v res=%+v", ok, res)
	}

	res, ok = asEnvelope(map[string]interface{}{
		"ok":    false,
		"error": map[string]interface{}{"message": "nope", "code": "timeout"},
	})
	if !ok || res.Ok {
		t.Fatalf("expected failed envelope, got ok=%v res=%+v", ok, res)
	}
	if res.Error.Message != "nope" || res.Error.Code != protocol.ErrTimeout {
		t.Fatalf("unexpected error %+v", res.Error)
	}

	if _, ok := asEnvelope(map[string]interface{}{"value": 1}); ok {
		t.Fatalf("plain object without ok key is not an envelope")
	}
	if _, ok := asEnvelope("just a string"); ok {
		t.Fatalf("non-object output is not an envelope")
	}
}
