package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/pkg/protocol"
)

// InvokeOpts carries the caller identity and the effective permission
// set for one invocation.
type InvokeOpts struct {
	Caller      string
	Permissions []string
}

// ToolInvocationPayload is emitted before a tool body runs.
type ToolInvocationPayload struct {
	ToolID string                 `json:"tool_id"`
	Args   map[string]interface{} `json:"args"`
	Caller string                 `json:"caller,omitempty"`
}

// ToolResultPayload is emitted after a tool body runs (or is denied).
type ToolResultPayload struct {
	ToolID string              `json:"tool_id"`
	Result protocol.ToolResult `json:"result"`
}

// Runner executes one registration's payload against args, within the
// given timeout, returning an already-normalized ToolResult.
type Runner interface {
	Run(ctx context.Context, reg Registration, args map[string]interface{}, timeout time.Duration) protocol.ToolResult
}

// Engine is the tool engine: registry + permission check + dispatch
// to runners. Every call emits exactly one ToolInvocationEvent and one
// ToolResultEvent, in that order, whatever the outcome.
type Engine struct {
	registry *Registry
	bus      *bus.Bus
	runners  map[RunnerKind]Runner
	timeout  time.Duration

	// limiters holds one token bucket per tool id, lazily created.
	limiterFactory func(toolID string) *rate.Limiter
	limiterMu      sync.Mutex
	limiters       map[string]*rate.Limiter
}

// EngineOption configures a new Engine.
type EngineOption func(*Engine)

// WithTimeout overrides the default per-invocation runner timeout.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithRunner registers a Runner implementation for a RunnerKind,
// replacing the default.
func WithRunner(kind RunnerKind, r Runner) EngineOption {
	return func(e *Engine) { e.runners[kind] = r }
}

// WithRateLimit installs a per-tool-id rate limiter factory. Nil (the
// default) disables rate limiting.
func WithRateLimit(factory func(toolID string) *rate.Limiter) EngineOption {
	return func(e *Engine) { e.limiterFactory = factory }
}

const defaultInvokeTimeout = 30 * time.Second

// NewEngine wires a Registry to a Bus with the default builtin runner
// installed. js/py runners are opt-in via WithRunner since they depend
// on external interpreters being present on the host.
func NewEngine(reg *Registry, b *bus.Bus, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		bus:      b,
		runners:  map[RunnerKind]Runner{RunnerBuiltin: BuiltinRunner{}},
		timeout:  defaultInvokeTimeout,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) emit(typ protocol.EventType, payload interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(typ, payload)
}

func (e *Engine) limiterFor(toolID string) *rate.Limiter {
	if e.limiterFactory == nil {
		return nil
	}
	e.limiterMu.Lock()
	defer e.limiterMu.Unlock()
	if l, ok := e.limiters[toolID]; ok {
		return l
	}
	l := e.limiterFactory(toolID)
	e.limiters[toolID] = l
	return l
}

// List enumerates the registered tool descriptors.
func (e *Engine) List() []Descriptor {
	return e.registry.List()
}

// Invoke validates args, checks permissions, emits the invocation/result
// event pair, runs the tool, and returns the normalized ToolResult. It
// never panics across the engine boundary: runner panics, timeouts,
// schema violations, and permission denials are all captured into
// {ok:false}.
func (e *Engine) Invoke(ctx context.Context, id string, args map[string]interface{}, opts InvokeOpts) protocol.ToolResult {
	reg, ok := e.registry.Get(id)
	if !ok {
		result := protocol.ErrResult(protocol.ErrInternal, fmt.Sprintf("tool not registered: %s", id))
		e.emit(protocol.EventToolInvocation, ToolInvocationPayload{ToolID: id, Args: args, Caller: opts.Caller})
		e.emit(protocol.EventToolResult, ToolResultPayload{ToolID: id, Result: result})
		return result
	}

	e.emit(protocol.EventToolInvocation, ToolInvocationPayload{ToolID: id, Args: args, Caller: opts.Caller})

	result := e.runChecked(ctx, reg, args, opts)

	e.emit(protocol.EventToolResult, ToolResultPayload{ToolID: id, Result: result})
	return result
}

func (e *Engine) runChecked(ctx context.Context, reg Registration, args map[string]interface{}, opts InvokeOpts) protocol.ToolResult {
	if missing := missingPermissions(reg.Descriptor.Permissions, opts.Permissions); len(missing) > 0 {
		return protocol.ErrResultWithDetails(protocol.ErrPermissionDenied,
			fmt.Sprintf("missing permissions: %v", missing),
			map[string]interface{}{"missing": missing})
	}

	if err := validateAgainstSchema(reg.Descriptor.InputSchema, args); err != nil {
		return protocol.ErrResult(protocol.ErrSchemaViolation, err.Error())
	}

	if l := e.limiterFor(reg.Descriptor.ID); l != nil && !l.Allow() {
		return protocol.ErrResult(protocol.ErrRunnerFailure, "rate limit exceeded")
	}

	runner, ok := e.runners[reg.Descriptor.Runner]
	if !ok {
		return protocol.ErrResult(protocol.ErrInternal, fmt.Sprintf("no runner installed for %q", reg.Descriptor.Runner))
	}

	return runner.Run(ctx, reg, args, e.timeout)
}

// missingPermissions returns the subset of required not present in
// effective.
func missingPermissions(required, effective []string) []string {
	have := make(map[string]bool, len(effective))
	for _, p := range effective {
		have[p] = true
	}
	var missing []string
	for _, p := range required {
		if !have[p] {
			missing = append(missing, p)
		}
	}
	return missing
}
