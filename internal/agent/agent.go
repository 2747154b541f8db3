// Package agent implements the step loop that drives a task to
// completion against a model adapter: assemble context, call the model,
// run requested tools through the engine, repeat until a final answer
// or a guard fires.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/internal/providers"
	"github.com/arium/arium/internal/tools"
	"github.com/arium/arium/internal/tracing"
	"github.com/arium/arium/pkg/protocol"
)

// State is the run lifecycle of an Agent.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateFinal     State = "final"
	StateExhausted State = "exhausted"
	StateErrored   State = "errored"
)

// Config configures one Agent. MaxSteps is a hard upper bound on loop
// iterations and must be positive.
type Config struct {
	ID          string
	Provider    providers.Provider
	Temperature float64
	MaxTokens   int
	MaxSteps    int
	Retry       providers.RetryConfig

	// Permissions is the effective permission set handed to the tool
	// engine on every invocation this agent makes.
	Permissions []string
}

// Result is the envelope Run returns. Ok is false for the exhausted and
// cancelled outcomes; permanent model errors surface as a returned
// error instead.
type Result struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`
}

// Payload shapes for the events the loop emits.

type StartPayload struct {
	AgentID string `json:"agent_id"`
	Input   string `json:"input"`
}

type StepPayload struct {
	AgentID string `json:"agent_id"`
	Step    int    `json:"step"`
}

type PromptPayload struct {
	AgentID string `json:"agent_id"`
	Step    int    `json:"step"`
	Prompt  string `json:"prompt"`
}

type ModelResponsePayload struct {
	AgentID  string                 `json:"agent_id"`
	Step     int                    `json:"step"`
	Response protocol.ModelResponse `json:"response"`
}

type EndPayload struct {
	AgentID string `json:"agent_id"`
	Ok      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
	Steps   int    `json:"steps"`
}

// Agent drives the step loop for one configured agent. Multiple Run
// calls may be in flight concurrently; each run's loop is sequential.
type Agent struct {
	cfg    Config
	bus    *bus.Bus
	engine *tools.Engine

	mu         sync.Mutex
	state      State
	activeRuns atomic.Int32
}

// New creates an Agent. cfg.MaxSteps must be positive and cfg.Provider
// non-nil; both are programmer errors, not runtime conditions.
func New(cfg Config, b *bus.Bus, engine *tools.Engine) (*Agent, error) {
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("agent: MaxSteps must be positive, got %d", cfg.MaxSteps)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agent: Provider is required")
	}
	if cfg.Retry == (providers.RetryConfig{}) {
		cfg.Retry = providers.DefaultRetryConfig()
	}
	return &Agent{cfg: cfg, bus: b, engine: engine, state: StateIdle}, nil
}

// State returns the state of the most recent run transition.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsRunning reports whether any run is currently in flight.
func (a *Agent) IsRunning() bool { return a.activeRuns.Load() > 0 }

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) emit(typ protocol.EventType, payload interface{}) {
	if a.bus == nil {
		return
	}
	a.bus.Emit(typ, payload)
}

func (a *Agent) toolSpecs() []providers.ToolSpec {
	if a.engine == nil {
		return nil
	}
	descs := a.engine.List()
	specs := make([]providers.ToolSpec, 0, len(descs))
	for _, d := range descs {
		specs = append(specs, providers.ToolSpec{
			Name:        d.ID,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return specs
}

// Run drives the loop to completion. It emits exactly one
// AgentStartEvent, zero or more AgentStepEvents (at most MaxSteps), and
// exactly one AgentEndEvent. Tool failures are fed back to the model,
// never terminate the run; permanent model errors terminate it with a
// non-nil error.
func (a *Agent) Run(ctx context.Context, input string) (Result, error) {
	a.activeRuns.Add(1)
	defer a.activeRuns.Add(-1)
	a.setState(StateRunning)

	ctx, runSpan := tracing.StartRun(ctx, a.cfg.ID)
	defer runSpan.End()

	a.emit(protocol.EventAgentStart, StartPayload{AgentID: a.cfg.ID, Input: input})

	tr := newTranscript(input)
	specs := a.toolSpecs()

	steps := 0
	for step := 0; step < a.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return a.end(StateErrored, steps, Result{Ok: false, Message: "cancelled"}, nil, "cancelled")
		}

		steps++
		prompt := tr.assemble(a.cfg.MaxTokens)
		a.emit(protocol.EventPrompt, PromptPayload{AgentID: a.cfg.ID, Step: step, Prompt: prompt.Render()})
		a.emit(protocol.EventAgentStep, StepPayload{AgentID: a.cfg.ID, Step: step})

		resp, err := a.generate(ctx, step, prompt, specs)
		if err != nil {
			if ctx.Err() != nil {
				return a.end(StateErrored, steps, Result{Ok: false, Message: "cancelled"}, nil, "cancelled")
			}
			return a.end(StateErrored, steps, Result{}, fmt.Errorf("agent %s: model call failed: %w", a.cfg.ID, err), err.Error())
		}

		a.emit(protocol.EventModelResponse, ModelResponsePayload{AgentID: a.cfg.ID, Step: step, Response: resp})

		switch resp.Type {
		case protocol.ModelResponseFinal:
			return a.end(StateFinal, steps, Result{Ok: true, Data: resp.Content}, nil, "")

		case protocol.ModelResponseTool:
			result := a.invokeTool(ctx, resp)
			tr.appendToolExchange(resp, result)

		default:
			slog.Warn("agent: malformed model response", "agent", a.cfg.ID, "step", step, "type", resp.Type)
			tr.appendError(fmt.Sprintf("unrecognized response type %q; respond with a final answer or a tool call", resp.Type))
		}
	}

	return a.end(StateExhausted, steps, Result{Ok: false, Message: "max steps exceeded"}, nil, "max steps exceeded")
}

func (a *Agent) generate(ctx context.Context, step int, prompt providers.Prompt, specs []providers.ToolSpec) (protocol.ModelResponse, error) {
	stepCtx, span := tracing.StartStep(ctx, a.cfg.ID, step)
	defer span.End()

	opts := providers.Options{
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Tools:       specs,
		ToolChoice:  providers.ToolChoice{Mode: "auto"},
	}

	return providers.RetryDo(stepCtx, a.cfg.Retry, func() (protocol.ModelResponse, error) {
		callCtx, callSpan := tracing.StartModelCall(stepCtx, a.cfg.Provider.Name())
		defer callSpan.End()
		resp, err := a.cfg.Provider.Generate(callCtx, prompt, opts)
		if err != nil {
			callSpan.SetStatus(codes.Error, err.Error())
		}
		return resp, err
	})
}

// invokeTool hands model-supplied arguments to the engine verbatim; the
// engine's validation is authoritative and its result envelope is what
// the model sees next step, ok or not.
func (a *Agent) invokeTool(ctx context.Context, resp protocol.ModelResponse) protocol.ToolResult {
	if a.engine == nil {
		return protocol.ErrResult(protocol.ErrInternal, "no tool engine configured")
	}
	toolCtx, span := tracing.StartToolCall(ctx, resp.Tool)
	defer span.End()
	result := a.engine.Invoke(toolCtx, resp.Tool, resp.Arguments, tools.InvokeOpts{
		Caller:      a.cfg.ID,
		Permissions: a.cfg.Permissions,
	})
	if !result.Ok {
		span.SetStatus(codes.Error, result.Error.Message)
	}
	return result
}

func (a *Agent) end(state State, steps int, res Result, err error, reason string) (Result, error) {
	a.setState(state)
	a.emit(protocol.EventAgentEnd, EndPayload{AgentID: a.cfg.ID, Ok: res.Ok && err == nil, Reason: reason, Steps: steps})
	return res, err
}
