package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/arium/arium/internal/agent"
	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/internal/config"
	"github.com/arium/arium/internal/mcp"
	"github.com/arium/arium/internal/providers"
	"github.com/arium/arium/internal/store"
	"github.com/arium/arium/internal/tools"
	"github.com/arium/arium/internal/vfs"
)

// runtime bundles the wired core components for one CLI invocation.
type runtime struct {
	cfg      *config.Config
	bus      *bus.Bus
	fs       vfs.FS
	registry *tools.Registry
	engine   *tools.Engine
	events   store.EventStore
	mcp      *mcp.Manager
}

// buildRuntime loads config and wires bus → store journal → vfs →
// registry → engine, in dependency order.
func buildRuntime() (*runtime, error) {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}

	b := bus.New(bus.Config{
		MaxHistorySize:  cfg.Bus.MaxHistorySize,
		RetentionPolicy: bus.RetentionPolicy(cfg.Bus.RetentionPolicy),
	})

	storageCfg := cfg.Storage
	if storageCfg.SQLitePath == "" {
		if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace dir: %w", err)
		}
		storageCfg.SQLitePath = filepath.Join(cfg.Workspace.Path, "arium.db")
	}
	events, err := store.New(storageCfg)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	store.Journal(b, events)

	fs := vfs.NewMemory(b)

	registry := tools.NewRegistry()
	tools.RegisterFSTools(registry, fs)
	tools.RegisterWebTools(registry)
	tools.RegisterImageTools(registry, fs)

	var opts []tools.EngineOption
	if cfg.Tools.TimeoutSec > 0 {
		opts = append(opts, tools.WithTimeout(time.Duration(cfg.Tools.TimeoutSec)*time.Second))
	}
	if cfg.Tools.RateLimitRPM > 0 {
		rpm := cfg.Tools.RateLimitRPM
		opts = append(opts, tools.WithRateLimit(func(toolID string) *rate.Limiter {
			return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
		}))
	}
	opts = append(opts,
		tools.WithRunner(tools.RunnerJS, tools.NewJSRunner()),
		tools.WithRunner(tools.RunnerPy, tools.NewPyRunner()),
	)
	engine := tools.NewEngine(registry, b, opts...)

	return &runtime{
		cfg:      cfg,
		bus:      b,
		fs:       fs,
		registry: registry,
		engine:   engine,
		events:   events,
		mcp:      mcp.NewManager(registry, cfg.MCP),
	}, nil
}

func (r *runtime) close() {
	if r.mcp != nil {
		r.mcp.Stop()
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			slog.Warn("close event store", "error", err)
		}
	}
}

// newAgent builds an agent from config defaults plus the chosen adapter.
func (r *runtime) newAgent(id string, provider providers.Provider) (*agent.Agent, error) {
	policy := tools.Policy{
		Profile: r.cfg.Tools.Profile,
		Allow:   r.cfg.Tools.Allow,
		Deny:    r.cfg.Tools.Deny,
	}
	return agent.New(agent.Config{
		ID:          id,
		Provider:    provider,
		Temperature: r.cfg.Agent.Temperature,
		MaxTokens:   r.cfg.Agent.MaxTokens,
		MaxSteps:    r.cfg.Agent.MaxSteps,
		Permissions: policy.Effective(),
	}, r.bus, r.engine)
}

// resolveAdapter picks a provider by name, falling back to the
// configured default.
func (r *runtime) resolveAdapter(name string) (providers.Provider, error) {
	if name == "" {
		name = r.cfg.Agent.Provider
	}
	switch name {
	case "mock":
		return providers.NewMockProvider(), nil
	case "openai":
		key := r.cfg.Providers.OpenAI.APIKey
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		var opts []providers.OpenAIOption
		if m := r.cfg.Providers.OpenAI.Model; m != "" {
			opts = append(opts, providers.WithOpenAIModel(m))
		}
		if u := r.cfg.Providers.OpenAI.APIBase; u != "" {
			opts = append(opts, providers.WithOpenAIBaseURL(u))
		}
		return providers.NewOpenAIProvider(key, opts...), nil
	case "anthropic":
		key := r.cfg.Providers.Anthropic.APIKey
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		var opts []providers.AnthropicOption
		if m := r.cfg.Providers.Anthropic.Model; m != "" {
			opts = append(opts, providers.WithAnthropicModel(m))
		}
		if u := r.cfg.Providers.Anthropic.APIBase; u != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(u))
		}
		return providers.NewAnthropicProvider(key, opts...), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
}
