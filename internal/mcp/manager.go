// Package mcp connects to external MCP servers and surfaces their tools
// through the tool engine's registry, so the model can call them like
// any compiled-in tool. Connections are health-checked and reconnected
// with exponential backoff.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/arium/arium/internal/config"
	"github.com/arium/arium/internal/tools"
	"github.com/arium/arium/pkg/protocol"
)

const (
	healthCheckInterval  = 30 * time.Second
	initialBackoff       = 2 * time.Second
	maxBackoff           = 60 * time.Second
	maxReconnectAttempts = 10
)

// ServerStatus reports the connection status of an MCP server.
type ServerStatus struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"tool_count"`
	Error     string `json:"error,omitempty"`
}

// serverState tracks a single MCP server connection.
type serverState struct {
	name       string
	transport  string
	client     *mcpclient.Client
	connected  atomic.Bool
	toolIDs    []string
	timeoutSec int
	cancel     context.CancelFunc

	mu             sync.Mutex
	reconnAttempts int
	lastErr        string
}

// Manager orchestrates MCP server connections and tool registration.
type Manager struct {
	mu       sync.RWMutex
	servers  map[string]*serverState
	registry *tools.Registry
	configs  map[string]*config.MCPServerConfig
}

// NewManager creates a Manager that registers discovered tools into
// registry.
func NewManager(registry *tools.Registry, configs map[string]*config.MCPServerConfig) *Manager {
	return &Manager{
		servers:  make(map[string]*serverState),
		registry: registry,
		configs:  configs,
	}
}

// Start connects every enabled configured server, in parallel since
// handshakes to slow servers shouldn't serialize startup. Individual
// failures are logged, not fatal: one unreachable server must not take
// down the runtime.
func (m *Manager) Start(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for name, cfg := range m.configs {
		if cfg == nil || !cfg.IsEnabled() {
			continue
		}
		name, cfg := name, cfg
		g.Go(func() error {
			if err := m.connectServer(ctx, name, cfg); err != nil {
				slog.Warn("mcp: server connect failed", "server", name, "error", err)
				m.mu.Lock()
				m.servers[name] = &serverState{name: name, transport: cfg.Transport, lastErr: err.Error()}
				m.mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Stop closes every connection and unregisters the proxied tools.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, ss := range m.servers {
		if ss.cancel != nil {
			ss.cancel()
		}
		if ss.client != nil {
			_ = ss.client.Close()
		}
		for _, id := range ss.toolIDs {
			m.registry.Unregister(id)
		}
		slog.Debug("mcp: server unregistered", "server", name, "tools", len(ss.toolIDs))
	}
	m.servers = make(map[string]*serverState)
}

// Status reports per-server connection state.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ServerStatus, 0, len(m.servers))
	for _, ss := range m.servers {
		ss.mu.Lock()
		lastErr := ss.lastErr
		ss.mu.Unlock()
		out = append(out, ServerStatus{
			Name:      ss.name,
			Transport: ss.transport,
			Connected: ss.connected.Load(),
			ToolCount: len(ss.toolIDs),
			Error:     lastErr,
		})
	}
	return out
}

// connectServer creates a client, runs the MCP handshake, discovers
// tools, and registers proxies for them.
func (m *Manager) connectServer(ctx context.Context, name string, cfg *config.MCPServerConfig) error {
	client, err := createClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	// SSE/streamable-http need explicit Start; stdio auto-starts.
	if cfg.Transport != "stdio" {
		if err := client.Start(ctx); err != nil {
			_ = client.Close()
			return fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "arium", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listed, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 60
	}

	ss := &serverState{
		name:       name,
		transport:  cfg.Transport,
		client:     client,
		timeoutSec: timeoutSec,
	}
	ss.connected.Store(true)

	for _, tool := range listed.Tools {
		id := proxyToolID(name, cfg.ToolPrefix, tool.Name)
		if _, exists := m.registry.Get(id); exists {
			slog.Warn("mcp: tool id collision, skipped", "server", name, "tool", id)
			continue
		}
		m.registry.Register(m.proxyRegistration(ss, id, tool))
		ss.toolIDs = append(ss.toolIDs, id)
	}

	hctx, hcancel := context.WithCancel(context.Background())
	ss.cancel = hcancel
	go m.healthLoop(hctx, ss, cfg)

	m.mu.Lock()
	m.servers[name] = ss
	m.mu.Unlock()

	slog.Info("mcp: server connected", "server", name, "transport", cfg.Transport, "tools", len(ss.toolIDs))
	return nil
}

func proxyToolID(server, prefix, toolName string) string {
	if prefix != "" {
		return prefix + toolName
	}
	return "mcp." + server + "." + toolName
}

// proxyRegistration wraps one remote tool as a builtin-runner
// registration whose callable forwards to the MCP client.
func (m *Manager) proxyRegistration(ss *serverState, id string, tool mcpgo.Tool) tools.Registration {
	return tools.Registration{
		Descriptor: tools.Descriptor{
			ID:          id,
			Name:        tool.Name,
			Description: tool.Description,
			Runner:      tools.RunnerBuiltin,
			InputSchema: schemaToMap(tool.InputSchema),
			Permissions: []string{"net", "mcp:" + ss.name},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			if !ss.connected.Load() {
				return protocol.ErrResult(protocol.ErrRunnerFailure,
					fmt.Sprintf("mcp server %q is disconnected", ss.name))
			}
			callCtx, cancel := context.WithTimeout(ctx, time.Duration(ss.timeoutSec)*time.Second)
			defer cancel()

			req := mcpgo.CallToolRequest{}
			req.Params.Name = tool.Name
			req.Params.Arguments = args
			res, err := ss.client.CallTool(callCtx, req)
			if err != nil {
				if callCtx.Err() != nil {
					return protocol.ErrResult(protocol.ErrTimeout,
						fmt.Sprintf("mcp tool %q timed out", tool.Name))
				}
				return protocol.ErrResult(protocol.ErrRunnerFailure, err.Error())
			}

			text := flattenContent(res.Content)
			if res.IsError {
				return protocol.ErrResult(protocol.ErrRunnerFailure, text)
			}
			return protocol.OkResult(text)
		},
	}
}

// schemaToMap converts the typed MCP input schema into the map shape
// the registry carries.
func schemaToMap(s mcpgo.ToolInputSchema) map[string]interface{} {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func flattenContent(blocks []mcpgo.Content) string {
	var parts []string
	for _, c := range blocks {
		if tc, ok := mcpgo.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// createClient creates the appropriate MCP client for the transport.
func createClient(cfg *config.MCPServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "stdio":
		return mcpclient.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)

	case "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)

	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %q", cfg.Transport)
	}
}

// healthLoop periodically pings the server and reconnects on failure.
func (m *Manager) healthLoop(ctx context.Context, ss *serverState, cfg *config.MCPServerConfig) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := ss.client.Ping(ctx)
			if err == nil {
				ss.connected.Store(true)
				ss.mu.Lock()
				ss.reconnAttempts = 0
				ss.mu.Unlock()
				continue
			}
			// Servers that don't implement "ping" are still alive.
			if strings.Contains(strings.ToLower(err.Error()), "method not found") {
				ss.connected.Store(true)
				continue
			}

			ss.connected.Store(false)
			ss.mu.Lock()
			ss.lastErr = err.Error()
			attempts := ss.reconnAttempts
			ss.mu.Unlock()

			if attempts >= maxReconnectAttempts {
				slog.Error("mcp: giving up on server", "server", ss.name, "attempts", attempts)
				return
			}

			backoff := initialBackoff << attempts
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			slog.Warn("mcp: ping failed, reconnecting", "server", ss.name, "attempt", attempts+1, "backoff", backoff)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			ss.mu.Lock()
			ss.reconnAttempts++
			ss.mu.Unlock()

			if m.reconnect(ctx, ss, cfg) {
				// The fresh connection runs its own health loop.
				return
			}
		}
	}
}

func (m *Manager) reconnect(ctx context.Context, ss *serverState, cfg *config.MCPServerConfig) bool {
	m.mu.Lock()
	for _, id := range ss.toolIDs {
		m.registry.Unregister(id)
	}
	delete(m.servers, ss.name)
	m.mu.Unlock()

	_ = ss.client.Close()
	if err := m.connectServer(ctx, ss.name, cfg); err != nil {
		slog.Warn("mcp: reconnect failed", "server", ss.name, "error", err)
		m.mu.Lock()
		m.servers[ss.name] = ss
		m.mu.Unlock()
		return false
	}
	return true
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	s := make([]string, 0, len(env))
	for k, v := range env {
		s = append(s, k+"="+v)
	}
	return s
}
