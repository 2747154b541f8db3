// Package config loads arium.config.json and overlays environment
// variables onto it. The config struct is guarded so a hot-reload can
// swap values while agents are running.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the Arium runtime.
type Config struct {
	Workspace WorkspaceConfig             `json:"workspace"`
	Agent     AgentDefaults               `json:"agent"`
	Bus       BusConfig                   `json:"bus"`
	Tools     ToolsConfig                 `json:"tools"`
	Providers ProvidersConfig             `json:"providers"`
	Storage   StorageConfig               `json:"storage,omitempty"`
	MCP       map[string]*MCPServerConfig `json:"mcp,omitempty"`

	mu sync.RWMutex
}

// WorkspaceConfig locates the agent's workspace on disk.
type WorkspaceConfig struct {
	Path      string `json:"path"`
	ProjectID string `json:"project_id,omitempty"`
}

// AgentDefaults are applied to agents created without explicit values.
type AgentDefaults struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model,omitempty"`
	MaxSteps    int     `json:"max_steps"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// BusConfig bounds the event bus history.
type BusConfig struct {
	MaxHistorySize  int    `json:"max_history_size,omitempty"`
	RetentionPolicy string `json:"retention_policy,omitempty"` // "truncate" | "circular"
}

// ToolsConfig configures the tool engine.
type ToolsConfig struct {
	TimeoutSec   int                 `json:"timeout_sec,omitempty"` // per-invocation runner timeout
	Profile      string              `json:"profile,omitempty"`     // permission profile name
	Allow        FlexibleStringSlice `json:"allow,omitempty"`
	Deny         FlexibleStringSlice `json:"deny,omitempty"`
	RateLimitRPM int                 `json:"rate_limit_rpm,omitempty"` // 0 = unlimited
}

// ProvidersConfig holds model-adapter credentials. API keys are never
// persisted to the config file; they come from env only.
type ProvidersConfig struct {
	OpenAI    OpenAIConfig    `json:"openai,omitempty"`
	Anthropic AnthropicConfig `json:"anthropic,omitempty"`
}

type OpenAIConfig struct {
	APIKey  string `json:"-"` // from env OPENAI_API_KEY only
	Model   string `json:"model,omitempty"`
	APIBase string `json:"api_base,omitempty"`
}

type AnthropicConfig struct {
	APIKey  string `json:"-"` // from env ANTHROPIC_API_KEY only
	Model   string `json:"model,omitempty"`
	APIBase string `json:"api_base,omitempty"`
}

// StorageConfig selects the persistence backing for the event journal
// (store.New). Persistent defaults to true; env PERSISTENT_STORAGE set
// to the string "false" disables it.
type StorageConfig struct {
	Persistent  bool   `json:"persistent"`
	Backend     string `json:"backend,omitempty"` // "sqlite" (default) | "postgres"
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"` // from env ARIUM_POSTGRES_DSN only
}

// MCPServerConfig describes one external MCP tool server to connect.
type MCPServerConfig struct {
	Transport  string            `json:"transport"`             // "stdio", "sse", "streamable-http"
	Command    string            `json:"command,omitempty"`     // stdio: command to spawn
	Args       []string          `json:"args,omitempty"`        // stdio: command arguments
	Env        map[string]string `json:"env,omitempty"`         // stdio: extra environment variables
	URL        string            `json:"url,omitempty"`         // sse/http: server URL
	Headers    map[string]string `json:"headers,omitempty"`     // sse/http: extra HTTP headers
	Enabled    *bool             `json:"enabled,omitempty"`     // default true
	ToolPrefix string            `json:"tool_prefix,omitempty"` // prefix for tool ids (avoids collisions)
	TimeoutSec int               `json:"timeout_sec,omitempty"` // per-tool-call timeout in seconds (default 60)
}

// IsEnabled returns whether this MCP server is enabled (default true).
func (c *MCPServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Snapshot returns a copy of the current config values, safe to read
// while a reload is in flight.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := Config{
		Workspace: c.Workspace,
		Agent:     c.Agent,
		Bus:       c.Bus,
		Tools:     c.Tools,
		Providers: c.Providers,
		Storage:   c.Storage,
	}
	if c.MCP != nil {
		out.MCP = make(map[string]*MCPServerConfig, len(c.MCP))
		for k, v := range c.MCP {
			cp := *v
			out.MCP[k] = &cp
		}
	}
	return out
}
