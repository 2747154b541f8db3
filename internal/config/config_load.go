package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// DefaultFile is the config file name scaffolded by `arium init`.
const DefaultFile = "arium.config.json"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Path: "./workspace",
		},
		Agent: AgentDefaults{
			Provider:    "openai",
			MaxSteps:    20,
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		Bus: BusConfig{
			MaxHistorySize:  10000,
			RetentionPolicy: "truncate",
		},
		Tools: ToolsConfig{
			TimeoutSec: 30,
			Profile:    "coding",
		},
		Storage: StorageConfig{
			Persistent: true,
			Backend:    "sqlite",
		},
	}
}

// Load reads config from a JSON5-tolerant file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("WORKSPACE_PATH", &c.Workspace.Path)
	envStr("PROJECT_ID", &c.Workspace.ProjectID)
	envStr("OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("OPENAI_MODEL", &c.Providers.OpenAI.Model)
	envStr("ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("ARIUM_POSTGRES_DSN", &c.Storage.PostgresDSN)

	if os.Getenv("PERSISTENT_STORAGE") == "false" {
		c.Storage.Persistent = false
	}
}
