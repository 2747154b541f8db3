package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.MaxSteps != 20 {
		t.Fatalf("expected default max_steps 20, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Bus.MaxHistorySize != 10000 {
		t.Fatalf("expected default history size, got %d", cfg.Bus.MaxHistorySize)
	}
}

func TestLoadJSON5Tolerant(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	body := `{
	// comments are fine
	agent: { provider: "anthropic", max_steps: 5, },
	tools: { allow: ["net", 123], },
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Provider != "anthropic" || cfg.Agent.MaxSteps != 5 {
		t.Fatalf("unexpected agent config %+v", cfg.Agent)
	}
	if len(cfg.Tools.Allow) != 2 || cfg.Tools.Allow[1] != "123" {
		t.Fatalf("expected flexible slice coercion, got %v", cfg.Tools.Allow)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WORKSPACE_PATH", "/tmp/ws")
	t.Setenv("PROJECT_ID", "proj-1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("PERSISTENT_STORAGE", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workspace.Path != "/tmp/ws" || cfg.Workspace.ProjectID != "proj-1" {
		t.Fatalf("unexpected workspace %+v", cfg.Workspace)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" || cfg.Providers.OpenAI.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected openai config %+v", cfg.Providers.OpenAI)
	}
	if cfg.Storage.Persistent {
		t.Fatalf("expected PERSISTENT_STORAGE=false to disable persistence")
	}
}
