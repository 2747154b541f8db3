package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arium/arium/internal/config"
)

func TestScaffoldCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	created, err := Scaffold(dir, false)
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 files created, got %v", created)
	}
	for _, f := range []string{config.DefaultFile, "tests/golden/echo.json", "docs/README.md"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("expected %s to exist: %v", f, err)
		}
	}
	if !Exists(dir) {
		t.Fatalf("expected Exists to report scaffolded workspace")
	}
}

func TestScaffoldPreservesExistingWithoutForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFile)
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Scaffold(dir, false); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{}" {
		t.Fatalf("expected existing config preserved")
	}

	if _, err := Scaffold(dir, true); err != nil {
		t.Fatalf("scaffold force: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) == "{}" {
		t.Fatalf("expected force to overwrite config")
	}
}

func TestScaffoldedConfigLoads(t *testing.T) {
	dir := t.TempDir()
	if _, err := Scaffold(dir, false); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	cfg, err := config.Load(filepath.Join(dir, config.DefaultFile))
	if err != nil {
		t.Fatalf("load scaffolded config: %v", err)
	}
	if cfg.Agent.MaxSteps != 20 {
		t.Fatalf("unexpected scaffolded max_steps %d", cfg.Agent.MaxSteps)
	}
}
