// Package bootstrap scaffolds a new workspace directory: the config
// file, a golden-case directory with one example, and a docs directory.
package bootstrap

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arium/arium/internal/config"
)

//go:embed templates
var templateFS embed.FS

// scaffoldFiles maps workspace-relative destinations to embedded
// template sources.
var scaffoldFiles = map[string]string{
	config.DefaultFile:       "templates/arium.config.json",
	"tests/golden/echo.json": "templates/golden_echo.json",
	"docs/README.md":         "templates/docs_readme.md",
}

// Scaffold seeds a workspace at dir. Existing files are left alone
// unless force is set. Returns the list of files created or replaced.
func Scaffold(dir string, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bootstrap: create workspace: %w", err)
	}

	var created []string
	for dst, src := range scaffoldFiles {
		target := filepath.Join(dir, dst)
		if _, err := os.Stat(target); err == nil && !force {
			continue
		}
		content, err := templateFS.ReadFile(src)
		if err != nil {
			return created, fmt.Errorf("bootstrap: read template %s: %w", src, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return created, fmt.Errorf("bootstrap: create %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return created, fmt.Errorf("bootstrap: write %s: %w", dst, err)
		}
		created = append(created, dst)
	}
	return created, nil
}

// Exists reports whether dir already looks like a scaffolded workspace.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, config.DefaultFile))
	return err == nil
}
