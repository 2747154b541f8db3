package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arium/arium/internal/tools"
)

func docsGenerateCmd() *cobra.Command {
	var outDir string
	var includeExamples bool

	cmd := &cobra.Command{
		Use:   "docs:generate",
		Short: "Generate workspace documentation from the tool registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			return writeToolDocs(rt, outDir, includeExamples)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "docs", "output directory")
	cmd.Flags().BoolVar(&includeExamples, "include-examples", false, "include invocation examples")
	return cmd
}

// writeToolDocs renders one TOOLS.md from the registered descriptors.
func writeToolDocs(rt *runtime, outDir string, includeExamples bool) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Tools\n\n")
	b.WriteString("Registered tools, generated by `arium docs:generate`.\n\n")

	for _, d := range rt.registry.List() {
		fmt.Fprintf(&b, "## %s\n\n", d.ID)
		if d.Description != "" {
			b.WriteString(d.Description + "\n\n")
		}
		fmt.Fprintf(&b, "- runner: `%s`\n", d.Runner)
		if len(d.Permissions) > 0 {
			fmt.Fprintf(&b, "- permissions: `%s`\n", strings.Join(d.Permissions, "`, `"))
		}
		if d.InputSchema != nil {
			schema, err := json.MarshalIndent(d.InputSchema, "", "  ")
			if err == nil {
				b.WriteString("\nInput schema:\n\n```json\n")
				b.Write(schema)
				b.WriteString("\n```\n")
			}
		}
		if includeExamples {
			b.WriteString("\nExample:\n\n```json\n")
			fmt.Fprintf(&b, "{\"type\": \"tool\", \"tool\": %q, \"arguments\": %s}\n", d.ID, exampleArgs(d))
			b.WriteString("```\n")
		}
		b.WriteString("\n")
	}

	path := filepath.Join(outDir, "TOOLS.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// exampleArgs synthesizes placeholder arguments from a descriptor's
// declared properties.
func exampleArgs(d tools.Descriptor) string {
	props, ok := d.InputSchema["properties"].(map[string]interface{})
	if !ok {
		return "{}"
	}
	example := make(map[string]interface{}, len(props))
	for name, raw := range props {
		p, _ := raw.(map[string]interface{})
		switch p["type"] {
		case "integer", "number":
			example[name] = 1
		case "boolean":
			example[name] = true
		default:
			example[name] = "..."
		}
	}
	out, err := json.Marshal(example)
	if err != nil {
		return "{}"
	}
	return string(out)
}
