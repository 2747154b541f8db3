package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arium/arium/internal/providers"
	"github.com/arium/arium/internal/tracing"
	"github.com/arium/arium/pkg/protocol"
)

// goldenCase is one scripted agent run under tests/golden/.
type goldenCase struct {
	Name      string                   `json:"name"`
	Input     string                   `json:"input"`
	Responses []protocol.ModelResponse `json:"responses"`
	Expect    struct {
		Ok    bool              `json:"ok"`
		Data  string            `json:"data,omitempty"`
		Files map[string]string `json:"files,omitempty"`
	} `json:"expect"`
}

func runCmd() *cobra.Command {
	var caseName string
	var adapterName string

	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Run a golden case or a dev agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := tracing.Init(ctx)
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			rt.mcp.Start(ctx)

			if caseName != "" {
				return runGoldenCase(ctx, rt, caseName)
			}
			return runDev(ctx, rt, adapterName, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&caseName, "case", "", "golden case name under tests/golden/")
	cmd.Flags().StringVar(&adapterName, "adapter", "", "model adapter (mock, openai, anthropic)")
	return cmd
}

func runGoldenCase(ctx context.Context, rt *runtime, name string) error {
	path := filepath.Join("tests", "golden", name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden case: %w", err)
	}
	var gc goldenCase
	if err := json.Unmarshal(data, &gc); err != nil {
		return fmt.Errorf("parse golden case %s: %w", path, err)
	}

	provider := providers.NewMockProvider(gc.Responses...)
	a, err := rt.newAgent("golden:"+name, provider)
	if err != nil {
		return err
	}

	res, err := a.Run(ctx, gc.Input)
	if err != nil {
		return fmt.Errorf("golden case %s: %w", name, err)
	}

	var failures []string
	if res.Ok != gc.Expect.Ok {
		failures = append(failures, fmt.Sprintf("ok: got %v, want %v", res.Ok, gc.Expect.Ok))
	}
	if gc.Expect.Data != "" && res.Data != gc.Expect.Data {
		failures = append(failures, fmt.Sprintf("data: got %q, want %q", res.Data, gc.Expect.Data))
	}
	for p, want := range gc.Expect.Files {
		got, ok := rt.fs.Read(p)
		if !ok {
			failures = append(failures, fmt.Sprintf("file %s: missing", p))
			continue
		}
		if string(got) != want {
			failures = append(failures, fmt.Sprintf("file %s: got %q, want %q", p, got, want))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("golden case %s failed:\n  %s", name, strings.Join(failures, "\n  "))
	}
	fmt.Printf("golden case %s: ok\n", name)
	return nil
}

func runDev(ctx context.Context, rt *runtime, adapterName, input string) error {
	if input == "" {
		return fmt.Errorf("run: provide an input task, or --case <name>")
	}

	provider, err := rt.resolveAdapter(adapterName)
	if err != nil {
		return err
	}

	a, err := rt.newAgent("dev", provider)
	if err != nil {
		return err
	}

	res, err := a.Run(ctx, input)
	if err != nil {
		return err
	}
	if !res.Ok {
		return fmt.Errorf("agent stopped: %s", res.Message)
	}
	fmt.Println(res.Data)
	return nil
}
