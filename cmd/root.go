package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arium/arium/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/arium/arium/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arium",
	Short: "Arium — LLM agent runtime",
	Long:  "Arium: a host runtime for LLM-driven agents with a journalled event bus, a versioned virtual file system, and a permissioned tool engine.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: arium.config.json or $ARIUM_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(toolsListCmd())
	rootCmd.AddCommand(toolsDocsCmd())
	rootCmd.AddCommand(docsGenerateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("arium %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("ARIUM_CONFIG"); v != "" {
		return v
	}
	return "arium.config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
