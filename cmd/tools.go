package cmd

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func toolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools:list",
		Short: "Enumerate registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			descs := rt.registry.List()
			if len(descs) == 0 {
				fmt.Println("no tools registered")
				return nil
			}

			idW, nameW := len("ID"), len("NAME")
			for _, d := range descs {
				if w := runewidth.StringWidth(d.ID); w > idW {
					idW = w
				}
				if w := runewidth.StringWidth(d.Name); w > nameW {
					nameW = w
				}
			}

			fmt.Printf("%s  %s  %s  %s\n",
				runewidth.FillRight("ID", idW),
				runewidth.FillRight("NAME", nameW),
				runewidth.FillRight("RUNNER", 7),
				"PERMISSIONS")
			for _, d := range descs {
				fmt.Printf("%s  %s  %s  %s\n",
					runewidth.FillRight(d.ID, idW),
					runewidth.FillRight(d.Name, nameW),
					runewidth.FillRight(string(d.Runner), 7),
					strings.Join(d.Permissions, ","))
			}
			return nil
		},
	}
}

func toolsDocsCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "tools:docs",
		Short: "Generate markdown documentation for registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			return writeToolDocs(rt, outDir, false)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "docs", "output directory")
	return cmd
}
