package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/arium/arium/internal/bootstrap"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a workspace (arium.config.json, tests/golden/, docs/)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."

			if bootstrap.Exists(dir) && !force {
				confirmed := false
				prompt := huh.NewConfirm().
					Title("A workspace already exists here. Overwrite scaffolded files?").
					Value(&confirmed)
				if err := prompt.Run(); err != nil {
					return fmt.Errorf("prompt: %w", err)
				}
				if !confirmed {
					fmt.Println("init: left existing workspace untouched")
					return nil
				}
				force = true
			}

			created, err := bootstrap.Scaffold(dir, force)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Println("init: nothing to do, workspace already scaffolded")
				return nil
			}
			for _, f := range created {
				fmt.Printf("created %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing scaffolded files")
	return cmd
}
