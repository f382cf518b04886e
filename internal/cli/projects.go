package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the project keys river would index",
	Long: `projects surfaces getAllIndexedProjectsKeys (spec.md §4.1/§6)
as a first-class operator command: the static project_keys_indexed
list when configured, otherwise a live discovery call against the
upstream tracker with project_keys_excluded removed (spec.md §4.2).`,
	RunE: runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	comps, err := build(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	keys, err := discoverProjects(ctx, comps)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}
