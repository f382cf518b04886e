package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riverdex/jira-river/internal/indexer"
)

var reindexQuiet bool

var reindexCmd = &cobra.Command{
	Use:   "reindex [project]",
	Short: "Force a full reindex of one project, or every discovered project",
	Long: `reindex runs a one-shot full sync pass (spec.md §4.4 FULL mode,
including the deletion-reconciliation sweep) for the named project, or
for every project project discovery returns when no project is given
— the CLI-invoked equivalent of the coordinator's forceFullReindex
operational call (spec.md §4.1).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVarP(&reindexQuiet, "quiet", "q", false, "suppress progress output")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
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

	var projects []string
	if len(args) == 1 {
		projects = []string{args[0]}
	} else {
		projects, err = discoverProjects(ctx, comps)
		if err != nil {
			return err
		}
	}
	if len(projects) == 0 {
		fmt.Println("no projects to reindex")
		return nil
	}

	failed := false
	for _, key := range projects {
		if ctx.Err() != nil {
			break
		}
		progress := newReindexProgress(reindexQuiet)
		progress.start(key, indexer.ModeFull)
		res := comps.indexer.Run(ctx, key, indexer.ModeFull)
		progress.finish(res)
		if !res.OK && !res.Interrupted {
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("one or more projects failed to reindex")
	}
	return nil
}
