package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riverdex/jira-river/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the coordinator loop until interrupted",
	Long: `start loads configuration, discovers projects, and drives the
scheduler loop (spec.md §4.1): on each tick it picks every project due
for an incremental or full update and dispatches it under the
configured parallelism budget. It runs until SIGINT/SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lockPath := cfg.Coordinator.LockPath
	if !filepath.IsAbs(lockPath) && rootDir != "" {
		lockPath = filepath.Join(rootDir, lockPath)
	}
	singleton := daemon.NewSingleton(lockPath)
	won, err := singleton.TryAcquire()
	if err != nil {
		return fmt.Errorf("coordinator lock: %w", err)
	}
	if !won {
		return fmt.Errorf("another coordinator already holds %s", lockPath)
	}
	defer singleton.Release()

	comps, err := build(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	coord := newCoordinator(comps)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("river: coordinator starting")
	if err := coord.Run(ctx); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	log.Println("river: coordinator stopped")
	return nil
}
