package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each project's last-indexed watermark and recent activity",
	Long: `status has no channel to a running "river start" process (there
is no administrative RPC surface, by design — spec.md §1 Non-goals),
so it reports what's durable instead: each discovered project's
persisted watermark and its most recent activity-log entries.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	projects, err := discoverProjects(ctx, comps)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tLAST INDEXED\tRECENT RUNS")
	for _, key := range projects {
		watermarkTime, err := comps.store.ReadDatetimeValue(key, "lastIndexedIssueUpdateDate")
		if err != nil {
			return fmt.Errorf("read watermark for %s: %w", key, err)
		}
		last := "never"
		if watermarkTime != nil {
			last = watermarkTime.Format("2006-01-02T15:04:05Z07:00")
		}

		recent, err := comps.store.RecentActivity(key, 1)
		if err != nil {
			return fmt.Errorf("read activity log for %s: %w", key, err)
		}
		summary := "-"
		if len(recent) > 0 {
			r := recent[0]
			summary = fmt.Sprintf("%s %s (%d updated, %d deleted)", r.UpdateType, r.Result, r.IssuesUpdated, r.IssuesDeleted)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, last, summary)
	}
	return tw.Flush()
}
