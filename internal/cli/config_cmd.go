package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riverdex/jira-river/internal/config"
	"github.com/riverdex/jira-river/internal/watcher"
)

var configValidateWatch bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate river configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate .river/config.yml without starting the coordinator",
	Long: `validate runs the same fail-fast checks construction does
(spec.md §7 ConfigError) so CI and pre-deploy checks can catch a bad
configuration before "river start" ever tries to run with it.`,
	RunE: runConfigValidate,
}

func init() {
	configValidateCmd.Flags().BoolVar(&configValidateWatch, "watch", false, "keep re-validating whenever the config file changes")
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	fmt.Println("configuration is valid")

	if !configValidateWatch {
		return nil
	}

	path, err := config.ConfigFilePath(rootDir)
	if err != nil {
		return err
	}

	w, err := watcher.New(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", path)
	w.Start(ctx, func() {
		if _, err := loadConfig(); err != nil {
			fmt.Printf("%s changed: INVALID: %v\n", path, err)
			return
		}
		fmt.Printf("%s changed: valid\n", path)
	})

	<-ctx.Done()
	return nil
}
