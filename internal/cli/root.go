package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/riverdex/jira-river/internal/config"
)

var (
	rootDir string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "river",
	Short: "river mirrors JIRA issues into a full-text search index",
	Long: `river is the coordinator and operator CLI for jira-river: a
service that pulls issues changed in an upstream JIRA-shaped tracker
and keeps a search backend in sync with them.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root containing .river/config.yml (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
}

// loadConfig resolves --root and loads+validates configuration
// through internal/config, the way every subcommand that touches the
// index needs to (spec.md §7 "fail fast").
func loadConfig() (*config.Config, error) {
	if rootDir != "" {
		return config.LoadConfigFromDir(rootDir)
	}
	return config.LoadConfig()
}
