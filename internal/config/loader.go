package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (RIVER_*)
// 2. Config file (.river/config.yml or .river/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".river")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("RIVER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables to config keys named in spec.md §6.
	v.BindEnv("jira.url_base")
	v.BindEnv("jira.username")
	v.BindEnv("jira.pwd")
	v.BindEnv("jira.jql_time_zone")
	v.BindEnv("jira.timeout")
	v.BindEnv("jira.max_issues_per_request")
	v.BindEnv("jira.project_keys_indexed")
	v.BindEnv("jira.project_keys_excluded")
	v.BindEnv("jira.index_update_period")
	v.BindEnv("jira.index_full_update_period")
	v.BindEnv("jira.max_indexing_threads")
	v.BindEnv("jira.projects_refresh_interval")

	v.BindEnv("index.index")
	v.BindEnv("index.type")
	v.BindEnv("index.comment_mode")

	v.BindEnv("activity_log.index")
	v.BindEnv("activity_log.type")

	v.BindEnv("watermark.db_path")
	v.BindEnv("coordinator.tick_interval")
	v.BindEnv("coordinator.lock_path")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("jira.timeout", d.Jira.Timeout)
	v.SetDefault("jira.max_issues_per_request", d.Jira.MaxIssuesPerRequest)
	v.SetDefault("jira.index_update_period", d.Jira.IndexUpdatePeriod)
	v.SetDefault("jira.index_full_update_period", d.Jira.IndexFullUpdatePeriod)
	v.SetDefault("jira.max_indexing_threads", d.Jira.MaxIndexingThreads)
	v.SetDefault("jira.projects_refresh_interval", d.Jira.ProjectsRefreshInterval)

	v.SetDefault("index.index", d.Index.Index)
	v.SetDefault("index.type", d.Index.Type)
	v.SetDefault("index.field_river_name", d.Index.FieldRiverName)
	v.SetDefault("index.field_project_key", d.Index.FieldProjectKey)
	v.SetDefault("index.field_issue_key", d.Index.FieldIssueKey)
	v.SetDefault("index.field_issue_url", d.Index.FieldIssueURL)
	v.SetDefault("index.field_comments", d.Index.FieldComments)
	v.SetDefault("index.comment_mode", d.Index.CommentMode)
	v.SetDefault("index.fields", toStringMap(d.Index.Fields))
	v.SetDefault("index.value_filters", toFilterMap(d.Index.ValueFilters))

	v.SetDefault("watermark.db_path", d.Watermark.DBPath)
	v.SetDefault("coordinator.tick_interval", d.Coordinator.TickInterval)
	v.SetDefault("coordinator.lock_path", d.Coordinator.LockPath)
}

// toStringMap/toFilterMap adapt our typed defaults to the shape viper's
// mapstructure decoder expects when merging them with a YAML-sourced map.
func toStringMap(fields map[string]FieldSpec) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = map[string]interface{}{
			"jira_field":   v.JiraField,
			"value_filter": v.ValueFilter,
		}
	}
	return out
}

func toFilterMap(filters map[string]FilterSpec) map[string]interface{} {
	out := make(map[string]interface{}, len(filters))
	for k, v := range filters {
		m := make(map[string]interface{}, len(v))
		for rk, rv := range v {
			m[rk] = rv
		}
		out[k] = m
	}
	return out
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}

// ConfigFilePath resolves the .river/config.yml path Load() would
// read from rootDir (or the current working directory, when
// rootDir is empty), for callers that need the path itself rather
// than its parsed contents (e.g. `river config validate --watch`).
func ConfigFilePath(rootDir string) (string, error) {
	if rootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		rootDir = wd
	}
	return filepath.Join(rootDir, ".river", "config.yml"), nil
}
