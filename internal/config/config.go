// Package config loads jira-river's configuration.
//
// It supports one scope: deployment configuration read from
// .river/config.yml, with RIVER_-prefixed environment variable
// overrides. See loader.go for precedence and validate.go for the
// fail-fast checks run at construction time (spec.md §7 ConfigError).
package config

import "time"

// Config represents the complete jira-river configuration.
type Config struct {
	Jira        JiraConfig        `yaml:"jira" mapstructure:"jira"`
	Index       IndexConfig       `yaml:"index" mapstructure:"index"`
	ActivityLog ActivityLogConfig `yaml:"activity_log" mapstructure:"activity_log"`
	Watermark   WatermarkConfig   `yaml:"watermark" mapstructure:"watermark"`
	Coordinator CoordinatorConfig `yaml:"coordinator" mapstructure:"coordinator"`
}

// JiraConfig configures the upstream issue-tracker client (C2) and the
// coordinator's scheduling cadence (C6), which spec.md §6 groups under
// the same "jira.*" namespace.
type JiraConfig struct {
	URLBase                 string        `yaml:"url_base" mapstructure:"url_base"`
	Username                string        `yaml:"username" mapstructure:"username"`
	Password                string        `yaml:"pwd" mapstructure:"pwd"`
	JQLTimeZone             string        `yaml:"jql_time_zone" mapstructure:"jql_time_zone"`
	Timeout                 time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxIssuesPerRequest     int           `yaml:"max_issues_per_request" mapstructure:"max_issues_per_request"`
	ProjectKeysIndexed      []string      `yaml:"project_keys_indexed" mapstructure:"project_keys_indexed"`
	ProjectKeysExcluded     []string      `yaml:"project_keys_excluded" mapstructure:"project_keys_excluded"`
	IndexUpdatePeriod       time.Duration `yaml:"index_update_period" mapstructure:"index_update_period"`
	IndexFullUpdatePeriod   time.Duration `yaml:"index_full_update_period" mapstructure:"index_full_update_period"`
	MaxIndexingThreads      int           `yaml:"max_indexing_threads" mapstructure:"max_indexing_threads"`
	ProjectsRefreshInterval time.Duration `yaml:"projects_refresh_interval" mapstructure:"projects_refresh_interval"`
}

// IndexConfig configures the search-backend index and the document
// builder's field/filter/comment-mode configuration (C3/C4, spec.md §4.3).
type IndexConfig struct {
	Index string `yaml:"index" mapstructure:"index"`
	Type  string `yaml:"type" mapstructure:"type"`

	FieldRiverName  string `yaml:"field_river_name" mapstructure:"field_river_name"`
	FieldProjectKey string `yaml:"field_project_key" mapstructure:"field_project_key"`
	FieldIssueKey   string `yaml:"field_issue_key" mapstructure:"field_issue_key"`
	FieldIssueURL   string `yaml:"field_issue_url" mapstructure:"field_issue_url"`
	FieldComments   string `yaml:"field_comments" mapstructure:"field_comments"`

	Fields        map[string]FieldSpec  `yaml:"fields" mapstructure:"fields"`
	ValueFilters  map[string]FilterSpec `yaml:"value_filters" mapstructure:"value_filters"`
	CommentMode   string                `yaml:"comment_mode" mapstructure:"comment_mode"`
	CommentFields map[string]FieldSpec  `yaml:"comment_fields" mapstructure:"comment_fields"`
	Preprocessors []string              `yaml:"preprocessors" mapstructure:"preprocessors"`
}

// FieldSpec is one entry of the `fields` / `comment_fields` configuration maps.
type FieldSpec struct {
	JiraField   string `yaml:"jira_field" mapstructure:"jira_field"`
	ValueFilter string `yaml:"value_filter" mapstructure:"value_filter"`
}

// FilterSpec is one entry of the `value_filters` map: an
// upstreamKey -> outputKey rename table applied by a named filter.
type FilterSpec map[string]string

// ActivityLogConfig configures the optional activity-log sink (spec.md §3).
type ActivityLogConfig struct {
	Index string `yaml:"index" mapstructure:"index"`
	Type  string `yaml:"type" mapstructure:"type"`
}

// Enabled reports whether activity-log recording is turned on.
func (a ActivityLogConfig) Enabled() bool {
	return a.Index != "" && a.Type != ""
}

// WatermarkConfig configures the watermark store (C1).
type WatermarkConfig struct {
	// DBPath is the SQLite file backing watermark and activity-log
	// persistence — the "dedicated private index" of spec.md §6.
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// CoordinatorConfig configures the project-indexer coordinator (C6).
type CoordinatorConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	LockPath     string        `yaml:"lock_path" mapstructure:"lock_path"`
}

// Default returns a configuration with the defaults spec.md §6 names.
func Default() *Config {
	return &Config{
		Jira: JiraConfig{
			Timeout:                 5 * time.Second,
			MaxIssuesPerRequest:     50,
			IndexUpdatePeriod:       5 * time.Minute,
			IndexFullUpdatePeriod:   12 * time.Hour,
			MaxIndexingThreads:      1,
			ProjectsRefreshInterval: 30 * time.Minute,
		},
		Index: IndexConfig{
			Index:           "jira",
			Type:            "jira_issue",
			FieldRiverName:  "river",
			FieldProjectKey: "project_key",
			FieldIssueKey:   "issue_key",
			FieldIssueURL:   "document_url",
			FieldComments:   "comments",
			CommentMode:     "none",
			Fields:          defaultFields(),
			ValueFilters:    defaultValueFilters(),
		},
		Watermark: WatermarkConfig{
			DBPath: ".river/river.db",
		},
		Coordinator: CoordinatorConfig{
			TickInterval: 30 * time.Second,
			LockPath:     ".river/coordinator.lock",
		},
	}
}

// defaultFields mirrors the "Document layout (issue, default fields)" table in spec.md §6.
func defaultFields() map[string]FieldSpec {
	return map[string]FieldSpec{
		"issue_type":     {JiraField: "fields.issuetype.name"},
		"summary":        {JiraField: "fields.summary"},
		"status":         {JiraField: "fields.status.name"},
		"created":        {JiraField: "fields.created"},
		"updated":        {JiraField: "fields.updated"},
		"resolutiondate": {JiraField: "fields.resolutiondate"},
		"description":    {JiraField: "fields.description"},
		"labels":         {JiraField: "fields.labels"},
		"reporter":       {JiraField: "fields.reporter", ValueFilter: "user"},
		"assignee":       {JiraField: "fields.assignee", ValueFilter: "user"},
		"fix_versions":   {JiraField: "fields.fixVersions", ValueFilter: "version"},
		"components":     {JiraField: "fields.components", ValueFilter: "component"},
	}
}

func defaultValueFilters() map[string]FilterSpec {
	return map[string]FilterSpec{
		"user": {
			"name":         "name",
			"displayName":  "display_name",
			"emailAddress": "email",
		},
		"version": {
			"name": "name",
		},
		"component": {
			"name": "name",
		},
	}
}
