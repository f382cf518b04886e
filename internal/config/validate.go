package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingURLBase indicates the upstream base URL was not configured.
	ErrMissingURLBase = errors.New("jira.url_base is required")

	// ErrInvalidThreads indicates an invalid worker budget.
	ErrInvalidThreads = errors.New("jira.max_indexing_threads must be >= 1")

	// ErrBlankFieldName indicates a required provenance field name is blank.
	ErrBlankFieldName = errors.New("blank field name")

	// ErrMissingJiraField indicates a configured field lacks jira_field.
	ErrMissingJiraField = errors.New("field is missing jira_field")

	// ErrUndefinedFilter indicates a field references a value_filter that was never defined.
	ErrUndefinedFilter = errors.New("undefined value_filter")

	// ErrInvalidCommentMode indicates comment_mode is not one of the four recognized values.
	ErrInvalidCommentMode = errors.New("invalid comment_mode")

	// ErrMissingFieldComments indicates comment_mode=embedded without field_comments set.
	ErrMissingFieldComments = errors.New("field_comments is required when comment_mode is embedded")
)

var validCommentModes = map[string]bool{
	"none": true, "embedded": true, "child": true, "standalone": true,
}

// Validate checks that the configuration is valid and complete, per the
// ConfigError handling policy of spec.md §7: fail fast at construction,
// never start with an invalid configuration.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateJira(&cfg.Jira); err != nil {
		errs = append(errs, err)
	}
	if err := validateIndex(&cfg.Index); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateJira(cfg *JiraConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.URLBase) == "" {
		errs = append(errs, ErrMissingURLBase)
	}
	if cfg.MaxIndexingThreads < 1 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidThreads, cfg.MaxIndexingThreads))
	}
	if cfg.MaxIssuesPerRequest <= 0 {
		errs = append(errs, fmt.Errorf("jira.max_issues_per_request must be positive, got %d", cfg.MaxIssuesPerRequest))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateIndex(cfg *IndexConfig) error {
	var errs []error

	for name, label := range map[string]string{
		cfg.FieldRiverName:  "field_river_name",
		cfg.FieldProjectKey: "field_project_key",
		cfg.FieldIssueKey:   "field_issue_key",
		cfg.FieldIssueURL:   "field_issue_url",
	} {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrBlankFieldName, label))
		}
	}

	for outName, spec := range cfg.Fields {
		if strings.TrimSpace(spec.JiraField) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingJiraField, outName))
			continue
		}
		if spec.ValueFilter != "" {
			if _, ok := cfg.ValueFilters[spec.ValueFilter]; !ok {
				errs = append(errs, fmt.Errorf("%w: field %s references filter %q", ErrUndefinedFilter, outName, spec.ValueFilter))
			}
		}
	}

	for outName, spec := range cfg.CommentFields {
		if strings.TrimSpace(spec.JiraField) == "" {
			errs = append(errs, fmt.Errorf("%w: comment field %s", ErrMissingJiraField, outName))
			continue
		}
		if spec.ValueFilter != "" {
			if _, ok := cfg.ValueFilters[spec.ValueFilter]; !ok {
				errs = append(errs, fmt.Errorf("%w: comment field %s references filter %q", ErrUndefinedFilter, outName, spec.ValueFilter))
			}
		}
	}

	mode := cfg.CommentMode
	if mode == "" {
		mode = "none"
	}
	if !validCommentModes[mode] {
		errs = append(errs, fmt.Errorf("%w: %q (must be none, embedded, child, or standalone)", ErrInvalidCommentMode, mode))
	}
	if mode == "embedded" && strings.TrimSpace(cfg.FieldComments) == "" {
		errs = append(errs, ErrMissingFieldComments)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
