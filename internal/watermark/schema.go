package watermark

import (
	"database/sql"
	"fmt"
)

// createSchema creates the watermark and activity-log tables if they
// do not already exist. Mirrors the teacher's migration-on-open
// idiom (internal/storage/schema.go): a single idempotent DDL pass
// run once when the store is opened, no separate migration runner.
func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS river_watermarks (
			doc_id       TEXT PRIMARY KEY,
			project_key  TEXT NOT NULL,
			property_name TEXT NOT NULL,
			value        TEXT NOT NULL,
			UNIQUE(project_key, property_name)
		)`,
		`CREATE TABLE IF NOT EXISTS river_activity_log (
			id             TEXT PRIMARY KEY,
			project_key    TEXT NOT NULL,
			update_type    TEXT NOT NULL,
			result         TEXT NOT NULL,
			start_date     TEXT NOT NULL,
			time_elapsed_ms INTEGER NOT NULL,
			issues_updated INTEGER NOT NULL,
			issues_deleted INTEGER NOT NULL,
			error_message  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS river_activity_log_project_idx ON river_activity_log(project_key, start_date)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply watermark schema: %w", err)
		}
	}
	return nil
}

// docID computes the "_<propertyName>_<projectKey>" id formula of
// spec.md §4.7 / §6, kept even though the underlying table is keyed
// by (project_key, property_name) so the id surfaces in logs exactly
// as the spec names it.
func docID(projectKey, propertyName string) string {
	return "_" + propertyName + "_" + projectKey
}
