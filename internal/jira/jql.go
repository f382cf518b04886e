package jira

import (
	"fmt"
	"time"
)

// BuildJQL constructs the JQL fragment of spec.md §4.4:
//
//	project = <key> AND updated >= "<updatedAfter, minute-truncated, in jqlTimeZone>" ORDER BY updated ASC
//
// When updatedAfter is nil (first run / no watermark), the lower
// bound is omitted entirely.
func BuildJQL(projectKey string, updatedAfter *time.Time, loc *time.Location) string {
	if updatedAfter == nil {
		return fmt.Sprintf("project = %s ORDER BY updated ASC", projectKey)
	}

	truncated := updatedAfter.In(loc).Truncate(time.Minute)
	return fmt.Sprintf(
		`project = %s AND updated >= "%s" ORDER BY updated ASC`,
		projectKey, truncated.Format("2006-01-02 15:04"),
	)
}
