// Package indexer implements the project indexer (C5): a one-shot
// runnable that drives one full or incremental sync pass for a
// single project — the paginated, timestamp-watermarked pull, the
// document-builder transformation, and (on full runs) the
// deletion-reconciliation sweep (spec.md §4.4).
package indexer

import (
	"context"
	"time"

	"github.com/riverdex/jira-river/internal/jira"
)

// Mode is the sync mode a run was requested with. A run may be
// promoted from Incremental to Full at READ_WATERMARK time when no
// watermark exists yet (spec.md §4.4).
type Mode string

const (
	ModeIncremental Mode = "INCREMENTAL"
	ModeFull        Mode = "FULL"
)

// livelockBump is the forced watermark advance spec.md §4.4's
// tie-break guard applies when a run makes progress but its final
// lastUpdated equals the watermark it started from — "preserved as
// >= 60s" per spec.md §9 Open Question 2; the source's 64s is kept.
const livelockBump = 64 * time.Second

// Result is the outcome of one Run, consumed by the coordinator's
// reportIndexingFinished (spec.md §4.1).
type Result struct {
	ProjectKey  string
	Mode        Mode // effective mode, after any INCREMENTAL->FULL promotion
	OK          bool
	Interrupted bool // clean cancellation exit: no error, no report (spec.md §5)
	Updated     int
	Deleted     int
	StartDate   time.Time
	Elapsed     time.Duration
	Err         error
}

// upstreamClient is the subset of *jira.Client the indexer calls,
// narrowed to an interface so tests can stub upstream behavior
// without an HTTP server when a fake page sequence is enough.
type upstreamClient interface {
	ChangedIssues(ctx context.Context, projectKey string, startAt int, updatedAfter *time.Time, maxResults int) (*jira.ChangedIssuesPage, error)
}
