// Package coordinator implements the project-indexer coordinator
// (C6): a long-lived scheduler loop that discovers projects, decides
// when each is due for an incremental or full update, and dispatches
// per-project indexer runs under a bounded, fairness-aware
// parallelism budget (spec.md §4.1, §4.2, §5).
//
// Grounded on the teacher's internal/indexer/daemon package
// (mvp-joe/project-cortex): a mutex-protected in-memory state map
// keyed by project (registry.go's projectsRegistry pattern), and a
// message-passing worker dispatch (actor.go's per-actor goroutine +
// channel reporting), generalized here into one shared worker
// budget across many projects instead of one actor per project.
package coordinator

import (
	"context"
	"time"

	"github.com/riverdex/jira-river/internal/indexer"
)

// Mode re-exports indexer.Mode so callers of this package don't need
// to import internal/indexer just to name a mode.
type Mode = indexer.Mode

const (
	ModeIncremental = indexer.ModeIncremental
	ModeFull        = indexer.ModeFull
)

// ProjectLister discovers the set of indexable project keys
// (spec.md §4.2), satisfied by *jira.Client.ListProjectKeys.
type ProjectLister interface {
	ListProjectKeys(ctx context.Context) ([]string, error)
}

// Runner executes one project indexer pass, satisfied by
// *indexer.Indexer.Run.
type Runner interface {
	Run(ctx context.Context, projectKey string, mode Mode) indexer.Result
}

// projectState is the coordinator's in-memory per-project state
// (spec.md §3 "Coordinator state"), protected by Coordinator.mu.
type projectState struct {
	lastIncrementalStart *time.Time
	lastFullStart         *time.Time
	forceFullRequested    bool
	inFlightMode          *Mode
}

// Options configures a Coordinator (spec.md §6 jira.* and
// coordinator.* configuration keys).
type Options struct {
	TickInterval            time.Duration
	ProjectsRefreshInterval time.Duration
	IndexUpdatePeriod       time.Duration
	IndexFullUpdatePeriod   time.Duration // 0 disables full updates
	MaxIndexingThreads      int
	StaticProjectKeys       []string // jira.project_keys_indexed, if set, used verbatim
	ExcludedProjectKeys     []string
	ActivityLogEnabled      bool
}
