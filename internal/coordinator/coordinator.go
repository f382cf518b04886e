package coordinator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/riverdex/jira-river/internal/indexer"
	"github.com/riverdex/jira-river/internal/watermark"
)

// Coordinator is the long-lived scheduler loop described in spec.md
// §4.1: it owns project discovery, per-project due-mode decisions,
// and a shared worker budget, and drives project indexer runs
// through a Runner until its context is canceled.
//
// Grounded on the teacher's internal/indexer/daemon.ProjectsRegistry
// (registry.go): a single mutex-protected map is simpler and
// sufficient here since, unlike the teacher's per-project daemons,
// only the coordinator goroutine itself ever schedules work — worker
// goroutines only report results back over a channel.
type Coordinator struct {
	lister ProjectLister
	runner Runner
	log    *watermark.Store // optional; nil disables the activity log

	opts Options

	mu          sync.Mutex
	order       []string
	projects    map[string]*projectState
	lastRefresh *time.Time
	lastIdx     int
	activeTotal int
	activeFull  int

	resultCh chan indexer.Result
	wg       sync.WaitGroup
}

// New builds a Coordinator. log may be nil to disable activity-log
// writes even when opts.ActivityLogEnabled is true.
func New(lister ProjectLister, runner Runner, activityLog *watermark.Store, opts Options) *Coordinator {
	if opts.MaxIndexingThreads <= 0 {
		opts.MaxIndexingThreads = 1
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 30 * time.Second
	}
	if opts.ProjectsRefreshInterval <= 0 {
		opts.ProjectsRefreshInterval = 15 * time.Minute
	}
	if opts.IndexUpdatePeriod <= 0 {
		opts.IndexUpdatePeriod = 5 * time.Minute
	}

	c := &Coordinator{
		lister:   lister,
		runner:   runner,
		log:      activityLog,
		opts:     opts,
		projects: make(map[string]*projectState),
		resultCh: make(chan indexer.Result, opts.MaxIndexingThreads),
		lastIdx:  -1,
	}
	return c
}

// Run blocks, driving the scheduler loop until ctx is canceled. It
// returns once every in-flight run has reported back (spec.md §5:
// cancellation lets in-flight work exit promptly rather than being
// abandoned mid-write).
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.refreshProjects(ctx); err != nil {
		log.Printf("coordinator: initial project discovery failed: %v", err)
	}

	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	c.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			c.drainResults()
			return nil
		case res := <-c.resultCh:
			c.handleResult(res)
		case <-ticker.C:
			if err := c.refreshProjects(ctx); err != nil {
				log.Printf("coordinator: project discovery failed: %v", err)
			}
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) drainResults() {
	for {
		select {
		case res := <-c.resultCh:
			c.handleResult(res)
		default:
			return
		}
	}
}

// tick evaluates every known project in round-robin order starting
// just past the last project dispatched, and dispatches as many due
// runs as the worker budget allows (spec.md §4.1 "fairness"): the walk
// follows discovery order, wrapping around from the index after the
// last dispatched project.
func (c *Coordinator) tick(ctx context.Context) {
	c.mu.Lock()
	keys := append([]string(nil), c.order...)
	n := len(keys)
	start := 0
	if n > 0 {
		start = (c.lastIdx + 1) % n
	}
	c.mu.Unlock()

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		key := keys[idx]
		c.tryDispatch(ctx, key, idx)
	}
}

func (c *Coordinator) tryDispatch(ctx context.Context, key string, idx int) {
	c.mu.Lock()
	state := c.projects[key]
	if state == nil || state.inFlightMode != nil {
		c.mu.Unlock()
		return
	}
	mode, due := c.dueModeLocked(state)
	if !due || !c.canDispatchLocked(mode) {
		c.mu.Unlock()
		return
	}

	c.activeTotal++
	if mode == ModeFull {
		c.activeFull++
	}
	state.inFlightMode = &mode
	c.lastIdx = idx
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resultCh <- c.runner.Run(ctx, key, mode)
	}()
}

// dueModeLocked decides whether key is due for a run and in which
// mode (spec.md §4.1): a force-full request or an expired
// indexFullUpdatePeriod wins over an expired indexUpdatePeriod.
func (c *Coordinator) dueModeLocked(state *projectState) (Mode, bool) {
	now := time.Now()
	if state.forceFullRequested {
		return ModeFull, true
	}
	if c.opts.IndexFullUpdatePeriod > 0 && (state.lastFullStart == nil || now.Sub(*state.lastFullStart) >= c.opts.IndexFullUpdatePeriod) {
		return ModeFull, true
	}
	if state.lastIncrementalStart == nil || now.Sub(*state.lastIncrementalStart) >= c.opts.IndexUpdatePeriod {
		return ModeIncremental, true
	}
	return "", false
}

// canDispatchLocked enforces the worker budget: at most
// maxIndexingThreads runs in flight, and when there is more than one
// thread, full runs may occupy at most maxIndexingThreads-1 of them
// so an incremental run always has a slot available (spec.md §4.1).
func (c *Coordinator) canDispatchLocked(mode Mode) bool {
	if c.activeTotal >= c.opts.MaxIndexingThreads {
		return false
	}
	if mode == ModeFull && c.opts.MaxIndexingThreads > 1 && c.activeFull+1 > c.opts.MaxIndexingThreads-1 {
		return false
	}
	return true
}

// handleResult implements reportIndexingFinished (spec.md §4.1): it
// frees the worker-budget slot and, for non-interrupted runs, always
// advances the relevant last*Start timestamp (so a failing project is
// retried on the normal cadence rather than hammered every tick) and
// clears forceFullRequested only after an OK full run.
func (c *Coordinator) handleResult(res indexer.Result) {
	c.mu.Lock()

	// activeFull must be released based on the mode that was actually
	// dispatched (and charged against the worker budget in
	// tryDispatch), not res.Mode: an indexer promotes a dispatched
	// INCREMENTAL run to FULL on its own (indexer.go, null watermark),
	// so res.Mode can differ from what occupied the reserved-slot
	// accounting (spec.md §4.1 / P5).
	state := c.projects[res.ProjectKey]
	dispatchedMode := res.Mode
	if state != nil && state.inFlightMode != nil {
		dispatchedMode = *state.inFlightMode
	}
	if dispatchedMode == ModeFull {
		c.activeFull--
	}
	c.activeTotal--

	if state != nil {
		state.inFlightMode = nil
		if !res.Interrupted {
			start := res.StartDate
			if res.Mode == ModeFull {
				state.lastFullStart = &start
				if res.OK {
					state.forceFullRequested = false
				}
			} else {
				state.lastIncrementalStart = &start
			}
		}
	}
	c.mu.Unlock()

	if res.Interrupted || !c.opts.ActivityLogEnabled || c.log == nil {
		return
	}

	rec := watermark.ActivityRecord{
		ProjectKey:    res.ProjectKey,
		UpdateType:    string(res.Mode),
		StartDate:     res.StartDate,
		TimeElapsed:   res.Elapsed,
		IssuesUpdated: res.Updated,
		IssuesDeleted: res.Deleted,
	}
	if res.OK {
		rec.Result = "OK"
	} else {
		rec.Result = "ERROR"
		if res.Err != nil {
			rec.ErrorMessage = res.Err.Error()
		}
	}
	if err := c.log.WriteActivityLog(rec); err != nil {
		log.Printf("coordinator: failed to write activity log for %s: %v", res.ProjectKey, err)
	}
}

// refreshProjects implements spec.md §4.2 project discovery: a
// static project_keys_indexed list is used verbatim and never
// refreshed; otherwise the upstream project list is re-pulled no more
// often than projectsRefreshInterval, minus excluded keys.
func (c *Coordinator) refreshProjects(ctx context.Context) error {
	if len(c.opts.StaticProjectKeys) > 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.order == nil {
			c.setOrderLocked(c.opts.StaticProjectKeys)
		}
		return nil
	}

	c.mu.Lock()
	stale := c.lastRefresh == nil || time.Since(*c.lastRefresh) >= c.opts.ProjectsRefreshInterval
	c.mu.Unlock()
	if !stale {
		return nil
	}

	keys, err := c.lister.ListProjectKeys(ctx)
	if err != nil {
		return err
	}
	keys = excludeKeys(keys, c.opts.ExcludedProjectKeys)

	c.mu.Lock()
	c.setOrderLocked(keys)
	now := time.Now()
	c.lastRefresh = &now
	c.mu.Unlock()
	return nil
}

// setOrderLocked installs a freshly discovered project list,
// preserving existing state for keys still present and dropping
// state for keys no longer returned by discovery. Must be called
// with c.mu held.
func (c *Coordinator) setOrderLocked(keys []string) {
	next := make(map[string]*projectState, len(keys))
	for _, key := range keys {
		if existing, ok := c.projects[key]; ok {
			next[key] = existing
		} else {
			next[key] = &projectState{}
		}
	}
	c.order = keys
	c.projects = next
}

func excludeKeys(keys, excluded []string) []string {
	if len(excluded) == 0 {
		return keys
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, k := range excluded {
		skip[k] = struct{}{}
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := skip[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// ForceFullReindex marks projectKey (or every known project, when
// projectKey is empty) for promotion to a full run on its next due
// check (spec.md §4.1 operational call; `river reindex` does not use
// it, it runs its own one-shot full pass). It returns the comma
// joined keys that were marked, or an error if projectKey is
// non-empty and unknown.
func (c *Coordinator) ForceFullReindex(projectKey string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if projectKey == "" {
		for _, state := range c.projects {
			state.forceFullRequested = true
		}
		return strings.Join(c.order, ","), nil
	}

	state, ok := c.projects[projectKey]
	if !ok {
		return "", fmt.Errorf("unknown project key %q", projectKey)
	}
	state.forceFullRequested = true
	return projectKey, nil
}

// ProjectKeys returns the currently discovered project keys, in
// discovery order. The `river status` and `river projects` commands
// do not read it; they resolve projects themselves.
func (c *Coordinator) ProjectKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// ProjectStatus is a point-in-time snapshot of one project's
// scheduling state inside a running Coordinator.
type ProjectStatus struct {
	ProjectKey            string
	LastIncrementalStart  *time.Time
	LastFullStart         *time.Time
	ForceFullRequested    bool
	InFlight              *Mode
}

// Status returns a snapshot of every known project's scheduling
// state.
func (c *Coordinator) Status() []ProjectStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ProjectStatus, 0, len(c.order))
	for _, key := range c.order {
		state := c.projects[key]
		out = append(out, ProjectStatus{
			ProjectKey:           key,
			LastIncrementalStart: state.lastIncrementalStart,
			LastFullStart:        state.lastFullStart,
			ForceFullRequested:   state.forceFullRequested,
			InFlight:             state.inFlightMode,
		})
	}
	return out
}
