package indexer

import (
	"context"
	"log"
	"time"

	"github.com/riverdex/jira-river/internal/backend"
	"github.com/riverdex/jira-river/internal/docbuilder"
	"github.com/riverdex/jira-river/internal/riverrors"
	"github.com/riverdex/jira-river/internal/watermark"
)

// watermarkProperty is the single property name the indexer persists
// per project (spec.md §4.4): "lastIndexedIssueUpdateDate".
const watermarkProperty = "lastIndexedIssueUpdateDate"

// Indexer drives one full or incremental sync pass for a single
// project. One Indexer instance is safe to reuse sequentially across
// many Run calls — nothing on it is project-specific state.
type Indexer struct {
	client         upstreamClient
	builder        *docbuilder.Builder
	backend        *backend.Adapter
	watermarks     *watermark.Store
	issueType      string
	commentType    string
	maxResults     int
	deletePageSize int
}

// New builds a project indexer. maxResults bounds each upstream page
// (jira.maxIssuesPerRequest); deletePageSize bounds each scroll page
// of the full-run deletion pass.
func New(client upstreamClient, b *docbuilder.Builder, be *backend.Adapter, wm *watermark.Store, issueType, commentType string, maxResults, deletePageSize int) *Indexer {
	if maxResults <= 0 {
		maxResults = 50
	}
	if deletePageSize <= 0 {
		deletePageSize = 200
	}
	return &Indexer{
		client:         client,
		builder:        b,
		backend:        be,
		watermarks:     wm,
		issueType:      issueType,
		commentType:    commentType,
		maxResults:     maxResults,
		deletePageSize: deletePageSize,
	}
}

// Run executes one full state-machine pass for projectKey in the
// requested mode (spec.md §4.4): INIT -> READ_WATERMARK -> PULL_LOOP
// -> (FULL?) DELETE_PASS -> REPORT.
func (ix *Indexer) Run(ctx context.Context, projectKey string, requested Mode) Result {
	start := time.Now().UTC()

	initialWatermark, err := ix.watermarks.ReadDatetimeValue(projectKey, watermarkProperty)
	if err != nil {
		return errResult(projectKey, requested, start, err)
	}

	mode := requested
	if initialWatermark == nil {
		// "If watermark == null, the run is promoted to FULL regardless
		// of the mode requested by the coordinator" (spec.md §4.4).
		mode = ModeFull
	}

	loopRes, err := ix.pullLoop(ctx, projectKey, initialWatermark)
	if loopRes.interrupted {
		return Result{ProjectKey: projectKey, Mode: mode, Interrupted: true, StartDate: start, Elapsed: time.Since(start)}
	}
	if err != nil {
		return errResult(projectKey, mode, start, err)
	}

	deleted := 0
	if mode == ModeFull {
		if err := ix.backend.Refresh(); err != nil {
			return errResult(projectKey, mode, start, riverrors.New(riverrors.KindBackendFailure, err))
		}
		d, interrupted, err := ix.deletePass(ctx, projectKey, start)
		if interrupted {
			return Result{ProjectKey: projectKey, Mode: mode, Interrupted: true, StartDate: start, Elapsed: time.Since(start)}
		}
		if err != nil {
			return errResult(projectKey, mode, start, err)
		}
		deleted = d
	}

	if loopRes.updatedCount > 0 && initialWatermark != nil && !loopRes.rollingLast.IsZero() && loopRes.rollingLast.Equal(*initialWatermark) {
		// Livelock guard (spec.md §4.4): progress was made but the
		// watermark never advanced past where the run started. Bump
		// it forward so the same minute isn't re-fetched forever.
		bumped := loopRes.rollingLast.Add(livelockBump)
		if err := ix.watermarks.StoreDatetimeValue(projectKey, watermarkProperty, bumped, nil); err != nil {
			return errResult(projectKey, mode, start, riverrors.New(riverrors.KindBackendFailure, err))
		}
	}

	return Result{
		ProjectKey: projectKey,
		Mode:       mode,
		OK:         true,
		Updated:    loopRes.updatedCount,
		Deleted:    deleted,
		StartDate:  start,
		Elapsed:    time.Since(start),
	}
}

// pullLoopResult accumulates PULL_LOOP bookkeeping (spec.md §4.4).
type pullLoopResult struct {
	updatedCount int
	rollingLast  time.Time
	interrupted  bool
}

// pullLoop implements spec.md §4.4 PULL_LOOP, including the
// same-minute/different-minute pagination decision (step 6).
//
// "anchor" is the updated timestamp of the first issue seen since the
// watermark last advanced; "rollingLast" is the updated timestamp of
// the most recently processed issue across the whole run (pages
// arrive in ascending updated order, so it only moves forward). As
// long as rollingLast shares anchor's minute, the run is inside a
// cluster of issues sharing one minute and must page with startAt
// rather than re-anchor the watermark (spec.md §4.4 step 6 "same
// minute"); once rollingLast crosses into a new minute, the
// watermark can safely jump to rollingLast and anchor resets for the
// next cluster.
func (ix *Indexer) pullLoop(ctx context.Context, projectKey string, initialWatermark *time.Time) (pullLoopResult, error) {
	var res pullLoopResult
	updatedAfter := initialWatermark
	startAt := 0
	var anchor time.Time

	for {
		if ctx.Err() != nil {
			res.interrupted = true
			return res, nil
		}

		page, err := ix.client.ChangedIssues(ctx, projectKey, startAt, updatedAfter, ix.maxResults)
		if err != nil {
			if riverrors.Is(err, riverrors.KindCancellation) {
				res.interrupted = true
				return res, nil
			}
			return res, err
		}
		if len(page.Issues) == 0 {
			break
		}

		ops, pageFirst, pageLast, interrupted, err := ix.buildPage(ctx, projectKey, page.Issues)
		if interrupted {
			res.interrupted = true
			return res, nil
		}
		if err != nil {
			return res, err
		}

		if err := ix.backend.Bulk(ops, nil); err != nil {
			return res, riverrors.New(riverrors.KindBackendFailure, err)
		}

		res.updatedCount += len(page.Issues)
		if anchor.IsZero() {
			anchor = pageFirst
		}
		res.rollingLast = pageLast
		startAtBeforeFetch := startAt

		advanced := false
		if !anchor.Truncate(time.Minute).Equal(pageLast.Truncate(time.Minute)) {
			truncated := pageLast.Truncate(time.Minute)
			updatedAfter = &truncated
			startAt = 0
			anchor = time.Time{}
			advanced = true
		} else {
			startAt += len(page.Issues)
		}

		if advanced {
			if err := ix.watermarks.StoreDatetimeValue(projectKey, watermarkProperty, *updatedAfter, nil); err != nil {
				return res, riverrors.New(riverrors.KindBackendFailure, err)
			}
		}

		if page.Total <= startAtBeforeFetch+len(page.Issues) {
			break
		}
	}

	return res, nil
}

// buildPage transforms one upstream page into bulk index operations,
// checking for cancellation between issues (spec.md §5 "between
// issues within a page").
func (ix *Indexer) buildPage(ctx context.Context, projectKey string, issues []map[string]interface{}) ([]backend.IndexOp, time.Time, time.Time, bool, error) {
	var ops []backend.IndexOp
	var first, last time.Time

	for i, issue := range issues {
		if ctx.Err() != nil {
			return nil, first, last, true, nil
		}

		result, err := ix.builder.BuildIssue(projectKey, issue)
		if err != nil {
			return nil, first, last, false, err
		}

		ops = append(ops, backend.IndexOp{DocType: ix.issueType, ID: result.IssueDocID, Doc: result.IssueDoc})
		for j, cdoc := range result.CommentDocs {
			ops = append(ops, backend.IndexOp{DocType: ix.commentType, ID: result.CommentIDs[j], Doc: cdoc})
		}

		if i == 0 {
			first = result.Updated
		}
		last = result.Updated
	}
	return ops, first, last, false, nil
}

// deletePass implements spec.md §4.4 DELETE_PASS: a scrollable
// search for documents not re-ingested since the run started,
// streamed through bulk delete.
func (ix *Indexer) deletePass(ctx context.Context, projectKey string, runStart time.Time) (int, bool, error) {
	spec := ix.builder.BuildDeletionQuery(projectKey, runStart)
	scroller := ix.backend.NewDeletionScroller(spec, ix.deletePageSize)

	deleted := 0
	for {
		if ctx.Err() != nil {
			return deleted, true, nil
		}

		ids, err := scroller.Next()
		if err != nil {
			return deleted, false, riverrors.New(riverrors.KindBackendFailure, err)
		}
		if len(ids) == 0 {
			break
		}

		ops := make([]backend.DeleteOp, len(ids))
		for i, id := range ids {
			ops[i] = backend.DeleteOp{ID: id}
		}
		if err := ix.backend.Bulk(nil, ops); err != nil {
			return deleted, false, riverrors.New(riverrors.KindBackendFailure, err)
		}
		deleted += len(ids)
	}
	return deleted, false, nil
}

func errResult(projectKey string, mode Mode, start time.Time, err error) Result {
	log.Printf("[%s] %s run failed: %v", projectKey, mode, err)
	return Result{ProjectKey: projectKey, Mode: mode, OK: false, StartDate: start, Elapsed: time.Since(start), Err: err}
}
