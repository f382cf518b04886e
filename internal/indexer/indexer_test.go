package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverdex/jira-river/internal/backend"
	"github.com/riverdex/jira-river/internal/config"
	"github.com/riverdex/jira-river/internal/docbuilder"
	"github.com/riverdex/jira-river/internal/jira"
	"github.com/riverdex/jira-river/internal/watermark"
)

// fakeUpstream serves a fixed sequence of pages keyed by (startAt),
// ignoring updatedAfter beyond recording it for assertions — enough
// to drive the pagination decision in the indexer without an HTTP
// server, mirroring the teacher's preference for hand-rolled fakes
// over a mocking framework in package-internal tests.
type fakeUpstream struct {
	pages        map[int]*jira.ChangedIssuesPage
	seenBounds   []*time.Time
	seenStartAts []int
}

func (f *fakeUpstream) ChangedIssues(_ context.Context, _ string, startAt int, updatedAfter *time.Time, _ int) (*jira.ChangedIssuesPage, error) {
	f.seenBounds = append(f.seenBounds, updatedAfter)
	f.seenStartAts = append(f.seenStartAts, startAt)
	page, ok := f.pages[startAt]
	if !ok {
		return &jira.ChangedIssuesPage{}, nil
	}
	return page, nil
}

func issue(key, updated string) map[string]interface{} {
	return map[string]interface{}{
		"key":    key,
		"fields": map[string]interface{}{"updated": updated, "project": map[string]interface{}{"key": "ORG"}},
	}
}

func newTestIndexer(t *testing.T, client upstreamClient) (*Indexer, *backend.Adapter, *watermark.Store) {
	t.Helper()

	cfg := config.Default().Index
	b, err := docbuilder.New(cfg, "https://jira.example.com", nil)
	require.NoError(t, err)

	be, err := backend.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { be.Close() })

	wm, err := watermark.Open(filepath.Join(t.TempDir(), "river.db"))
	require.NoError(t, err)
	t.Cleanup(func() { wm.Close() })

	ix := New(client, b, be, wm, "jira_issue", "jira_issue_comment", 50, 200)
	return ix, be, wm
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

func TestRunFirstPassPromotesToFullAndAdvancesWatermark(t *testing.T) {
	client := &fakeUpstream{pages: map[int]*jira.ChangedIssuesPage{
		0: {Total: 2, StartAt: 0, Issues: []map[string]interface{}{
			issue("ORG-1", "2024-05-01T10:00:00Z"),
			issue("ORG-2", "2024-05-01T10:01:00Z"),
		}},
	}}
	ix, be, wm := newTestIndexer(t, client)

	res := ix.Run(t.Context(), "ORG", ModeIncremental)
	require.NoError(t, res.Err)
	require.True(t, res.OK)
	require.Equal(t, ModeFull, res.Mode) // promoted: no prior watermark
	require.Equal(t, 2, res.Updated)

	count, err := be.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	wmv, err := wm.ReadDatetimeValue("ORG", watermarkProperty)
	require.NoError(t, err)
	require.True(t, mustParse(t, "2024-05-01T10:01:00Z").Equal(*wmv))
}

func TestRunSameMinutePaginationAdvancesOnceBeyondCluster(t *testing.T) {
	client := &fakeUpstream{pages: map[int]*jira.ChangedIssuesPage{
		0: {Total: 3, StartAt: 0, Issues: []map[string]interface{}{
			issue("ORG-3", "2024-05-01T10:02:00Z"),
			issue("ORG-4", "2024-05-01T10:02:30Z"),
		}},
		2: {Total: 3, StartAt: 2, Issues: []map[string]interface{}{
			issue("ORG-5", "2024-05-01T10:03:00Z"),
		}},
	}}
	ix, _, wm := newTestIndexer(t, client)

	initial := mustParse(t, "2024-05-01T10:00:00Z")
	require.NoError(t, wm.StoreDatetimeValue("ORG", watermarkProperty, initial, nil))

	res := ix.Run(t.Context(), "ORG", ModeIncremental)
	require.NoError(t, res.Err)
	require.True(t, res.OK)
	require.Equal(t, ModeIncremental, res.Mode)
	require.Equal(t, 3, res.Updated)

	// Second page must have been fetched with the ORIGINAL bound and
	// startAt=2, not a re-anchored bound (spec.md §4.4 S2).
	require.Len(t, client.seenStartAts, 2)
	require.Equal(t, 0, client.seenStartAts[0])
	require.Equal(t, 2, client.seenStartAts[1])
	require.True(t, initial.Equal(*client.seenBounds[1]))

	wmv, err := wm.ReadDatetimeValue("ORG", watermarkProperty)
	require.NoError(t, err)
	require.True(t, mustParse(t, "2024-05-01T10:03:00Z").Equal(*wmv))
}

func TestRunLivelockGuardBumpsWatermarkWhenStuck(t *testing.T) {
	client := &fakeUpstream{pages: map[int]*jira.ChangedIssuesPage{
		0: {Total: 1, StartAt: 0, Issues: []map[string]interface{}{
			issue("ORG-9", "2024-05-01T10:00:00Z"),
		}},
	}}
	ix, _, wm := newTestIndexer(t, client)

	initial := mustParse(t, "2024-05-01T10:00:00Z")
	require.NoError(t, wm.StoreDatetimeValue("ORG", watermarkProperty, initial, nil))

	res := ix.Run(t.Context(), "ORG", ModeIncremental)
	require.NoError(t, res.Err)
	require.True(t, res.OK)
	require.Equal(t, 1, res.Updated)

	wmv, err := wm.ReadDatetimeValue("ORG", watermarkProperty)
	require.NoError(t, err)
	require.True(t, mustParse(t, "2024-05-01T10:01:04Z").Equal(*wmv))
}

func TestRunFullModeDeletesDocumentsNotReingested(t *testing.T) {
	client := &fakeUpstream{pages: map[int]*jira.ChangedIssuesPage{}}
	ix, be, _ := newTestIndexer(t, client)

	require.NoError(t, be.Bulk([]backend.IndexOp{{DocType: "jira_issue", ID: "ORG-10", Doc: docbuilder.Document{"project_key": "ORG"}}}, nil))
	time.Sleep(5 * time.Millisecond)

	res := ix.Run(t.Context(), "ORG", ModeFull)
	require.NoError(t, res.Err)
	require.True(t, res.OK)
	require.Equal(t, 0, res.Updated)
	require.Equal(t, 1, res.Deleted)

	count, err := be.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
}

func TestRunCancellationExitsCleanlyWithoutReport(t *testing.T) {
	client := &fakeUpstream{pages: map[int]*jira.ChangedIssuesPage{
		0: {Total: 1, StartAt: 0, Issues: []map[string]interface{}{issue("ORG-1", "2024-05-01T10:00:00Z")}},
	}}
	ix, _, _ := newTestIndexer(t, client)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res := ix.Run(ctx, "ORG", ModeIncremental)
	require.True(t, res.Interrupted)
	require.False(t, res.OK)
	require.NoError(t, res.Err)
}
