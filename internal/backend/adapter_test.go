package backend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverdex/jira-river/internal/docbuilder"
)

func openTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestBulkIndexThenGetStampsIngestTimestamp(t *testing.T) {
	a := openTestAdapter(t)

	before := time.Now().UTC()
	err := a.Bulk([]IndexOp{{
		DocType: "jira_issue",
		ID:      "ORG-1",
		Doc:     docbuilder.Document{"project_key": "ORG", "summary": "first issue"},
	}}, nil)
	require.NoError(t, err)

	doc, found, err := a.Get("ORG-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "jira_issue", doc[TypeField])
	require.Contains(t, doc, IngestedAtField)
	require.Equal(t, "first issue", doc["summary"])
	_ = before
}

func TestBulkDeleteRemovesDocument(t *testing.T) {
	a := openTestAdapter(t)

	require.NoError(t, a.Bulk([]IndexOp{{DocType: "jira_issue", ID: "ORG-1", Doc: docbuilder.Document{"project_key": "ORG"}}}, nil))
	require.NoError(t, a.Bulk(nil, []DeleteOp{{DocType: "jira_issue", ID: "ORG-1"}}))

	_, found, err := a.Get("ORG-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeletionScrollerFindsStaleDocuments(t *testing.T) {
	a := openTestAdapter(t)

	require.NoError(t, a.Bulk([]IndexOp{{DocType: "jira_issue", ID: "ORG-10", Doc: docbuilder.Document{"project_key": "ORG"}}}, nil))

	// Give the stamped ingest timestamp room to be strictly before "now".
	time.Sleep(5 * time.Millisecond)
	bound := time.Now().UTC()

	spec := docbuilder.DeletionSpec{ProjectKey: "ORG", ProjectKeyField: "project_key", DocTypes: []string{"jira_issue"}, Before: bound}
	scroller := a.NewDeletionScroller(spec, 50)

	ids, err := scroller.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"ORG-10"}, ids)

	ids, err = scroller.Next()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestDeletionScrollerExcludesFreshDocuments(t *testing.T) {
	a := openTestAdapter(t)

	bound := time.Now().UTC()
	require.NoError(t, a.Bulk([]IndexOp{{DocType: "jira_issue", ID: "ORG-10", Doc: docbuilder.Document{"project_key": "ORG"}}}, nil))

	spec := docbuilder.DeletionSpec{ProjectKey: "ORG", ProjectKeyField: "project_key", DocTypes: []string{"jira_issue"}, Before: bound}
	scroller := a.NewDeletionScroller(spec, 50)

	ids, err := scroller.Next()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestDeletionScrollerDrainsAllPagesWhenDeletingBetweenCalls(t *testing.T) {
	a := openTestAdapter(t)

	const staleCount = 400
	const pageSize = 200

	ops := make([]IndexOp, 0, staleCount)
	for i := 0; i < staleCount; i++ {
		ops = append(ops, IndexOp{DocType: "jira_issue", ID: fmt.Sprintf("ORG-%d", i), Doc: docbuilder.Document{"project_key": "ORG"}})
	}
	require.NoError(t, a.Bulk(ops, nil))

	time.Sleep(5 * time.Millisecond)
	bound := time.Now().UTC()

	spec := docbuilder.DeletionSpec{ProjectKey: "ORG", ProjectKeyField: "project_key", DocTypes: []string{"jira_issue"}, Before: bound}
	scroller := a.NewDeletionScroller(spec, pageSize)

	seen := make(map[string]struct{})
	for {
		ids, err := scroller.Next()
		require.NoError(t, err)
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		// Mirror DELETE_PASS: the scroller's page is deleted before the
		// next call, shrinking the matching set (spec.md I3/P2).
		deleteOps := make([]DeleteOp, len(ids))
		for i, id := range ids {
			deleteOps[i] = DeleteOp{ID: id}
		}
		require.NoError(t, a.Bulk(nil, deleteOps))
	}

	require.Len(t, seen, staleCount)
	count, err := a.DocCount()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDeletionScrollerFiltersByProjectAndType(t *testing.T) {
	a := openTestAdapter(t)

	require.NoError(t, a.Bulk([]IndexOp{
		{DocType: "jira_issue", ID: "ORG-1", Doc: docbuilder.Document{"project_key": "ORG"}},
		{DocType: "jira_issue", ID: "OTHER-1", Doc: docbuilder.Document{"project_key": "OTHER"}},
		{DocType: "jira_issue_comment", ID: "c1", Doc: docbuilder.Document{"project_key": "ORG"}},
	}, nil))

	time.Sleep(5 * time.Millisecond)
	bound := time.Now().UTC()

	spec := docbuilder.DeletionSpec{ProjectKey: "ORG", ProjectKeyField: "project_key", DocTypes: []string{"jira_issue"}, Before: bound}
	scroller := a.NewDeletionScroller(spec, 50)

	ids, err := scroller.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"ORG-1"}, ids)
}
