package backend

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/riverdex/jira-river/internal/docbuilder"
)

// Scroller implements scrollSearch (spec.md §4.6): a paged walk over
// the deletion candidates a full run's DELETE_PASS (spec.md §4.4)
// consumes, so an arbitrarily large stale set never has to be held
// in memory at once.
//
// DELETE_PASS deletes every id a page returns before calling Next
// again, so the matching set shrinks between pages: it always
// re-queries from=0 rather than advancing an offset, otherwise
// already-deleted docs would push the window past remaining matches
// and leak them (spec.md I3/P2).
type Scroller struct {
	adapter  *Adapter
	query    query.Query
	pageSize int
	done     bool
}

// NewDeletionScroller opens a scrollable search over
// buildSearchForIndexedDocumentsNotUpdatedAfter (spec.md §4.3): all
// documents of the project's configured doc types whose
// IngestedAtField predates spec.Before.
func (a *Adapter) NewDeletionScroller(spec docbuilder.DeletionSpec, pageSize int) *Scroller {
	return &Scroller{adapter: a, query: deletionQuery(spec), pageSize: pageSize}
}

func deletionQuery(spec docbuilder.DeletionSpec) query.Query {
	projectField := spec.ProjectKeyField
	if projectField == "" {
		projectField = "project_key"
	}
	projectQ := bleve.NewMatchQuery(spec.ProjectKey)
	projectQ.SetField(projectField)

	typeQs := make([]query.Query, 0, len(spec.DocTypes))
	for _, t := range spec.DocTypes {
		tq := bleve.NewMatchQuery(t)
		tq.SetField(TypeField)
		typeQs = append(typeQs, tq)
	}
	var typeQ query.Query
	if len(typeQs) == 1 {
		typeQ = typeQs[0]
	} else {
		typeQ = bleve.NewDisjunctionQuery(typeQs...)
	}

	endInclusive := false
	dateQ := bleve.NewDateRangeInclusiveQuery(time.Time{}, spec.Before, nil, &endInclusive)
	dateQ.SetField(IngestedAtField)

	return bleve.NewConjunctionQuery(projectQ, typeQ, dateQ)
}

// Next returns the next page of matching document ids, always from
// the start of the (shrinking) matching set. An empty, non-nil slice
// with no error means the scroll is exhausted; callers should stop
// looping.
func (s *Scroller) Next() ([]string, error) {
	if s.done {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(s.query, s.pageSize, 0, false)
	res, err := s.adapter.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("scrolling deletion candidates: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	if len(ids) == 0 {
		s.done = true
	}
	return ids, nil
}
