// Package backend implements the search-backend adapter (C3):
// bulk write, scrollable read, refresh, and single-document access
// over a bleve full-text index (spec.md §4.6).
//
// Grounded on the teacher's internal/mcp.exactSearcher
// (mvp-joe/project-cortex): a bleve.Index opened with an explicit
// field mapping, batched writes via index.NewBatch()/index.Batch(),
// and bleve.SearchRequest paging for reads. The upstream search
// backend spec.md contracts supplies an automatic per-document
// ingest-timestamp; bleve has no such built-in, so this adapter
// stamps one itself on every index write (field IngestedAtField).
package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/riverdex/jira-river/internal/docbuilder"
)

// TypeField names the field every document carries to distinguish
// the issue document type from the comment document type within a
// single bleve index — bleve v2 has no native per-document "type"
// the way the upstream backend in spec.md is assumed to.
const TypeField = "_type"

// IngestedAtField is the automatic ingest-timestamp field spec.md §6
// requires the search backend to supply. bleve stamps nothing on its
// own, so Adapter fills it in on every index write.
const IngestedAtField = "_ingested_at"

// Adapter implements C3 over a single bleve index shared by the
// issue document type and (when comment_mode is child or standalone)
// the comment document type.
type Adapter struct {
	index bleve.Index
	mu    sync.RWMutex
}

// Open opens (or creates) a bleve index on disk at path. An empty
// path creates an in-memory index that persists nothing, used by
// tests.
func Open(path string) (*Adapter, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
		return &Adapter{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == nil {
		return &Adapter{index: idx}, nil
	}

	idx, err = bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", path, err)
	}
	return &Adapter{index: idx}, nil
}

// Close releases the underlying index handle.
func (a *Adapter) Close() error {
	return a.index.Close()
}

// Refresh is a documented no-op: bleve's Batch() call is synchronous
// and its effects are visible to the next Search/Get before it
// returns, unlike the upstream search backend spec.md §4.4/§4.4
// DELETE_PASS assumes (which needs an explicit refresh before its
// just-written documents are searchable). Kept as a method so C5's
// call sites read the same regardless of backend.
func (a *Adapter) Refresh() error {
	return nil
}

// IndexOp is one upsert in a Bulk call: an issue or comment document
// written under docType/id with the provenance project key attached
// for the deletion query to filter on later.
type IndexOp struct {
	DocType    string
	ID         string
	Doc        docbuilder.Document
}

// DeleteOp is one deletion in a Bulk call.
type DeleteOp struct {
	DocType string
	ID      string
}

// Bulk executes a batch of index/delete operations atomically from
// the caller's perspective (spec.md §4.6 "bulk(requests) fails if
// any op fails"). Every IndexOp in one call is stamped with the same
// IngestedAtField value, taken from the clock when the batch is built.
func (a *Adapter) Bulk(indexOps []IndexOp, deleteOps []DeleteOp) error {
	if len(indexOps) == 0 && len(deleteOps) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := a.index.NewBatch()
	for _, op := range indexOps {
		doc := make(docbuilder.Document, len(op.Doc)+2)
		for k, v := range op.Doc {
			doc[k] = v
		}
		doc[TypeField] = op.DocType
		doc[IngestedAtField] = now
		if err := batch.Index(op.ID, doc); err != nil {
			return fmt.Errorf("adding %s %s to batch: %w", op.DocType, op.ID, err)
		}
	}
	for _, op := range deleteOps {
		batch.Delete(op.ID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.index.Batch(batch); err != nil {
		return fmt.Errorf("executing bulk of %d index + %d delete ops: %w", len(indexOps), len(deleteOps), err)
	}
	return nil
}

// IndexDocument writes a single document (used for watermark-style
// single-document access per spec.md §4.6; jira-river's own
// watermark store uses SQLite instead, see internal/watermark and
// DESIGN.md, but the method is kept so the adapter fully implements
// the contracted interface).
func (a *Adapter) IndexDocument(docType, id string, doc docbuilder.Document) error {
	return a.Bulk([]IndexOp{{DocType: docType, ID: id, Doc: doc}}, nil)
}

// Get reads back the stored fields of a single document by id via a
// doc-id search, since bleve's native document reader only returns
// undecoded field bytes — the same stored-field path ScrollSearch
// already uses is the more reliable route to typed values.
func (a *Adapter) Get(id string) (docbuilder.Document, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{"*"}
	res, err := a.index.Search(req)
	if err != nil {
		return nil, false, fmt.Errorf("getting document %s: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return nil, false, nil
	}

	out := docbuilder.Document{}
	for k, v := range res.Hits[0].Fields {
		out[k] = v
	}
	return out, true, nil
}

// Delete removes a single document by id.
func (a *Adapter) Delete(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.index.Delete(id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// DocCount returns the number of documents currently in the index,
// used by tests to assert on bulk-write and deletion-pass outcomes.
func (a *Adapter) DocCount() (uint64, error) {
	return a.index.DocCount()
}
