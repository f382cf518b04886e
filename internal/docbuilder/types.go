// Package docbuilder implements the document-structure builder (C4):
// a pure transformation from upstream issue/comment records (as
// decoded JSON) into the flat index-document shape, driven by the
// declarative field/filter configuration of spec.md §4.3.
package docbuilder

import "time"

// Document is a flat field-name -> value map written to the search
// backend under a stable id (spec.md §3 "Index document").
type Document map[string]interface{}

// Result is everything BuildIssue produces for one upstream issue:
// the issue document itself, plus zero or more comment documents
// when comment_mode is "child" or "standalone" (spec.md §4.3).
type Result struct {
	IssueDoc     Document
	IssueDocID   string
	CommentDocs  []Document
	CommentIDs   []string
	Updated      time.Time
}

// DeletionSpec is the data-only description of
// buildSearchForIndexedDocumentsNotUpdatedAfter (spec.md §4.3): C4
// builds it, C3 (internal/backend) executes it as a scrollable
// search. Keeping it a plain value keeps the document builder free
// of any search-backend dependency.
type DeletionSpec struct {
	ProjectKey string
	// ProjectKeyField is the configured output field name holding the
	// project key (index.field_project_key), so C3 can filter on it
	// without re-reading the index configuration.
	ProjectKeyField string
	// DocTypes is the issue type, plus the comment type when
	// comment_mode is child or standalone.
	DocTypes []string
	// Before is the bound date: documents whose automatic
	// ingest-timestamp is strictly before this are stale.
	Before time.Time
}
