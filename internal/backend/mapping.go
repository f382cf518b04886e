package backend

import "github.com/blevesearch/bleve/v2"

// buildMapping defines the index mapping shared by issue and comment
// documents. Grounded on the teacher's buildBleveMapping
// (internal/mcp/exact_searcher.go): explicit field mappings for the
// fields the deletion pass and CLI surfaces filter or sort on,
// keyword analyzers for exact-match fields, a dynamic default
// mapping for everything else since the document shape is driven by
// the operator's field configuration (spec.md §4.3) and cannot be
// known statically.
func buildMapping() *bleve.IndexMapping {
	m := bleve.NewIndexMapping()

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	date := bleve.NewDateTimeFieldMapping()
	date.Store = true
	date.Index = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(TypeField, keyword)
	doc.AddFieldMappingsAt(IngestedAtField, date)
	// project_key and issue_key are common defaults (spec.md §6's
	// document layout table); operators renaming them via
	// field_project_key/field_issue_key still get a searchable field,
	// just without the keyword-exact mapping below for the custom name.
	doc.AddFieldMappingsAt("project_key", keyword)
	doc.AddFieldMappingsAt("issue_key", keyword)
	doc.Dynamic = true

	m.DefaultMapping = doc
	return m
}
