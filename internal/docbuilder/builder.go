package docbuilder

import (
	"fmt"
	"strings"
	"time"

	"github.com/riverdex/jira-river/internal/config"
	"github.com/riverdex/jira-river/internal/jsonx"
	"github.com/riverdex/jira-river/internal/riverrors"
)

// Builder transforms upstream issue records into index documents
// according to an IndexConfig (spec.md §4.3).
type Builder struct {
	cfg           config.IndexConfig
	baseURL       string
	preprocessors []Preprocessor
	warn          func(format string, args ...interface{})
}

// New creates a document builder for the given index configuration
// and the upstream tracker's base URL (used to derive browse URLs).
// Callers are expected to have already run config.Validate; New
// re-checks the few invariants it depends on directly so a
// misconfigured builder never silently produces malformed documents.
func New(cfg config.IndexConfig, baseURL string, warn func(string, ...interface{})) (*Builder, error) {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}

	if strings.TrimSpace(cfg.FieldIssueKey) == "" || strings.TrimSpace(cfg.FieldIssueURL) == "" {
		return nil, riverrors.New(riverrors.KindConfig, fmt.Errorf("field_issue_key and field_issue_url are required"))
	}

	stages, err := buildPreprocessors(cfg.Preprocessors)
	if err != nil {
		return nil, riverrors.New(riverrors.KindConfig, err)
	}

	return &Builder{cfg: cfg, baseURL: strings.TrimRight(baseURL, "/"), preprocessors: stages, warn: warn}, nil
}

// RequiredFields returns the comma-separated set of upstream field
// segments the JQL search call must request, derived from the
// configured jira_field paths plus {updated, project} always, and
// comment when comment_mode != none (spec.md §4.3).
func (b *Builder) RequiredFields() string {
	segments := map[string]struct{}{
		"updated": {},
		"project": {},
	}
	for _, spec := range b.cfg.Fields {
		path := strings.TrimPrefix(spec.JiraField, "fields.")
		segments[jsonx.FirstSegment(path)] = struct{}{}
	}
	if b.cfg.CommentMode != "" && b.cfg.CommentMode != "none" {
		segments["comment"] = struct{}{}
	}

	out := make([]string, 0, len(segments))
	for s := range segments {
		out = append(out, s)
	}
	// Deterministic order keeps generated JQL reproducible across runs,
	// which matters for tests and for log comparability across ticks.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return strings.Join(out, ",")
}

// BuildIssue transforms one upstream issue record into a Result:
// the issue document, and (for comment_mode child/standalone) one
// comment document per upstream comment.
func (b *Builder) BuildIssue(projectKey string, issue map[string]interface{}) (*Result, error) {
	for _, stage := range b.preprocessors {
		var err error
		issue, err = stage.Apply(projectKey, issue)
		if err != nil {
			return nil, fmt.Errorf("preprocessor %s: %w", stage.Name(), err)
		}
	}

	keyVal, ok := jsonx.Extract("key", issue)
	key, isStr := jsonx.AsString(keyVal)
	if !ok || !isStr || key == "" {
		return nil, riverrors.New(riverrors.KindUpstreamFatal, fmt.Errorf("issue missing required field %q", "key"))
	}

	updatedVal, ok := jsonx.Extract("fields.updated", issue)
	updatedStr, isStr := jsonx.AsString(updatedVal)
	if !ok || !isStr {
		return nil, riverrors.New(riverrors.KindUpstreamFatal, fmt.Errorf("issue %s missing required field %q", key, "fields.updated"))
	}
	updated, err := time.Parse(time.RFC3339, updatedStr)
	if err != nil {
		return nil, riverrors.New(riverrors.KindUpstreamFatal, fmt.Errorf("issue %s has unparsable fields.updated %q: %w", key, updatedStr, err))
	}

	doc := Document{
		b.cfg.FieldRiverName:  indexRiverName(b.cfg),
		b.cfg.FieldProjectKey: projectKey,
		b.cfg.FieldIssueKey:   key,
		b.cfg.FieldIssueURL:   issueURL(b.baseURL, key),
	}

	for outName, spec := range b.cfg.Fields {
		val, ok := jsonx.Extract(spec.JiraField, issue)
		if !ok {
			continue // missing intermediate key: omitted from output, not an error (§4.3).
		}
		if spec.ValueFilter != "" {
			val = b.applyFilter(spec.ValueFilter, val)
		}
		doc[outName] = val
	}

	result := &Result{IssueDoc: doc, IssueDocID: key, Updated: updated}

	switch b.cfg.CommentMode {
	case "", "none":
		// Comments omitted entirely.
	case "embedded":
		comments := b.extractComments(issue)
		embedded := make([]interface{}, 0, len(comments))
		for _, c := range comments {
			embedded = append(embedded, b.buildCommentFields(key, c))
		}
		doc[b.cfg.FieldComments] = embedded
	case "child", "standalone":
		for _, c := range b.extractComments(issue) {
			cid := commentID(c)
			if cid == "" {
				continue
			}
			cdoc := b.buildCommentFields(key, c)
			cdoc["project_key"] = projectKey
			cdoc["issue_key"] = key
			result.CommentDocs = append(result.CommentDocs, cdoc)
			result.CommentIDs = append(result.CommentIDs, cid)
		}
	}

	return result, nil
}

func (b *Builder) extractComments(issue map[string]interface{}) []map[string]interface{} {
	raw, ok := jsonx.Extract("fields.comment.comments", issue)
	if !ok {
		return nil
	}
	arr, ok := jsonx.AsArray(raw)
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(arr))
	for _, el := range arr {
		if obj, ok := jsonx.AsObject(el); ok {
			out = append(out, obj)
		}
	}
	return out
}

func (b *Builder) buildCommentFields(issueKey string, comment map[string]interface{}) Document {
	cid := commentID(comment)
	doc := Document{
		"id":  cid,
		"url": commentURL(b.baseURL, issueKey, cid),
	}
	for outName, spec := range b.cfg.CommentFields {
		val, ok := jsonx.Extract(spec.JiraField, comment)
		if !ok {
			continue
		}
		if spec.ValueFilter != "" {
			val = b.applyFilter(spec.ValueFilter, val)
		}
		doc[outName] = val
	}
	return doc
}

func commentID(comment map[string]interface{}) string {
	v, ok := jsonx.Extract("id", comment)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func indexRiverName(cfg config.IndexConfig) string {
	if cfg.Type != "" {
		return cfg.Type
	}
	return "jira"
}

// issueURL builds the canonical browse URL (spec.md §3, §6): <base>/browse/<key>.
func issueURL(baseURL, key string) string {
	return fmt.Sprintf("%s/browse/%s", baseURL, key)
}

// commentURL builds the focused-comment GUI anchor (spec.md §6).
func commentURL(baseURL, issueKey, commentID string) string {
	return fmt.Sprintf(
		"%s/browse/%s?focusedCommentId=%s&page=com.atlassian.jira.plugin.system.issuetabpanels:comment-tabpanel#comment-%s",
		baseURL, issueKey, commentID, commentID,
	)
}

func (b *Builder) warnf(format string, args ...interface{}) {
	b.warn(format, args...)
}

// BuildDeletionQuery constructs buildSearchForIndexedDocumentsNotUpdatedAfter
// (spec.md §4.3): all documents of this river's issue type (and comment
// type, when configured) for the given project whose automatic
// ingest-timestamp predates boundDate.
func (b *Builder) BuildDeletionQuery(projectKey string, boundDate time.Time) DeletionSpec {
	types := []string{b.cfg.Type}
	if b.cfg.CommentMode == "child" || b.cfg.CommentMode == "standalone" {
		types = append(types, b.cfg.Type+"_comment")
	}
	return DeletionSpec{ProjectKey: projectKey, ProjectKeyField: b.cfg.FieldProjectKey, DocTypes: types, Before: boundDate}
}
