package docbuilder

import (
	"strings"
	"testing"
	"time"

	"github.com/riverdex/jira-river/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig(commentMode string) config.IndexConfig {
	cfg := config.Default().Index
	cfg.CommentMode = commentMode
	cfg.CommentFields = map[string]config.FieldSpec{
		"body":   {JiraField: "body"},
		"author": {JiraField: "author", ValueFilter: "user"},
	}
	return cfg
}

func sampleIssue() map[string]interface{} {
	return map[string]interface{}{
		"key":  "ORG-1501",
		"self": "https://jira.example.com/rest/api/2/issue/10100",
		"fields": map[string]interface{}{
			"updated": "2024-05-01T10:00:00Z",
			"project": map[string]interface{}{"key": "ORG"},
			"summary": "Build the river",
			"status":  map[string]interface{}{"name": "Open"},
			"reporter": map[string]interface{}{
				"name":        "jdoe",
				"displayName": "Jane Doe",
				"emailAddress": "jane@example.com",
			},
			"comment": map[string]interface{}{
				"comments": []interface{}{
					map[string]interface{}{
						"id":   "9001",
						"body": "first",
						"author": map[string]interface{}{
							"name":        "jdoe",
							"displayName": "Jane Doe",
						},
					},
				},
			},
		},
	}
}

func TestBuildIssueProvenanceAndFilteredField(t *testing.T) {
	cfg := testConfig("none")
	b, err := New(cfg, "https://jira.example.com", nil)
	require.NoError(t, err)

	result, err := b.BuildIssue("ORG", sampleIssue())
	require.NoError(t, err)

	require.Equal(t, "ORG-1501", result.IssueDocID)
	require.Equal(t, "ORG", result.IssueDoc["project_key"])
	require.Equal(t, "ORG-1501", result.IssueDoc["issue_key"])
	require.Equal(t, "https://jira.example.com/browse/ORG-1501", result.IssueDoc["document_url"])
	require.Equal(t, "Build the river", result.IssueDoc["summary"])

	reporter, ok := result.IssueDoc["reporter"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "jdoe", reporter["name"])
	require.Equal(t, "Jane Doe", reporter["display_name"])
	require.Equal(t, "jane@example.com", reporter["email"])

	require.Nil(t, result.IssueDoc["comments"])
	require.Empty(t, result.CommentDocs)
}

func TestCommentModeEmbedded(t *testing.T) {
	cfg := testConfig("embedded")
	b, err := New(cfg, "https://jira.example.com", nil)
	require.NoError(t, err)

	result, err := b.BuildIssue("ORG", sampleIssue())
	require.NoError(t, err)

	comments, ok := result.IssueDoc["comments"].([]interface{})
	require.True(t, ok)
	require.Len(t, comments, 1)
	first := comments[0].(Document)
	require.Equal(t, "9001", first["id"])
	require.Equal(t, "first", first["body"])
	require.Contains(t, first["url"], "focusedCommentId=9001")
	require.Empty(t, result.CommentDocs)
}

func TestCommentModeStandaloneAndChildProduceSeparateDocs(t *testing.T) {
	for _, mode := range []string{"standalone", "child"} {
		cfg := testConfig(mode)
		b, err := New(cfg, "https://jira.example.com", nil)
		require.NoError(t, err)

		result, err := b.BuildIssue("ORG", sampleIssue())
		require.NoError(t, err)

		require.Nil(t, result.IssueDoc["comments"])
		require.Len(t, result.CommentDocs, 1)
		require.Equal(t, []string{"9001"}, result.CommentIDs)
		require.Equal(t, "ORG", result.CommentDocs[0]["project_key"])
		require.Equal(t, "ORG-1501", result.CommentDocs[0]["issue_key"])
	}
}

func TestBuildIssueMissingKeyIsUpstreamFatal(t *testing.T) {
	cfg := testConfig("none")
	b, err := New(cfg, "https://jira.example.com", nil)
	require.NoError(t, err)

	issue := sampleIssue()
	delete(issue, "key")

	_, err = b.BuildIssue("ORG", issue)
	require.Error(t, err)
}

func TestFilterOnScalarWarnsAndPassesThrough(t *testing.T) {
	cfg := testConfig("none")
	var warned bool
	b, err := New(cfg, "https://jira.example.com", func(string, ...interface{}) { warned = true })
	require.NoError(t, err)

	issue := sampleIssue()
	issue["fields"].(map[string]interface{})["reporter"] = "not-an-object"

	result, err := b.BuildIssue("ORG", issue)
	require.NoError(t, err)
	require.Equal(t, "not-an-object", result.IssueDoc["reporter"])
	require.True(t, warned)
}

func TestRequiredFieldsIncludesCommentWhenModeIsActive(t *testing.T) {
	cfg := testConfig("child")
	b, err := New(cfg, "https://jira.example.com", nil)
	require.NoError(t, err)

	fields := b.RequiredFields()
	require.Contains(t, fields, "comment")
	require.Contains(t, fields, "updated")
	require.Contains(t, fields, "project")
}

func TestRequiredFieldsStripsFieldsPrefixFromJiraFieldPaths(t *testing.T) {
	cfg := testConfig("none")
	b, err := New(cfg, "https://jira.example.com", nil)
	require.NoError(t, err)

	segments := strings.Split(b.RequiredFields(), ",")

	// Default config's jira_field paths are all "fields.<name>..." — the
	// literal top-level upstream segment is always "fields", which is not
	// itself a navigable field name. Each configured field's real segment
	// (e.g. "summary", "status", "reporter") must appear instead, and the
	// literal "fields" must not.
	require.Contains(t, segments, "summary")
	require.Contains(t, segments, "status")
	require.Contains(t, segments, "reporter")
	require.NotContains(t, segments, "fields")
}

func TestBuildDeletionQueryIncludesCommentTypeWhenConfigured(t *testing.T) {
	cfg := testConfig("standalone")
	cfg.Type = "jira_issue"
	b, err := New(cfg, "https://jira.example.com", nil)
	require.NoError(t, err)

	spec := b.BuildDeletionQuery("ORG", time.Now())
	require.Equal(t, "ORG", spec.ProjectKey)
	require.ElementsMatch(t, []string{"jira_issue", "jira_issue_comment"}, spec.DocTypes)
}
