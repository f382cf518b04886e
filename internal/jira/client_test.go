package jira

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riverdex/jira-river/internal/config"
	"github.com/riverdex/jira-river/internal/riverrors"
	"github.com/stretchr/testify/require"
)

func TestBuildJQLWithAndWithoutWatermark(t *testing.T) {
	loc, _ := time.LoadLocation("UTC")
	require.Equal(t, "project = ORG ORDER BY updated ASC", BuildJQL("ORG", nil, loc))

	ts := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	jql := BuildJQL("ORG", &ts, loc)
	require.Equal(t, `project = ORG AND updated >= "2024-05-01 10:00" ORDER BY updated ASC`, jql)
}

func TestChangedIssuesDecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/search", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total":   2,
			"startAt": 0,
			"issues": []map[string]interface{}{
				{"key": "ORG-1"},
				{"key": "ORG-2"},
			},
		})
	}))
	defer srv.Close()

	c, err := New(config.JiraConfig{URLBase: srv.URL}, "updated,project")
	require.NoError(t, err)

	page, err := c.ChangedIssues(t.Context(), "ORG", 0, nil, 50)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Issues, 2)
}

func TestChangedIssuesClassifiesAuthFailureAsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(config.JiraConfig{URLBase: srv.URL}, "updated,project")
	require.NoError(t, err)

	_, err = c.ChangedIssues(t.Context(), "ORG", 0, nil, 50)
	require.Error(t, err)
	require.True(t, riverrors.Is(err, riverrors.KindUpstreamFatal))
}

func TestListProjectKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/project", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]string{{"key": "ORG"}, {"key": "OTHER"}})
	}))
	defer srv.Close()

	c, err := New(config.JiraConfig{URLBase: srv.URL}, "updated,project")
	require.NoError(t, err)

	keys, err := c.ListProjectKeys(t.Context())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ORG", "OTHER"}, keys)
}
