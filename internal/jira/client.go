// Package jira implements the upstream issue-tracker client (C2):
// authenticated paginated JQL search calls, translated into the
// uniform ChangedIssuesPage shape spec.md §4.5 contracts.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/riverdex/jira-river/internal/config"
	"github.com/riverdex/jira-river/internal/riverrors"
)

// ChangedIssuesPage is the uniform shape changedIssues() returns
// (spec.md §3, §4.5).
type ChangedIssuesPage struct {
	Total     int
	StartAt   int
	Issues    []map[string]interface{}
}

// Client issues paginated search calls against a JIRA-shaped REST API.
type Client struct {
	http           *retryablehttp.Client
	baseURL        string
	username       string
	password       string
	timeout        time.Duration
	requiredFields string
	jqlTimeZone    string
	loc            *time.Location
}

// New builds an upstream client from configuration. requiredFields is
// the comma-separated field set the document builder (C4) computed
// (spec.md §4.3 "Required-fields for upstream call").
func New(cfg config.JiraConfig, requiredFields string) (*Client, error) {
	if strings.TrimSpace(cfg.URLBase) == "" {
		return nil, riverrors.New(riverrors.KindConfig, fmt.Errorf("jira.url_base is required"))
	}

	tz := cfg.JQLTimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, riverrors.New(riverrors.KindConfig, fmt.Errorf("invalid jira.jql_time_zone %q: %w", tz, err))
	}
	// The JQL timezone is recorded and logged at startup (spec.md §4.4):
	// a wrong timezone can silently lose updates, so operators need it
	// visible without digging through config files.
	log.Printf("jira client: using JQL timezone %s", tz)

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rc.HTTPClient.Timeout = timeout
	// 401/403 and other 4xx are UpstreamFatal and must not be retried;
	// retryablehttp's default policy already only retries 5xx/429/network
	// errors, which matches spec.md §7's UpstreamTransient set.

	return &Client{
		http:           rc,
		baseURL:        strings.TrimRight(cfg.URLBase, "/"),
		username:       cfg.Username,
		password:       cfg.Password,
		timeout:        timeout,
		requiredFields: requiredFields,
		jqlTimeZone:    tz,
		loc:            loc,
	}, nil
}

// ListProjectKeys returns every project key the upstream knows about.
func (c *Client) ListProjectKeys(ctx context.Context) ([]string, error) {
	body, err := c.doGet(ctx, "/rest/api/2/project", nil)
	if err != nil {
		return nil, err
	}

	var projects []struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, riverrors.New(riverrors.KindUpstreamFatal, fmt.Errorf("decoding project list: %w", err))
	}

	keys := make([]string, 0, len(projects))
	for _, p := range projects {
		keys = append(keys, p.Key)
	}
	return keys, nil
}

// ChangedIssues requests one page of issues for a project, ordered by
// fields.updated ascending (spec.md §4.4 PULL_LOOP step 2).
func (c *Client) ChangedIssues(ctx context.Context, projectKey string, startAt int, updatedAfter *time.Time, maxResults int) (*ChangedIssuesPage, error) {
	jql := BuildJQL(projectKey, updatedAfter, c.loc)

	query := map[string]string{
		"jql":        jql,
		"startAt":    fmt.Sprintf("%d", startAt),
		"maxResults": fmt.Sprintf("%d", maxResults),
		"fields":     c.requiredFields,
	}

	body, err := c.doGet(ctx, "/rest/api/2/search", query)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Total      int                      `json:"total"`
		StartAt    int                      `json:"startAt"`
		Issues     []map[string]interface{} `json:"issues"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, riverrors.New(riverrors.KindUpstreamFatal, fmt.Errorf("decoding search response: %w", err))
	}

	return &ChangedIssuesPage{Total: raw.Total, StartAt: raw.StartAt, Issues: raw.Issues}, nil
}

func (c *Client) doGet(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, riverrors.New(riverrors.KindUpstreamFatal, err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, riverrors.New(riverrors.KindCancellation, ctx.Err())
		}
		return nil, riverrors.New(riverrors.KindUpstreamTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, riverrors.New(riverrors.KindUpstreamTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, riverrors.New(riverrors.KindUpstreamFatal, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode >= 500:
		return nil, riverrors.New(riverrors.KindUpstreamTransient, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode >= 400:
		return nil, riverrors.New(riverrors.KindUpstreamFatal, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, string(body)))
	}

	return body, nil
}
