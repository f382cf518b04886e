package cli

import (
	"context"
	"fmt"

	"github.com/riverdex/jira-river/internal/backend"
	"github.com/riverdex/jira-river/internal/config"
	"github.com/riverdex/jira-river/internal/coordinator"
	"github.com/riverdex/jira-river/internal/docbuilder"
	"github.com/riverdex/jira-river/internal/indexer"
	"github.com/riverdex/jira-river/internal/jira"
	"github.com/riverdex/jira-river/internal/watermark"
)

// components is the fully wired set of collaborators every subcommand
// that touches the index needs, built the same way regardless of
// which command assembles them (spec.md §2 component list).
type components struct {
	cfg     *config.Config
	client  *jira.Client
	builder *docbuilder.Builder
	backend *backend.Adapter
	store   *watermark.Store
	indexer *indexer.Indexer
}

// build constructs every collaborator from an already-loaded
// configuration, in
// the dependency order C4 (needs no upstream) -> C2 (needs C4's
// required-fields) -> C3 -> C1 -> C5, matching spec.md §2's data flow.
func build(cfg *config.Config) (*components, error) {
	builder, err := docbuilder.New(cfg.Index, cfg.Jira.URLBase, nil)
	if err != nil {
		return nil, fmt.Errorf("build document builder: %w", err)
	}

	client, err := jira.New(cfg.Jira, builder.RequiredFields())
	if err != nil {
		return nil, fmt.Errorf("build upstream client: %w", err)
	}

	be, err := backend.Open(cfg.Index.Index)
	if err != nil {
		return nil, fmt.Errorf("open search backend: %w", err)
	}

	store, err := watermark.Open(cfg.Watermark.DBPath)
	if err != nil {
		be.Close()
		return nil, fmt.Errorf("open watermark store: %w", err)
	}

	ix := indexer.New(client, builder, be, store, cfg.Index.Type, commentDocType(cfg.Index), cfg.Jira.MaxIssuesPerRequest, 200)

	return &components{cfg: cfg, client: client, builder: builder, backend: be, store: store, indexer: ix}, nil
}

func (c *components) Close() {
	c.store.Close()
	c.backend.Close()
}

// commentDocType names the comment document type when comments are
// indexed as their own documents (comment_mode = child|standalone);
// it is unused by the builder/indexer when comment_mode keeps
// comments embedded in the issue document, but always has a sane
// value so the indexer can pass it through uniformly.
func commentDocType(cfg config.IndexConfig) string {
	if cfg.Type == "" {
		return "jira_issue_comment"
	}
	return cfg.Type + "_comment"
}

// newCoordinator builds a Coordinator over already-built components.
func newCoordinator(c *components) *coordinator.Coordinator {
	opts := coordinator.Options{
		TickInterval:            c.cfg.Coordinator.TickInterval,
		ProjectsRefreshInterval: c.cfg.Jira.ProjectsRefreshInterval,
		IndexUpdatePeriod:       c.cfg.Jira.IndexUpdatePeriod,
		IndexFullUpdatePeriod:   c.cfg.Jira.IndexFullUpdatePeriod,
		MaxIndexingThreads:      c.cfg.Jira.MaxIndexingThreads,
		StaticProjectKeys:       c.cfg.Jira.ProjectKeysIndexed,
		ExcludedProjectKeys:     c.cfg.Jira.ProjectKeysExcluded,
		ActivityLogEnabled:      c.cfg.ActivityLog.Enabled(),
	}
	return coordinator.New(c.client, c.indexer, c.store, opts)
}

// discoverProjects resolves the configured project key set the same
// way the coordinator does (spec.md §4.2), for commands that need the
// list without running the scheduler loop.
func discoverProjects(ctx context.Context, c *components) ([]string, error) {
	if len(c.cfg.Jira.ProjectKeysIndexed) > 0 {
		return c.cfg.Jira.ProjectKeysIndexed, nil
	}

	keys, err := c.client.ListProjectKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover projects: %w", err)
	}
	excluded := make(map[string]struct{}, len(c.cfg.Jira.ProjectKeysExcluded))
	for _, k := range c.cfg.Jira.ProjectKeysExcluded {
		excluded[k] = struct{}{}
	}
	out := keys[:0]
	for _, k := range keys {
		if _, skip := excluded[k]; !skip {
			out = append(out, k)
		}
	}
	return out, nil
}
