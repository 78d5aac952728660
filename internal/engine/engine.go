// Package engine implements the issue workflow engine: template-aware
// issue CRUD, optimistic-locking claims, dependency management, and the
// category-aware queries the dashboard and CLI are built on. All durable
// state goes through the storage contract; all workflow policy comes from
// the template registry.
package engine

import (
	"context"

	"github.com/weftworks/weft/internal/idgen"
	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/templates"
	"github.com/weftworks/weft/internal/types"
)

// MutationHook runs after every committed mutation. Implementations must
// stay cheap: the hook sits on every write path.
type MutationHook func(ctx context.Context)

// Engine orchestrates the store and the template registry. Construct with
// New; the zero value is not usable.
type Engine struct {
	store    storage.Store
	registry *templates.Registry
	ids      *idgen.Generator

	afterMutation MutationHook
}

// New returns an engine over the given store and registry. The id
// generator carries the project prefix.
func New(store storage.Store, registry *templates.Registry, ids *idgen.Generator) *Engine {
	return &Engine{store: store, registry: registry, ids: ids}
}

// Registry exposes the template registry for read-only template queries.
func (e *Engine) Registry() *templates.Registry { return e.registry }

// Store exposes the storage handle for services that only read (flow
// metrics, summary generation).
func (e *Engine) Store() storage.Store { return e.store }

// SetAfterMutation registers the post-commit hook (summary regeneration,
// change broadcasting). Replaces any previous hook.
func (e *Engine) SetAfterMutation(hook MutationHook) {
	e.afterMutation = hook
}

func (e *Engine) fireAfterMutation(ctx context.Context) {
	if e.afterMutation != nil {
		e.afterMutation(ctx)
	}
}

// ReloadTemplates discards the registry cache; the next query rebuilds
// from disk. Invoked by the cache-bust endpoint when pack config changes.
func (e *Engine) ReloadTemplates() {
	e.registry.Reload()
}

// getIssue loads one issue or returns the typed not-found error.
func (e *Engine) getIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, err := e.store.GetIssue(ctx, id)
	if err != nil {
		if CodeOf(err) == CodeNotFound {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	return issue, nil
}

// finalize enriches the issues with their derived attributes: labels,
// relations, status category, and is_ready (computed with one grouped
// blocker-count query across the whole batch).
func (e *Engine) finalize(ctx context.Context, issues []*types.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	if err := e.store.Enrich(ctx, issues); err != nil {
		return err
	}

	ids := make([]string, len(issues))
	for i, issue := range issues {
		ids[i] = issue.ID
		issue.StatusCategory = e.registry.CategoryOrLegacy(issue.Type, issue.Status)
	}

	counts, err := e.store.BlockerCounts(ctx, ids, e.registry.DoneStates())
	if err != nil {
		return err
	}
	for _, issue := range issues {
		issue.IsReady = issue.StatusCategory == types.CategoryOpen && counts[issue.ID] == 0
	}
	return nil
}

func (e *Engine) finalizeOne(ctx context.Context, issue *types.Issue) error {
	return e.finalize(ctx, []*types.Issue{issue})
}
