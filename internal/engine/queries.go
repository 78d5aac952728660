package engine

import (
	"context"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// GetIssue loads one enriched issue. When includeTransitions is set the
// declared transitions out of the current state are returned alongside,
// with per-option missing fields computed from the current field values.
func (e *Engine) GetIssue(ctx context.Context, id string, includeTransitions bool) (*types.Issue, []types.TransitionOption, error) {
	issue, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := e.finalizeOne(ctx, issue); err != nil {
		return nil, nil, err
	}
	var opts []types.TransitionOption
	if includeTransitions {
		opts = e.registry.GetValidTransitions(issue.Type, issue.Status, issue.Fields)
	}
	return issue, opts, nil
}

// ListIssues filters issues. A Status of open, wip, or done names the
// category and expands to every concrete state in it across enabled
// templates; any other value matches the literal state name. A category
// that expands to nothing yields an empty result, not everything.
func (e *Engine) ListIssues(ctx context.Context, f types.IssueFilter) ([]*types.Issue, error) {
	q, empty := e.storageQuery(f)
	if empty {
		return []*types.Issue{}, nil
	}
	issues, err := e.store.ListIssues(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := e.finalize(ctx, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// SearchIssues runs a full-text query over title, description, and notes,
// narrowed by the same filter semantics as ListIssues.
func (e *Engine) SearchIssues(ctx context.Context, query string, f types.IssueFilter) ([]*types.Issue, error) {
	q, empty := e.storageQuery(f)
	if empty {
		return []*types.Issue{}, nil
	}
	issues, err := e.store.SearchIssues(ctx, query, q)
	if err != nil {
		return nil, err
	}
	if err := e.finalize(ctx, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// storageQuery translates the filter into literal state names. The second
// return is true when a category filter matched no states at all.
func (e *Engine) storageQuery(f types.IssueFilter) (storage.ListQuery, bool) {
	q := storage.ListQuery{
		Type:        f.Type,
		Assignee:    f.Assignee,
		ParentID:    f.ParentID,
		Label:       f.Label,
		PriorityMin: f.PriorityMin,
		PriorityMax: f.PriorityMax,
		Limit:       f.Limit,
		Offset:      f.Offset,
	}

	cat := f.StatusCategory
	if cat == "" {
		switch f.Status {
		case string(types.CategoryOpen), string(types.CategoryWip), string(types.CategoryDone):
			cat = types.Category(f.Status)
		case "":
		default:
			q.Statuses = []string{f.Status}
		}
	}
	if cat != "" {
		states := e.registry.StatesInCategory(cat)
		if len(states) == 0 {
			return q, true
		}
		q.Statuses = states
	}
	return q, false
}

// GetReady returns open-category issues with no unresolved blockers,
// ordered by (priority asc, created_at asc).
func (e *Engine) GetReady(ctx context.Context) ([]*types.Issue, error) {
	issues, err := e.store.ReadyIssues(ctx, e.openStates(), e.doneStates())
	if err != nil {
		return nil, err
	}
	if err := e.finalize(ctx, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetBlocked returns open-category issues with at least one unresolved
// blocker, each annotated with the blocking ids.
func (e *Engine) GetBlocked(ctx context.Context) ([]*types.BlockedIssue, error) {
	blocked, err := e.store.BlockedIssues(ctx, e.openStates(), e.doneStates())
	if err != nil {
		return nil, err
	}
	issues := make([]*types.Issue, len(blocked))
	for i := range blocked {
		issues[i] = &blocked[i].Issue
	}
	if err := e.finalize(ctx, issues); err != nil {
		return nil, err
	}
	return blocked, nil
}

// Statistics aggregates the store for vitals displays: counts by status,
// type, and category, plus ready/blocked/unassigned totals.
func (e *Engine) Statistics(ctx context.Context) (*types.Statistics, error) {
	byStatus, byType, total, err := e.store.Statistics(ctx)
	if err != nil {
		return nil, err
	}

	stats := &types.Statistics{
		Total:      total,
		ByStatus:   byStatus,
		ByType:     byType,
		ByCategory: make(map[string]int),
	}
	for status, n := range byStatus {
		stats.ByCategory[string(e.categoryOfStatus(status))] += n
	}

	ready, err := e.GetReady(ctx)
	if err != nil {
		return nil, err
	}
	stats.Ready = len(ready)

	blocked, err := e.GetBlocked(ctx)
	if err != nil {
		return nil, err
	}
	stats.Blocked = len(blocked)

	unassigned := ""
	active := append(append([]string{}, e.openStates()...), e.wipStates()...)
	open, err := e.store.ListIssues(ctx, storage.ListQuery{Statuses: active, Assignee: &unassigned})
	if err != nil {
		return nil, err
	}
	stats.Unassigned = len(open)

	return stats, nil
}

// categoryOfStatus resolves a bare state name to its category without a
// type context. Statistics rows are aggregated across types, so the state
// unions decide; states no template declares fall back to the legacy
// heuristic.
func (e *Engine) categoryOfStatus(status string) types.Category {
	switch {
	case contains(e.registry.DoneStates(), status):
		return types.CategoryDone
	case contains(e.registry.WipStates(), status):
		return types.CategoryWip
	case contains(e.registry.OpenStates(), status):
		return types.CategoryOpen
	}
	return types.LegacyCategory(status)
}

func (e *Engine) openStates() []string {
	if s := e.registry.OpenStates(); len(s) > 0 {
		return s
	}
	return []string{"open"}
}

func (e *Engine) wipStates() []string {
	if s := e.registry.WipStates(); len(s) > 0 {
		return s
	}
	return []string{"in_progress"}
}

func (e *Engine) doneStates() []string {
	if s := e.registry.DoneStates(); len(s) > 0 {
		return s
	}
	return []string{"closed"}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
