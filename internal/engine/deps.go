package engine

import (
	"context"
	"errors"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// AddDependency records that fromID is blocked by toID. Self-edges and
// edges that would close a cycle through existing blocks edges are
// rejected. Adding an edge that already exists is a no-op.
func (e *Engine) AddDependency(ctx context.Context, fromID, toID, kind, actor string) (*types.Dependency, error) {
	if fromID == toID {
		return nil, &CycleError{From: fromID, To: toID}
	}
	if kind == "" {
		kind = types.DependencyBlocks
	}

	dep := &types.Dependency{FromID: fromID, ToID: toID, Kind: kind}
	if err := e.store.AddDependency(ctx, dep, actor); err != nil {
		switch {
		case errors.Is(err, storage.ErrCycle):
			return nil, &CycleError{From: fromID, To: toID}
		case errors.Is(err, storage.ErrNotFound):
			return nil, e.missingEndpoint(ctx, fromID, toID)
		}
		return nil, err
	}
	e.fireAfterMutation(ctx)
	return dep, nil
}

// RemoveDependency deletes the edge from fromID to toID.
func (e *Engine) RemoveDependency(ctx context.Context, fromID, toID, actor string) error {
	if err := e.store.RemoveDependency(ctx, fromID, toID, actor); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return validationf("no dependency from %s to %s", fromID, toID)
		}
		return err
	}
	e.fireAfterMutation(ctx)
	return nil
}

// ListDependencies returns every edge touching the issue, in both
// directions.
func (e *Engine) ListDependencies(ctx context.Context, id string) ([]*types.Dependency, error) {
	if _, err := e.getIssue(ctx, id); err != nil {
		return nil, err
	}
	return e.store.DependenciesOf(ctx, id)
}

// missingEndpoint figures out which side of the edge does not exist.
func (e *Engine) missingEndpoint(ctx context.Context, fromID, toID string) error {
	for _, id := range []string{fromID, toID} {
		ok, err := e.store.IssueExists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{ID: id}
		}
	}
	return &NotFoundError{ID: fromID}
}
