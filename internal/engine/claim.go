package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// ClaimIssue assigns an unassigned, open-category issue to assignee and
// moves it to the first wip state of its type. The write is a single
// conditional UPDATE, so concurrent claimers race safely: exactly one wins
// and the rest get a ConflictError.
func (e *Engine) ClaimIssue(ctx context.Context, id, assignee, actor string) (*types.Issue, error) {
	if assignee == "" {
		return nil, validationf("assignee is required")
	}
	issue, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	target, ok := e.registry.GetFirstStateOfCategory(issue.Type, types.CategoryWip)
	if !ok {
		target = "in_progress"
	}
	sources := e.registry.StatesOfCategory(issue.Type, types.CategoryOpen)
	if len(sources) == 0 {
		sources = []string{"open"}
	}

	err = e.store.TransitionIf(ctx, id, sources, target, true, assignee, types.Event{
		Type:     types.EventClaimed,
		Actor:    actor,
		OldValue: issue.Status,
		NewValue: target,
		Comment:  assignee,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, e.claimConflict(ctx, id)
		}
		return nil, err
	}

	claimed, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.finalizeOne(ctx, claimed); err != nil {
		return nil, err
	}
	e.fireAfterMutation(ctx)
	return claimed, nil
}

// claimConflict re-reads the row to produce a useful conflict message.
func (e *Engine) claimConflict(ctx context.Context, id string) error {
	current, err := e.getIssue(ctx, id)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("cannot claim %s: current state is %s", id, current.Status)
	if current.Assignee != "" {
		msg = fmt.Sprintf("cannot claim %s: already assigned to %s (state %s)",
			id, current.Assignee, current.Status)
	}
	return &ConflictError{ID: id, Msg: msg}
}

// ReleaseClaim returns a claimed issue to its type's initial state and
// clears the assignee. Same optimistic-locking pattern as ClaimIssue, with
// the wip states as the allowed sources.
func (e *Engine) ReleaseClaim(ctx context.Context, id, actor string) (*types.Issue, error) {
	issue, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	target := e.registry.GetInitialState(issue.Type)
	sources := e.registry.StatesOfCategory(issue.Type, types.CategoryWip)
	if len(sources) == 0 {
		sources = []string{"in_progress"}
	}

	err = e.store.TransitionIf(ctx, id, sources, target, false, "", types.Event{
		Type:     types.EventReleased,
		Actor:    actor,
		OldValue: issue.Status,
		NewValue: target,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			current, gerr := e.getIssue(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			return nil, &ConflictError{
				ID:  id,
				Msg: fmt.Sprintf("cannot release %s: current state is %s", id, current.Status),
			}
		}
		return nil, err
	}

	released, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.finalizeOne(ctx, released); err != nil {
		return nil, err
	}
	e.fireAfterMutation(ctx)
	return released, nil
}

// ClaimNextRequest narrows the candidate set for ClaimNext.
type ClaimNextRequest struct {
	Type        string
	PriorityMin *int
	PriorityMax *int
}

// ClaimNext claims the best ready issue for assignee: unassigned, matching
// the constraints, ordered by (priority asc, created_at asc). Losing a
// race on one candidate moves on to the next; each candidate is attempted
// at most once. Returns nil without error when nothing is claimable.
func (e *Engine) ClaimNext(ctx context.Context, assignee string, req ClaimNextRequest, actor string) (*types.Issue, error) {
	if assignee == "" {
		return nil, validationf("assignee is required")
	}

	ready, err := e.GetReady(ctx)
	if err != nil {
		return nil, err
	}

	for _, candidate := range ready {
		if candidate.Assignee != "" {
			continue
		}
		if req.Type != "" && candidate.Type != req.Type {
			continue
		}
		if req.PriorityMin != nil && candidate.Priority < *req.PriorityMin {
			continue
		}
		if req.PriorityMax != nil && candidate.Priority > *req.PriorityMax {
			continue
		}
		claimed, err := e.ClaimIssue(ctx, candidate.ID, assignee, actor)
		if err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				continue // lost the race, try the next candidate
			}
			return nil, err
		}
		return claimed, nil
	}
	return nil, nil
}
