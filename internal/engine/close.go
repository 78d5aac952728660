package engine

import (
	"context"
	"fmt"

	"github.com/weftworks/weft/internal/types"
)

// CloseRequest tunes CloseIssue. Status, when set, must be a done-category
// state for the issue's type. Reason is recorded on the status_changed
// event.
type CloseRequest struct {
	Status string
	Reason string
}

// CloseIssue moves an issue to a done-category state. Closing an already
// closed issue is a no-op that preserves closed_at. Without an explicit
// status the first done state of the type is used ("closed" when no
// template covers the type). The state is applied directly even when the
// transition is not declared, so the usual soft warning applies; declared
// hard transitions still enforce their required fields.
func (e *Engine) CloseIssue(ctx context.Context, id string, req CloseRequest, actor string) (*types.Issue, []string, error) {
	issue, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if e.registry.CategoryOrLegacy(issue.Type, issue.Status) == types.CategoryDone {
		if err := e.finalizeOne(ctx, issue); err != nil {
			return nil, nil, err
		}
		return issue, nil, nil
	}

	target := req.Status
	if target != "" {
		if e.registry.CategoryOrLegacy(issue.Type, target) != types.CategoryDone {
			return nil, nil, validationf(
				"close requires a done-category state, %s is not one for type %s", target, issue.Type)
		}
	} else {
		var ok bool
		target, ok = e.registry.GetFirstStateOfCategory(issue.Type, types.CategoryDone)
		if !ok {
			target = "closed"
		}
	}

	return e.applyUpdate(ctx, id, types.UpdateRequest{Status: &target}, actor, req.Reason)
}

// ReopenIssue moves a done-category issue back to the first open state of
// its type (its initial state when that is open, "open" otherwise),
// clearing closed_at.
func (e *Engine) ReopenIssue(ctx context.Context, id, actor string) (*types.Issue, []string, error) {
	issue, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if e.registry.CategoryOrLegacy(issue.Type, issue.Status) != types.CategoryDone {
		return nil, nil, &TransitionNotAllowedError{
			Type: issue.Type,
			From: issue.Status,
			Msg:  fmt.Sprintf("issue %s is not closed (status %s)", id, issue.Status),
		}
	}

	target, ok := e.registry.GetFirstStateOfCategory(issue.Type, types.CategoryOpen)
	if !ok {
		target = "open"
	}

	updated, warnings, err := e.applyUpdate(ctx, id, types.UpdateRequest{Status: &target}, actor, "")
	if err != nil {
		return nil, nil, err
	}
	return updated, warnings, nil
}
