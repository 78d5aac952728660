package engine

import (
	"context"
	"strings"
	"time"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// maxParentDepth guards the parent-chain cycle walk.
const maxParentDepth = 10

// UpdateIssue applies the request to one issue. When both status and
// fields are supplied, the transition is validated against the merged
// field view and either both persist or neither does. Soft-enforcement
// warnings are returned alongside the updated issue and recorded as
// transition_warning events.
func (e *Engine) UpdateIssue(ctx context.Context, id string, req types.UpdateRequest, actor string) (*types.Issue, []string, error) {
	return e.applyUpdate(ctx, id, req, actor, "")
}

func (e *Engine) applyUpdate(ctx context.Context, id string, req types.UpdateRequest, actor, reason string) (*types.Issue, []string, error) {
	current, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.Empty() {
		if err := e.finalizeOne(ctx, current); err != nil {
			return nil, nil, err
		}
		return current, nil, nil
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, nil, validationf("title cannot be empty")
	}
	if req.Priority != nil && !types.ValidPriority(*req.Priority) {
		return nil, nil, validationf("priority %d out of range %d..%d",
			*req.Priority, types.PriorityHighest, types.PriorityLowest)
	}
	if req.Status != nil && !types.ValidName(*req.Status) {
		return nil, nil, validationf("invalid status name: %q", *req.Status)
	}
	if req.ParentID != nil && *req.ParentID != "" {
		if err := e.checkParentChain(ctx, id, *req.ParentID); err != nil {
			return nil, nil, err
		}
	}

	// Validate the transition against the post-update field view so a
	// single call can both supply the required fields and move the state.
	merged := current.Fields.Merge(req.Fields)
	if err := e.registry.CheckFieldValues(current.Type, req.Fields); err != nil {
		return nil, nil, &ValidationError{Msg: err.Error()}
	}

	var warnings []string
	var events []types.Event
	upd := storage.IssueUpdate{
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Priority:    req.Priority,
		Assignee:    req.Assignee,
		ParentID:    req.ParentID,
	}

	statusChanging := req.Status != nil && *req.Status != current.Status
	if statusChanging {
		to := *req.Status
		result := e.registry.ValidateTransition(current.Type, current.Status, to, merged)
		if !result.Allowed {
			// Nothing persists: neither the fields nor the status.
			return nil, nil, &HardEnforcementError{
				Type:             current.Type,
				From:             current.Status,
				To:               to,
				MissingFields:    result.Missing,
				ValidTransitions: e.registry.GetValidTransitions(current.Type, current.Status, current.Fields),
			}
		}
		warnings = result.Warnings

		upd.Status = req.Status
		events = append(events, types.Event{
			Type:     types.EventStatusChanged,
			Actor:    actor,
			OldValue: current.Status,
			NewValue: to,
			Comment:  reason,
		})
		for _, w := range warnings {
			events = append(events, types.Event{
				Type:     types.EventTransitionWarning,
				Actor:    actor,
				OldValue: current.Status,
				NewValue: to,
				Comment:  w,
			})
		}

		// closed_at tracks the done category: set on entry, cleared on
		// reopen, untouched when moving between done states.
		oldCat := e.registry.CategoryOrLegacy(current.Type, current.Status)
		newCat := e.registry.CategoryOrLegacy(current.Type, to)
		switch {
		case newCat == types.CategoryDone && oldCat != types.CategoryDone:
			now := time.Now()
			upd.SetClosedAt = true
			upd.ClosedAt = &now
		case newCat != types.CategoryDone && current.ClosedAt != nil:
			upd.SetClosedAt = true
			upd.ClosedAt = nil
		}
	}

	if len(req.Fields) > 0 {
		fieldsJSON, err := types.MarshalFields(merged)
		if err != nil {
			return nil, nil, validationf("serializing fields: %v", err)
		}
		upd.FieldsJSON = &fieldsJSON
	}

	if !statusChanging {
		events = append(events, types.Event{
			Type:  types.EventUpdated,
			Actor: actor,
		})
	}

	if err := e.store.UpdateIssue(ctx, id, upd, events); err != nil {
		return nil, nil, err
	}

	updated, err := e.getIssue(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := e.finalizeOne(ctx, updated); err != nil {
		return nil, nil, err
	}
	e.fireAfterMutation(ctx)
	return updated, warnings, nil
}

// checkParentChain rejects self-parenting and any assignment that would
// close a cycle through parent ids.
func (e *Engine) checkParentChain(ctx context.Context, id, newParent string) error {
	if newParent == id {
		return validationf("issue cannot be its own parent")
	}
	cursor := newParent
	for depth := 0; depth < maxParentDepth && cursor != ""; depth++ {
		ancestor, err := e.getIssue(ctx, cursor)
		if err != nil {
			return err
		}
		if ancestor.ParentID == id {
			return validationf("parent %s would create a cycle through %s", newParent, cursor)
		}
		cursor = ancestor.ParentID
	}
	return nil
}
