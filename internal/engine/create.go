package engine

import (
	"context"
	"strings"

	"github.com/weftworks/weft/internal/types"
)

// CreateRequest carries the inputs for a new issue.
type CreateRequest struct {
	Title       string
	Type        string
	Priority    int
	ParentID    string
	Description string
	Notes       string
	Fields      types.FieldMap
	Labels      []string
	DependsOn   []string
	Actor       string
}

// CreateIssue allocates an id, resolves the initial state from the type's
// template, and inserts the issue with its labels and dependencies in one
// transaction. Unknown types start in "open" (legacy tolerance).
func (e *Engine) CreateIssue(ctx context.Context, req CreateRequest) (*types.Issue, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, validationf("title is required")
	}
	if !types.ValidPriority(req.Priority) {
		return nil, validationf("priority %d out of range %d..%d",
			req.Priority, types.PriorityHighest, types.PriorityLowest)
	}
	typeName := req.Type
	if typeName == "" {
		typeName = "task"
	}
	if !types.ValidName(typeName) {
		return nil, validationf("invalid type name: %q", typeName)
	}

	if err := e.registry.CheckFieldValues(typeName, req.Fields); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	if req.ParentID != "" {
		if _, err := e.getIssue(ctx, req.ParentID); err != nil {
			return nil, err
		}
	}
	for _, dep := range req.DependsOn {
		if exists, err := e.store.IssueExists(ctx, dep); err != nil {
			return nil, err
		} else if !exists {
			return nil, &NotFoundError{ID: dep}
		}
	}

	id, err := e.ids.Next(func(candidate string) (bool, error) {
		return e.store.IssueExists(ctx, candidate)
	})
	if err != nil {
		return nil, err
	}

	issue := &types.Issue{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Status:      e.registry.GetInitialState(typeName),
		Priority:    req.Priority,
		Type:        typeName,
		ParentID:    req.ParentID,
		Fields:      req.Fields,
	}
	if err := issue.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	if err := e.store.CreateIssue(ctx, issue, req.Labels, req.DependsOn, req.Actor); err != nil {
		if CodeOf(err) == CodeCycleDetected {
			return nil, &CycleError{From: id}
		}
		return nil, err
	}

	if err := e.finalizeOne(ctx, issue); err != nil {
		return nil, err
	}
	e.fireAfterMutation(ctx)
	return issue, nil
}
