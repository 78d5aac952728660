package engine

import (
	"context"
	"strings"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// AddComment appends a comment to the issue and records a comment_added
// event in the same transaction.
func (e *Engine) AddComment(ctx context.Context, id, author, text string) (*types.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, validationf("comment text cannot be empty")
	}
	if _, err := e.getIssue(ctx, id); err != nil {
		return nil, err
	}

	c := &types.Comment{IssueID: id, Author: author, Text: text}
	commentID, err := e.store.AddComment(ctx, c, types.Event{
		Type:    types.EventCommentAdded,
		Actor:   author,
		Comment: text,
	})
	if err != nil {
		return nil, err
	}
	c.ID = commentID
	e.fireAfterMutation(ctx)
	return c, nil
}

// ListComments returns the issue's comments oldest first.
func (e *Engine) ListComments(ctx context.Context, id string) ([]*types.Comment, error) {
	if _, err := e.getIssue(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListComments(ctx, id)
}

// AddLabel attaches a label. Re-adding an existing label is a no-op and
// records no event.
func (e *Engine) AddLabel(ctx context.Context, id, label, actor string) error {
	if !types.ValidName(label) {
		return validationf("invalid label name: %q", label)
	}
	if _, err := e.getIssue(ctx, id); err != nil {
		return err
	}
	if err := e.store.AddLabel(ctx, id, label, types.Event{
		Type:     types.EventLabelAdded,
		Actor:    actor,
		NewValue: label,
	}); err != nil {
		return err
	}
	e.fireAfterMutation(ctx)
	return nil
}

// RemoveLabel detaches a label; removing a label the issue does not carry
// is a validation error.
func (e *Engine) RemoveLabel(ctx context.Context, id, label, actor string) error {
	if _, err := e.getIssue(ctx, id); err != nil {
		return err
	}
	err := e.store.RemoveLabel(ctx, id, label, types.Event{
		Type:     types.EventLabelRemoved,
		Actor:    actor,
		OldValue: label,
	})
	if err != nil {
		if CodeOf(err) == CodeNotFound {
			return validationf("issue %s does not carry label %q", id, label)
		}
		return err
	}
	e.fireAfterMutation(ctx)
	return nil
}

// ListEvents returns the issue's audit trail, newest first.
func (e *Engine) ListEvents(ctx context.Context, id string, limit int) ([]*types.Event, error) {
	if _, err := e.getIssue(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListEvents(ctx, id, limit)
}

// ActivityFeed returns events across all issues matching the query, oldest
// first so consumers can tail it.
func (e *Engine) ActivityFeed(ctx context.Context, q storage.ActivityQuery) ([]*types.Event, error) {
	return e.store.ActivityFeed(ctx, q)
}

// CompactEvents trims each issue's event history to the newest keep
// entries, returning the number of rows removed.
func (e *Engine) CompactEvents(ctx context.Context, keep int) (int64, error) {
	return e.store.CompactEvents(ctx, keep)
}
