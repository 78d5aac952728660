package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// AddComment inserts the comment and its event in one transaction and
// returns the new comment id.
func (s *Store) AddComment(ctx context.Context, c *types.Comment, ev types.Event) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	var id int64
	err := withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		if err := requireIssue(ctx, conn, c.IssueID); err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx, `
			INSERT INTO comments (issue_id, author, text, created_at)
			VALUES (?, ?, ?, ?)`,
			c.IssueID, c.Author, c.Text, c.CreatedAt)
		if err != nil {
			return storage.WrapDBError("insert comment", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return storage.WrapDBError("insert comment", err)
		}
		ev.IssueID = c.IssueID
		return recordEvent(ctx, conn, ev)
	})
	return id, err
}

// ListComments returns an issue's comments, oldest first.
func (s *Store) ListComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, author, text, created_at
		FROM comments WHERE issue_id = ? ORDER BY created_at, id`, issueID)
	if err != nil {
		return nil, storage.WrapDBError("query comments", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Author, &c.Text, &c.CreatedAt); err != nil {
			return nil, storage.WrapDBError("scan comment", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// AddLabel attaches a label, recording the event only when the label was
// actually new.
func (s *Store) AddLabel(ctx context.Context, issueID, label string, ev types.Event) error {
	return withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		if err := requireIssue(ctx, conn, issueID); err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO labels (issue_id, label) VALUES (?, ?)`, issueID, label)
		if err != nil {
			return storage.WrapDBError("insert label", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storage.WrapDBError("insert label", err)
		}
		if n == 0 {
			return nil // already present
		}
		ev.IssueID = issueID
		return recordEvent(ctx, conn, ev)
	})
}

// RemoveLabel detaches a label.
func (s *Store) RemoveLabel(ctx context.Context, issueID, label string, ev types.Event) error {
	return withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM labels WHERE issue_id = ? AND label = ?`, issueID, label)
		if err != nil {
			return storage.WrapDBError("delete label", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storage.WrapDBError("delete label", err)
		}
		if n == 0 {
			return fmt.Errorf("label %q on %s: %w", label, issueID, storage.ErrNotFound)
		}
		ev.IssueID = issueID
		return recordEvent(ctx, conn, ev)
	})
}
