package sqlite

import (
	"context"
	"database/sql"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

const eventColumns = `id, issue_id, event_type, actor, old_value, new_value, comment, created_at`

func scanEvent(row rowScanner) (*types.Event, error) {
	var ev types.Event
	var evType string
	if err := row.Scan(&ev.ID, &ev.IssueID, &evType, &ev.Actor,
		&ev.OldValue, &ev.NewValue, &ev.Comment, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Type = types.EventType(evType)
	return &ev, nil
}

// ListEvents returns an issue's events, newest first.
func (s *Store) ListEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error) {
	sqlStr := `SELECT ` + eventColumns + ` FROM events WHERE issue_id = ? ORDER BY id DESC`
	args := []interface{}{issueID}
	if limit > 0 {
		sqlStr += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEvents(ctx, sqlStr, args...)
}

// ActivityFeed returns events since a cursor, filterable by actor and event
// type, oldest first so clients can advance their cursor.
func (s *Store) ActivityFeed(ctx context.Context, q storage.ActivityQuery) ([]*types.Event, error) {
	sqlStr := `SELECT ` + eventColumns + ` FROM events WHERE created_at >= ?`
	args := []interface{}{q.Since}
	if q.Actor != "" {
		sqlStr += ` AND actor = ?`
		args = append(args, q.Actor)
	}
	if q.EventType != "" {
		sqlStr += ` AND event_type = ?`
		args = append(args, q.EventType)
	}
	sqlStr += ` ORDER BY id ASC`
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	sqlStr += ` LIMIT ?`
	args = append(args, limit)
	if q.Offset > 0 {
		sqlStr += ` OFFSET ?`
		args = append(args, q.Offset)
	}
	return s.queryEvents(ctx, sqlStr, args...)
}

func (s *Store) queryEvents(ctx context.Context, sqlStr string, args ...interface{}) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storage.WrapDBError("query events", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, storage.WrapDBError("scan event", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// minEventRetention is the floor for per-issue event compaction.
const minEventRetention = 100

// CompactEvents keeps the newest keep events per issue and deletes the
// rest. keep is clamped to the retention floor. Returns deleted row count.
func (s *Store) CompactEvents(ctx context.Context, keep int) (int64, error) {
	if keep < minEventRetention {
		keep = minEventRetention
	}

	var deleted int64
	err := withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			DELETE FROM events WHERE id IN (
				SELECT id FROM (
					SELECT id, ROW_NUMBER() OVER (
						PARTITION BY issue_id ORDER BY id DESC
					) AS rn
					FROM events
				) WHERE rn > ?
			)`, keep)
		if err != nil {
			return storage.WrapDBError("compact events", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}
