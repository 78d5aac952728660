package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// ClosuresSince returns timing data for every issue closed in the window.
// FirstWip is the earliest status_changed or claimed event whose new status
// is one of wipStates; zero when the issue never entered wip.
func (s *Store) ClosuresSince(ctx context.Context, since time.Time, wipStates []string) ([]storage.ClosureTiming, error) {
	sqlStr := `
		SELECT i.id, i.type, i.created_at, i.closed_at, NULL
		FROM issues i
		WHERE i.closed_at IS NOT NULL AND i.closed_at >= ?
		ORDER BY i.closed_at`
	args := []interface{}{since}
	if len(wipStates) > 0 {
		sqlStr = `
		SELECT i.id, i.type, i.created_at, i.closed_at,
			(SELECT MIN(e.created_at) FROM events e
			 WHERE e.issue_id = i.id AND e.event_type IN (?, ?)
			   AND e.new_value IN (` + placeholders(len(wipStates)) + `))
		FROM issues i
		WHERE i.closed_at IS NOT NULL AND i.closed_at >= ?
		ORDER BY i.closed_at`
		args = []interface{}{string(types.EventStatusChanged), string(types.EventClaimed)}
		for _, st := range wipStates {
			args = append(args, st)
		}
		args = append(args, since)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storage.WrapDBError("closures since", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.ClosureTiming
	for rows.Next() {
		var t storage.ClosureTiming
		var firstWip sql.NullTime
		if err := rows.Scan(&t.ID, &t.Type, &t.CreatedAt, &t.ClosedAt, &firstWip); err != nil {
			return nil, storage.WrapDBError("scan closure timing", err)
		}
		if firstWip.Valid {
			t.FirstWip = firstWip.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ThroughputSince counts issues closed in the window.
func (s *Store) ThroughputSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE closed_at IS NOT NULL AND closed_at >= ?`,
		since).Scan(&n)
	if err != nil {
		return 0, storage.WrapDBError("throughput", err)
	}
	return n, nil
}
