package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// insertDependency validates both endpoints, runs the cycle check, and
// inserts the edge. Must run on a transaction connection so the check and
// the insert are atomic.
func insertDependency(ctx context.Context, conn *sql.Conn, dep *types.Dependency) error {
	if dep.FromID == dep.ToID {
		return fmt.Errorf("issue %s cannot depend on itself: %w", dep.FromID, storage.ErrCycle)
	}
	if err := requireIssue(ctx, conn, dep.FromID); err != nil {
		return err
	}
	if err := requireIssue(ctx, conn, dep.ToID); err != nil {
		return err
	}

	// BFS semantics via a recursive CTE: if FromID is already reachable
	// from ToID along blocking edges, the new edge would close a cycle.
	var reachable int
	if err := conn.QueryRowContext(ctx, `
		WITH RECURSIVE reachable AS (
			SELECT ? AS node, 0 AS depth
			UNION ALL
			SELECT d.depends_on_id, r.depth + 1
			FROM reachable r
			JOIN dependencies d ON d.issue_id = r.node
			WHERE d.kind = 'blocks'
			  AND r.depth < 100
		)
		SELECT COUNT(*) FROM reachable WHERE node = ?`,
		dep.ToID, dep.FromID).Scan(&reachable); err != nil {
		return storage.WrapDBError("cycle check", err)
	}
	if reachable > 0 {
		return fmt.Errorf("%s -> %s: %w", dep.FromID, dep.ToID, storage.ErrCycle)
	}

	kind := dep.Kind
	if kind == "" {
		kind = types.DependencyBlocks
	}
	createdAt := dep.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := conn.ExecContext(ctx, `
		INSERT INTO dependencies (issue_id, depends_on_id, kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(issue_id, depends_on_id) DO UPDATE SET kind = excluded.kind`,
		dep.FromID, dep.ToID, kind, createdAt)
	if err != nil {
		return storage.WrapDBError("insert dependency", err)
	}
	return nil
}

// AddDependency inserts one edge with its event, cycle-checked in the same
// transaction.
func (s *Store) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	return withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		if err := insertDependency(ctx, conn, dep); err != nil {
			return err
		}
		return recordEvent(ctx, conn, types.Event{
			IssueID:  dep.FromID,
			Type:     types.EventDependencyAdded,
			Actor:    actor,
			NewValue: dep.ToID,
		})
	})
}

// RemoveDependency deletes one edge and records the event.
func (s *Store) RemoveDependency(ctx context.Context, fromID, toID, actor string) error {
	return withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM dependencies WHERE issue_id = ? AND depends_on_id = ?`, fromID, toID)
		if err != nil {
			return storage.WrapDBError("remove dependency", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storage.WrapDBError("remove dependency", err)
		}
		if n == 0 {
			return fmt.Errorf("dependency %s -> %s: %w", fromID, toID, storage.ErrNotFound)
		}
		return recordEvent(ctx, conn, types.Event{
			IssueID:  fromID,
			Type:     types.EventDependencyRemoved,
			Actor:    actor,
			OldValue: toID,
		})
	})
}

// DependenciesOf returns the outgoing edges of one issue in insertion order.
func (s *Store) DependenciesOf(ctx context.Context, id string) ([]*types.Dependency, error) {
	return s.queryDeps(ctx, `
		SELECT issue_id, depends_on_id, kind, created_at
		FROM dependencies WHERE issue_id = ? ORDER BY created_at`, id)
}

// AllDependencies returns every edge. The critical-path computation
// materializes the DAG from this list.
func (s *Store) AllDependencies(ctx context.Context) ([]*types.Dependency, error) {
	return s.queryDeps(ctx, `
		SELECT issue_id, depends_on_id, kind, created_at
		FROM dependencies ORDER BY issue_id, created_at`)
}

func (s *Store) queryDeps(ctx context.Context, sqlStr string, args ...interface{}) ([]*types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storage.WrapDBError("query dependencies", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Dependency
	for rows.Next() {
		var dep types.Dependency
		if err := rows.Scan(&dep.FromID, &dep.ToID, &dep.Kind, &dep.CreatedAt); err != nil {
			return nil, storage.WrapDBError("scan dependency", err)
		}
		out = append(out, &dep)
	}
	return out, rows.Err()
}

// ReadyIssues returns issues in an open-category state with no blocker
// outside the done category. Empty openStates short-circuits to an empty
// result instead of emitting a malformed IN clause.
func (s *Store) ReadyIssues(ctx context.Context, openStates, doneStates []string) ([]*types.Issue, error) {
	if len(openStates) == 0 {
		return nil, nil
	}

	sqlStr := `
		SELECT ` + issueColumns + ` FROM issues
		WHERE status IN (` + placeholders(len(openStates)) + `)
		  AND NOT EXISTS (
			SELECT 1 FROM dependencies d
			JOIN issues b ON b.id = d.depends_on_id
			WHERE d.issue_id = issues.id` + notInDone(doneStates) + `
		  )
		ORDER BY priority ASC, created_at ASC`

	args := stateArgs(openStates, doneStates)
	return s.queryIssues(ctx, sqlStr, args...)
}

// BlockedIssues returns issues in an open-category state with at least one
// non-done blocker, each with its blocker list.
func (s *Store) BlockedIssues(ctx context.Context, openStates, doneStates []string) ([]*types.BlockedIssue, error) {
	if len(openStates) == 0 {
		return nil, nil
	}

	sqlStr := `
		SELECT ` + issueColumns + ` FROM issues
		WHERE status IN (` + placeholders(len(openStates)) + `)
		  AND EXISTS (
			SELECT 1 FROM dependencies d
			JOIN issues b ON b.id = d.depends_on_id
			WHERE d.issue_id = issues.id` + notInDone(doneStates) + `
		  )
		ORDER BY priority ASC, created_at ASC`

	args := stateArgs(openStates, doneStates)
	issues, err := s.queryIssues(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, nil
	}

	ids := make([]string, len(issues))
	blockerArgs := make([]interface{}, 0, len(issues)+len(doneStates))
	for i, issue := range issues {
		ids[i] = issue.ID
		blockerArgs = append(blockerArgs, issue.ID)
	}
	blockerSQL := `
		SELECT d.issue_id, d.depends_on_id
		FROM dependencies d
		JOIN issues b ON b.id = d.depends_on_id
		WHERE d.issue_id IN (` + placeholders(len(ids)) + `)` + notInDone(doneStates) + `
		ORDER BY d.created_at`
	for _, st := range doneStates {
		blockerArgs = append(blockerArgs, st)
	}

	blockers := make(map[string][]string)
	if err := s.forEachPair(ctx, blockerSQL, blockerArgs, func(id, blocker string) {
		blockers[id] = append(blockers[id], blocker)
	}); err != nil {
		return nil, err
	}

	out := make([]*types.BlockedIssue, len(issues))
	for i, issue := range issues {
		out[i] = &types.BlockedIssue{
			Issue:          *issue,
			Blockers:       blockers[issue.ID],
			BlockedByCount: len(blockers[issue.ID]),
		}
	}
	return out, nil
}

// notInDone renders the blocker status restriction. With no done states
// every blocker counts as blocking.
func notInDone(doneStates []string) string {
	if len(doneStates) == 0 {
		return ""
	}
	return fmt.Sprintf(" AND b.status NOT IN (%s)", placeholders(len(doneStates)))
}

func stateArgs(openStates, doneStates []string) []interface{} {
	args := make([]interface{}, 0, len(openStates)+len(doneStates))
	for _, st := range openStates {
		args = append(args, st)
	}
	for _, st := range doneStates {
		args = append(args, st)
	}
	return args
}
