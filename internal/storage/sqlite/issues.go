package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

const issueColumns = `id, title, description, notes, status, priority, type,
	parent_id, assignee, fields, created_at, updated_at, closed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row rowScanner) (*types.Issue, error) {
	var issue types.Issue
	var parentID sql.NullString
	var fieldsJSON string
	var closedAt sql.NullTime

	err := row.Scan(&issue.ID, &issue.Title, &issue.Description, &issue.Notes,
		&issue.Status, &issue.Priority, &issue.Type, &parentID,
		&issue.Assignee, &fieldsJSON, &issue.CreatedAt, &issue.UpdatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	issue.ParentID = parentID.String
	if closedAt.Valid {
		t := closedAt.Time
		issue.ClosedAt = &t
	}
	issue.Fields, err = types.UnmarshalFields(fieldsJSON)
	if err != nil {
		return nil, fmt.Errorf("issue %s has corrupt fields: %w", issue.ID, err)
	}
	return &issue, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// CreateIssue inserts the issue, its labels, and its dependency edges plus
// the created event in one transaction. Each dependency is cycle-checked
// against the edges already committed plus the ones added earlier in this
// call.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue, labels, dependsOn []string, actor string) error {
	if err := issue.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = now
	}

	fieldsJSON, err := types.MarshalFields(issue.Fields)
	if err != nil {
		return fmt.Errorf("serializing fields: %w", err)
	}

	return withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		if issue.ParentID != "" {
			if err := requireIssue(ctx, conn, issue.ParentID); err != nil {
				return fmt.Errorf("parent: %w", err)
			}
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO issues (id, title, description, notes, status, priority, type,
				parent_id, assignee, fields, created_at, updated_at, closed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.Title, issue.Description, issue.Notes, issue.Status,
			issue.Priority, issue.Type, nullable(issue.ParentID), issue.Assignee,
			fieldsJSON, issue.CreatedAt, issue.UpdatedAt, issue.ClosedAt)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return fmt.Errorf("issue %s: %w", issue.ID, storage.ErrExists)
			}
			return storage.WrapDBError("insert issue", err)
		}

		for _, label := range labels {
			if _, err := conn.ExecContext(ctx,
				`INSERT OR IGNORE INTO labels (issue_id, label) VALUES (?, ?)`,
				issue.ID, label); err != nil {
				return storage.WrapDBError("insert label", err)
			}
		}

		for _, target := range dependsOn {
			if err := insertDependency(ctx, conn, &types.Dependency{
				FromID:    issue.ID,
				ToID:      target,
				Kind:      types.DependencyBlocks,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		return recordEvent(ctx, conn, types.Event{
			IssueID:   issue.ID,
			Type:      types.EventCreated,
			Actor:     actor,
			NewValue:  issue.Status,
			CreatedAt: now,
		})
	})
}

// GetIssue returns the bare issue row. Derived attributes are filled by
// Enrich or by the engine.
func (s *Store) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, storage.WrapDBError(fmt.Sprintf("get issue %s", id), err)
	}
	return issue, nil
}

// IssueExists probes for an id without materializing the row.
func (s *Store) IssueExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, storage.WrapDBError("issue exists", err)
	}
	return n > 0, nil
}

// UpdateIssue writes the listed columns and the accompanying events in one
// transaction. Callers see all-or-nothing: a failure writes neither the
// columns nor the events.
func (s *Store) UpdateIssue(ctx context.Context, id string, upd storage.IssueUpdate, events []types.Event) error {
	if upd.Empty() && len(events) == 0 {
		return nil
	}

	var sets []string
	var args []interface{}
	add := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	if upd.Assignee != nil {
		add("assignee", *upd.Assignee)
	}
	if upd.ParentID != nil {
		add("parent_id", nullable(*upd.ParentID))
	}
	if upd.FieldsJSON != nil {
		add("fields", *upd.FieldsJSON)
	}
	if upd.SetClosedAt {
		if upd.ClosedAt != nil {
			add("closed_at", *upd.ClosedAt)
		} else {
			add("closed_at", nil)
		}
	}
	add("updated_at", time.Now())
	args = append(args, id)

	return withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		if upd.ParentID != nil && *upd.ParentID != "" {
			if err := requireIssue(ctx, conn, *upd.ParentID); err != nil {
				return fmt.Errorf("parent: %w", err)
			}
		}
		res, err := conn.ExecContext(ctx,
			`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return storage.WrapDBError("update issue", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storage.WrapDBError("update issue", err)
		}
		if n == 0 {
			return fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
		}
		for _, ev := range events {
			ev.IssueID = id
			if err := recordEvent(ctx, conn, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// TransitionIf is the claim/release primitive: a conditional UPDATE whose
// WHERE clause encodes the optimistic lock. Zero affected rows means the
// issue moved (or was claimed) between the caller's read and this write.
func (s *Store) TransitionIf(ctx context.Context, id string, fromStates []string, toStatus string, requireUnassigned bool, newAssignee string, ev types.Event) error {
	if len(fromStates) == 0 {
		return fmt.Errorf("no source states: %w", storage.ErrConflict)
	}

	where := fmt.Sprintf("id = ? AND status IN (%s)", placeholders(len(fromStates)))
	args := []interface{}{toStatus, newAssignee, time.Now(), id}
	for _, st := range fromStates {
		args = append(args, st)
	}
	if requireUnassigned {
		where += " AND assignee = ''"
	}

	return withTx(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`UPDATE issues SET status = ?, assignee = ?, updated_at = ? WHERE `+where, args...)
		if err != nil {
			return storage.WrapDBError("transition issue", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storage.WrapDBError("transition issue", err)
		}
		if n == 0 {
			return fmt.Errorf("issue %s: %w", id, storage.ErrConflict)
		}
		ev.IssueID = id
		return recordEvent(ctx, conn, ev)
	})
}

// ListIssues runs the filter with parameterized placeholders throughout.
// Results are ordered by (priority asc, created_at asc).
func (s *Store) ListIssues(ctx context.Context, q storage.ListQuery) ([]*types.Issue, error) {
	where, args := whereClauses(q, "")
	sqlStr := `SELECT ` + issueColumns + ` FROM issues`
	if len(where) > 0 {
		sqlStr += ` WHERE ` + strings.Join(where, " AND ")
	}
	sqlStr += ` ORDER BY priority ASC, created_at ASC`
	sqlStr, args = applyLimit(sqlStr, args, q)

	return s.queryIssues(ctx, sqlStr, args...)
}

// whereClauses renders the filter as AND-able SQL fragments. alias prefixes
// column references when the issues table is joined under another name.
func whereClauses(q storage.ListQuery, alias string) ([]string, []interface{}) {
	var where []string
	var args []interface{}
	col := func(name string) string { return alias + name }

	if len(q.Statuses) > 0 {
		where = append(where, fmt.Sprintf("%s IN (%s)", col("status"), placeholders(len(q.Statuses))))
		for _, st := range q.Statuses {
			args = append(args, st)
		}
	}
	if q.Type != "" {
		where = append(where, col("type")+" = ?")
		args = append(args, q.Type)
	}
	if q.Assignee != nil {
		where = append(where, col("assignee")+" = ?")
		args = append(args, *q.Assignee)
	}
	if q.ParentID != "" {
		where = append(where, col("parent_id")+" = ?")
		args = append(args, q.ParentID)
	}
	if q.Label != "" {
		idCol := "issues.id"
		if alias != "" {
			idCol = col("id")
		}
		where = append(where, "EXISTS (SELECT 1 FROM labels l WHERE l.issue_id = "+idCol+" AND l.label = ?)")
		args = append(args, q.Label)
	}
	if q.PriorityMin != nil {
		where = append(where, col("priority")+" >= ?")
		args = append(args, *q.PriorityMin)
	}
	if q.PriorityMax != nil {
		where = append(where, col("priority")+" <= ?")
		args = append(args, *q.PriorityMax)
	}
	return where, args
}

func applyLimit(sqlStr string, args []interface{}, q storage.ListQuery) (string, []interface{}) {
	if q.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, q.Limit)
		if q.Offset > 0 {
			sqlStr += " OFFSET ?"
			args = append(args, q.Offset)
		}
	}
	return sqlStr, args
}

func (s *Store) queryIssues(ctx context.Context, sqlStr string, args ...interface{}) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storage.WrapDBError("query issues", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, storage.WrapDBError("scan issue", err)
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

// Statistics returns counts by status, counts by type, and the total.
func (s *Store) Statistics(ctx context.Context) (map[string]int, map[string]int, int, error) {
	byStatus := make(map[string]int)
	byType := make(map[string]int)
	total := 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, type, COUNT(*) FROM issues GROUP BY status, type`)
	if err != nil {
		return nil, nil, 0, storage.WrapDBError("statistics", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status, typeName string
		var n int
		if err := rows.Scan(&status, &typeName, &n); err != nil {
			return nil, nil, 0, storage.WrapDBError("statistics", err)
		}
		byStatus[status] += n
		byType[typeName] += n
		total += n
	}
	return byStatus, byType, total, rows.Err()
}

// Enrich fills Labels, Blocks, BlockedBy, and Children on the given issues
// with one batched query per relation.
func (s *Store) Enrich(ctx context.Context, issues []*types.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	byID := make(map[string]*types.Issue, len(issues))
	ids := make([]string, 0, len(issues))
	args := make([]interface{}, 0, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
		ids = append(ids, issue.ID)
		args = append(args, issue.ID)
	}
	ph := placeholders(len(ids))

	if err := s.forEachPair(ctx,
		`SELECT issue_id, label FROM labels WHERE issue_id IN (`+ph+`) ORDER BY label`, args,
		func(id, label string) {
			byID[id].Labels = append(byID[id].Labels, label)
		}); err != nil {
		return err
	}

	if err := s.forEachPair(ctx,
		`SELECT issue_id, depends_on_id FROM dependencies WHERE issue_id IN (`+ph+`) ORDER BY created_at`, args,
		func(id, target string) {
			byID[id].BlockedBy = append(byID[id].BlockedBy, target)
		}); err != nil {
		return err
	}

	if err := s.forEachPair(ctx,
		`SELECT depends_on_id, issue_id FROM dependencies WHERE depends_on_id IN (`+ph+`) ORDER BY created_at`, args,
		func(id, source string) {
			byID[id].Blocks = append(byID[id].Blocks, source)
		}); err != nil {
		return err
	}

	return s.forEachPair(ctx,
		`SELECT parent_id, id FROM issues WHERE parent_id IN (`+ph+`) ORDER BY created_at`, args,
		func(parent, child string) {
			byID[parent].Children = append(byID[parent].Children, child)
		})
}

func (s *Store) forEachPair(ctx context.Context, sqlStr string, args []interface{}, visit func(a, b string)) error {
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return storage.WrapDBError("enrich issues", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return storage.WrapDBError("enrich issues", err)
		}
		visit(a, b)
	}
	return rows.Err()
}

// BlockerCounts returns, per issue id, how many of its blockers are in a
// status outside doneStates. One grouped count query for the whole batch.
func (s *Store) BlockerCounts(ctx context.Context, ids []string, doneStates []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	sqlStr := `
		SELECT d.issue_id, COUNT(*)
		FROM dependencies d
		JOIN issues b ON b.id = d.depends_on_id
		WHERE d.issue_id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+len(doneStates))
	for _, id := range ids {
		args = append(args, id)
	}
	if len(doneStates) > 0 {
		sqlStr += fmt.Sprintf(" AND b.status NOT IN (%s)", placeholders(len(doneStates)))
		for _, st := range doneStates {
			args = append(args, st)
		}
	}
	sqlStr += " GROUP BY d.issue_id"

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storage.WrapDBError("blocker counts", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, storage.WrapDBError("blocker counts", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

func requireIssue(ctx context.Context, conn *sql.Conn, id string) error {
	var n int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE id = ?`, id).Scan(&n); err != nil {
		return storage.WrapDBError("check issue", err)
	}
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
