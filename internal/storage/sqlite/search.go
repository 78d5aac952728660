package sqlite

import (
	"context"
	"strings"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// SearchIssues runs a full-text MATCH over (title, description) combined
// with the regular filter clauses. An empty query falls back to ListIssues.
func (s *Store) SearchIssues(ctx context.Context, query string, q storage.ListQuery) ([]*types.Issue, error) {
	if strings.TrimSpace(query) == "" {
		return s.ListIssues(ctx, q)
	}

	where, args := whereClauses(q, "i.")
	sqlStr := `
		SELECT ` + prefixedIssueColumns("i") + `
		FROM issues_fts f
		JOIN issues i ON i.rowid = f.rowid
		WHERE issues_fts MATCH ?`
	matchArgs := []interface{}{ftsQuery(query)}
	for _, clause := range where {
		sqlStr += ` AND ` + clause
	}
	matchArgs = append(matchArgs, args...)
	sqlStr += ` ORDER BY rank`
	sqlStr, matchArgs = applyLimit(sqlStr, matchArgs, q)

	return s.queryIssues(ctx, sqlStr, matchArgs...)
}

// ftsQuery quotes each term so user input can't inject FTS5 operators.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func prefixedIssueColumns(alias string) string {
	cols := strings.Split(issueColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
