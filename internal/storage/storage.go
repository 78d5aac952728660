// Package storage defines the persistence contract for weft. The engine is
// the only consumer; every mutating method commits the rows and the
// accompanying events in a single transaction.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/weftworks/weft/internal/types"
)

// Sentinel errors for common database conditions.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an optimistic-locking update matched no rows.
	ErrConflict = errors.New("conflict")

	// ErrCycle indicates a dependency edge would create a cycle.
	ErrCycle = errors.New("dependency cycle detected")

	// ErrExists indicates a unique constraint violation.
	ErrExists = errors.New("already exists")
)

// IssueUpdate lists the columns to write. Nil pointers leave a column
// untouched; SetClosedAt distinguishes clearing closed_at from leaving it.
type IssueUpdate struct {
	Title       *string
	Description *string
	Notes       *string
	Status      *string
	Priority    *int
	Assignee    *string
	ParentID    *string
	FieldsJSON  *string

	SetClosedAt bool
	ClosedAt    *time.Time
}

// Empty reports whether the update writes no columns.
func (u *IssueUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Notes == nil &&
		u.Status == nil && u.Priority == nil && u.Assignee == nil &&
		u.ParentID == nil && u.FieldsJSON == nil && !u.SetClosedAt
}

// ListQuery is the storage-level issue filter. Status expansion from
// categories to concrete state names happens in the engine; the store only
// sees literal state names bound as placeholders.
type ListQuery struct {
	Statuses    []string
	Type        string
	Assignee    *string
	ParentID    string
	Label       string
	PriorityMin *int
	PriorityMax *int
	Limit       int
	Offset      int
}

// ActivityQuery filters the event feed.
type ActivityQuery struct {
	Since     time.Time
	Actor     string
	EventType string
	Limit     int
	Offset    int
}

// ClosureTiming carries the raw timestamps the flow metrics derive from.
// FirstWip is zero when the issue never entered a wip state.
type ClosureTiming struct {
	ID        string
	Type      string
	CreatedAt time.Time
	ClosedAt  time.Time
	FirstWip  time.Time
}

// TemplateRow is one persisted type template definition.
type TemplateRow struct {
	Type      string
	Pack      string
	Def       string
	Builtin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PackRow is one persisted pack definition.
type PackRow struct {
	Name    string
	Version string
	Def     string
	Builtin bool
	Enabled bool
}

// Store is the durable state boundary. Implementations serialize writers;
// readers see snapshot-consistent views and never block writers.
type Store interface {
	Close() error
	Path() string

	// Issues. CreateIssue inserts the issue, its labels, and its dependency
	// edges (cycle-checked) plus a created event in one transaction.
	CreateIssue(ctx context.Context, issue *types.Issue, labels, dependsOn []string, actor string) error
	GetIssue(ctx context.Context, id string) (*types.Issue, error)
	IssueExists(ctx context.Context, id string) (bool, error)
	UpdateIssue(ctx context.Context, id string, upd IssueUpdate, events []types.Event) error
	// TransitionIf is the optimistic-locking primitive behind claim and
	// release: the status/assignee write succeeds only when the current
	// status is one of fromStates (and, when requireUnassigned, assignee is
	// empty). Matching zero rows returns ErrConflict without writing events.
	TransitionIf(ctx context.Context, id string, fromStates []string, toStatus string, requireUnassigned bool, newAssignee string, ev types.Event) error
	ListIssues(ctx context.Context, q ListQuery) ([]*types.Issue, error)
	SearchIssues(ctx context.Context, query string, q ListQuery) ([]*types.Issue, error)
	Statistics(ctx context.Context) (map[string]int, map[string]int, int, error)

	// Enrich populates Labels, Blocks, BlockedBy, and Children on the given
	// issues with batched queries.
	Enrich(ctx context.Context, issues []*types.Issue) error
	// BlockerCounts returns, per issue id in ids, the number of blockers
	// whose status is NOT one of doneStates. One grouped count query.
	BlockerCounts(ctx context.Context, ids []string, doneStates []string) (map[string]int, error)

	// Dependencies.
	AddDependency(ctx context.Context, dep *types.Dependency, actor string) error
	RemoveDependency(ctx context.Context, fromID, toID, actor string) error
	DependenciesOf(ctx context.Context, id string) ([]*types.Dependency, error)
	AllDependencies(ctx context.Context) ([]*types.Dependency, error)
	ReadyIssues(ctx context.Context, openStates, doneStates []string) ([]*types.Issue, error)
	BlockedIssues(ctx context.Context, openStates, doneStates []string) ([]*types.BlockedIssue, error)

	// Events.
	ListEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error)
	ActivityFeed(ctx context.Context, q ActivityQuery) ([]*types.Event, error)
	CompactEvents(ctx context.Context, keep int) (int64, error)

	// Comments and labels.
	AddComment(ctx context.Context, c *types.Comment, ev types.Event) (int64, error)
	ListComments(ctx context.Context, issueID string) ([]*types.Comment, error)
	AddLabel(ctx context.Context, issueID, label string, ev types.Event) error
	RemoveLabel(ctx context.Context, issueID, label string, ev types.Event) error

	// Flow metrics source data. FirstWip is the time of the first
	// status_changed event into any of wipStates.
	ClosuresSince(ctx context.Context, since time.Time, wipStates []string) ([]ClosureTiming, error)
	ThroughputSince(ctx context.Context, since time.Time) (int, error)

	// Template and pack rows (schema v5).
	UpsertTemplateRow(ctx context.Context, row TemplateRow) error
	ListTemplateRows(ctx context.Context) ([]TemplateRow, error)
	UpsertPackRow(ctx context.Context, row PackRow) error
	ListPackRows(ctx context.Context) ([]PackRow, error)

	// Config key/value cell.
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// WrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to ErrNotFound so callers can errors.Is against sentinels.
func WrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
