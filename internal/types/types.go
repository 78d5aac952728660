// Package types defines the core data structures for weft.
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Category buckets every workflow state into one of three phases.
// Every state of every type maps to exactly one category.
type Category string

const (
	CategoryOpen Category = "open"
	CategoryWip  Category = "wip"
	CategoryDone Category = "done"
)

// Valid returns true for one of the three defined categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryOpen, CategoryWip, CategoryDone:
		return true
	}
	return false
}

// ParseCategory maps a string to a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// legacyDoneStates are status names treated as done when no template
// covers the issue's type.
var legacyDoneStates = map[string]bool{
	"closed":    true,
	"done":      true,
	"resolved":  true,
	"wont_fix":  true,
	"cancelled": true,
	"archived":  true,
}

// LegacyCategory infers a category for a status with no template backing.
// Unknown names default to open so untracked issues stay visible.
func LegacyCategory(status string) Category {
	switch {
	case status == "in_progress":
		return CategoryWip
	case legacyDoneStates[status]:
		return CategoryDone
	default:
		return CategoryOpen
	}
}

// nameRe constrains state and type names. Enforced at template parse time
// and again before names are interpolated into IN clauses.
var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidName reports whether s is a legal state or type name.
func ValidName(s string) bool {
	return nameRe.MatchString(s)
}

// Priority bounds. 0 is the most urgent.
const (
	PriorityHighest = 0
	PriorityLowest  = 4
)

// ValidPriority reports whether p is within the accepted range.
func ValidPriority(p int) bool {
	return p >= PriorityHighest && p <= PriorityLowest
}

// Issue is the central work item.
//
// Status is a per-type state name; StatusCategory is derived on read from
// the template registry (or the legacy heuristic). Labels, Blocks,
// BlockedBy, Children and IsReady are derived and populated only by read
// paths that assemble full issues.
type Issue struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Status      string   `json:"status"`
	Priority    int      `json:"priority"`
	Type        string   `json:"type"`
	ParentID    string   `json:"parent_id,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Fields      FieldMap `json:"fields,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	StatusCategory Category `json:"status_category,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	Blocks         []string `json:"blocks,omitempty"`
	BlockedBy      []string `json:"blocked_by,omitempty"`
	Children       []string `json:"children,omitempty"`
	IsReady        bool     `json:"is_ready"`
}

const (
	maxTitleLen       = 500
	maxDescriptionLen = 100 * 1024
	maxNotesLen       = 100 * 1024
)

// Validate checks structural invariants that hold regardless of templates.
func (i *Issue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(i.Title) > maxTitleLen {
		return fmt.Errorf("title exceeds %d characters", maxTitleLen)
	}
	if len(i.Description) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d bytes", maxDescriptionLen)
	}
	if len(i.Notes) > maxNotesLen {
		return fmt.Errorf("notes exceeds %d bytes", maxNotesLen)
	}
	if !ValidPriority(i.Priority) {
		return fmt.Errorf("priority %d out of range %d..%d", i.Priority, PriorityHighest, PriorityLowest)
	}
	if i.Type != "" && !ValidName(i.Type) {
		return fmt.Errorf("invalid type name: %q", i.Type)
	}
	if i.Status != "" && !ValidName(i.Status) {
		return fmt.Errorf("invalid status name: %q", i.Status)
	}
	if i.ParentID == i.ID && i.ID != "" {
		return fmt.Errorf("issue cannot be its own parent")
	}
	return nil
}

// DependencyBlocks is the default dependency kind: from is blocked by to.
// Only blocks edges participate in readiness and cycle detection.
const DependencyBlocks = "blocks"

// Dependency is a directed edge: FromID depends on (is blocked by) ToID.
type Dependency struct {
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType identifies an audit log entry kind.
type EventType string

const (
	EventCreated           EventType = "created"
	EventStatusChanged     EventType = "status_changed"
	EventClosed            EventType = "closed"
	EventReopened          EventType = "reopened"
	EventClaimed           EventType = "claimed"
	EventReleased          EventType = "released"
	EventUpdated           EventType = "updated"
	EventTransitionWarning EventType = "transition_warning"
	EventCommentAdded      EventType = "comment_added"
	EventLabelAdded        EventType = "label_added"
	EventLabelRemoved      EventType = "label_removed"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
)

// Event is one append-only audit log entry. Events are never modified and
// only removed by bounded compaction.
type Event struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Type      EventType `json:"event_type"`
	Actor     string    `json:"actor,omitempty"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a user- or agent-authored note on an issue.
type Comment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueFilter narrows list and search queries. Zero values mean "no
// constraint"; Assignee distinguishes nil (any) from "" (unassigned).
type IssueFilter struct {
	Status         string   `json:"status,omitempty"`
	StatusCategory Category `json:"status_category,omitempty"`
	Type           string   `json:"type,omitempty"`
	Assignee       *string  `json:"assignee,omitempty"`
	ParentID       string   `json:"parent_id,omitempty"`
	Label          string   `json:"label,omitempty"`
	PriorityMin    *int     `json:"priority_min,omitempty"`
	PriorityMax    *int     `json:"priority_max,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Offset         int      `json:"offset,omitempty"`
}

// UpdateRequest carries the mutable subset of an issue for UpdateIssue.
// Pointer fields distinguish "leave unchanged" from "set to zero value".
type UpdateRequest struct {
	Status      *string  `json:"status,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Assignee    *string  `json:"assignee,omitempty"`
	Description *string  `json:"description,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	ParentID    *string  `json:"parent_id,omitempty"`
	Fields      FieldMap `json:"fields,omitempty"`
}

// Empty reports whether the request changes nothing.
func (u *UpdateRequest) Empty() bool {
	return u.Status == nil && u.Priority == nil && u.Title == nil &&
		u.Assignee == nil && u.Description == nil && u.Notes == nil &&
		u.ParentID == nil && len(u.Fields) == 0
}

// BatchFailure reports one failed id within a batch operation.
type BatchFailure struct {
	ID               string             `json:"id"`
	Error            string             `json:"error"`
	Code             string             `json:"code,omitempty"`
	ValidTransitions []TransitionOption `json:"valid_transitions,omitempty"`
}

// BatchWarning carries soft-enforcement warnings for one id.
type BatchWarning struct {
	ID       string   `json:"id"`
	Warnings []string `json:"warnings"`
}

// BatchResult is the per-id outcome of BatchClose/BatchUpdate. A failure on
// one id never aborts the rest.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
	Warnings  []BatchWarning `json:"warnings,omitempty"`
}

// BlockedIssue pairs an issue with the ids currently blocking it.
type BlockedIssue struct {
	Issue
	BlockedByCount int      `json:"blocked_by_count"`
	Blockers       []string `json:"blockers"`
}

// Statistics summarizes the store for vitals displays.
type Statistics struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	ByType     map[string]int `json:"by_type"`
	ByStatus   map[string]int `json:"by_status"`
	Ready      int            `json:"ready"`
	Blocked    int            `json:"blocked"`
	Unassigned int            `json:"unassigned"`
}
