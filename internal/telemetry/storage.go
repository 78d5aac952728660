package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

const storageScopeName = "github.com/weftworks/weft/storage"

// InstrumentedStore wraps storage.Store with OTel tracing and metrics.
// Every method gets a span and is counted in weft.storage.* metrics.
// Use WrapStore to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStore struct {
	inner  storage.Store
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStore(s storage.Store) storage.Store {
	if !Enabled() {
		return s
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("weft.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("weft.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("weft.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	return &InstrumentedStore{
		inner:  s,
		tracer: Tracer(storageScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) Close() error { return s.inner.Close() }

func (s *InstrumentedStore) Path() string { return s.inner.Path() }

// ── Issue CRUD ──────────────────────────────────────────────────────────────

func (s *InstrumentedStore) CreateIssue(ctx context.Context, issue *types.Issue, labels, dependsOn []string, actor string) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.actor", actor),
		attribute.String("weft.issue.type", issue.Type),
	}
	ctx, span, t := s.op(ctx, "CreateIssue", attrs...)
	err := s.inner.CreateIssue(ctx, issue, labels, dependsOn, actor)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	attrs := []attribute.KeyValue{attribute.String("weft.issue.id", id)}
	ctx, span, t := s.op(ctx, "GetIssue", attrs...)
	v, err := s.inner.GetIssue(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) IssueExists(ctx context.Context, id string) (bool, error) {
	attrs := []attribute.KeyValue{attribute.String("weft.issue.id", id)}
	ctx, span, t := s.op(ctx, "IssueExists", attrs...)
	v, err := s.inner.IssueExists(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) UpdateIssue(ctx context.Context, id string, upd storage.IssueUpdate, events []types.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.issue.id", id),
		attribute.Int("weft.event.count", len(events)),
	}
	ctx, span, t := s.op(ctx, "UpdateIssue", attrs...)
	err := s.inner.UpdateIssue(ctx, id, upd, events)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) TransitionIf(ctx context.Context, id string, fromStates []string, toStatus string, requireUnassigned bool, newAssignee string, ev types.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.issue.id", id),
		attribute.String("weft.transition.to", toStatus),
	}
	ctx, span, t := s.op(ctx, "TransitionIf", attrs...)
	err := s.inner.TransitionIf(ctx, id, fromStates, toStatus, requireUnassigned, newAssignee, ev)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) ListIssues(ctx context.Context, q storage.ListQuery) ([]*types.Issue, error) {
	ctx, span, t := s.op(ctx, "ListIssues")
	v, err := s.inner.ListIssues(ctx, q)
	if err == nil {
		span.SetAttributes(attribute.Int("weft.result.count", len(v)))
	}
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) SearchIssues(ctx context.Context, query string, q storage.ListQuery) ([]*types.Issue, error) {
	attrs := []attribute.KeyValue{attribute.String("weft.query", query)}
	ctx, span, t := s.op(ctx, "SearchIssues", attrs...)
	v, err := s.inner.SearchIssues(ctx, query, q)
	if err == nil {
		span.SetAttributes(attribute.Int("weft.result.count", len(v)))
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) Statistics(ctx context.Context) (map[string]int, map[string]int, int, error) {
	ctx, span, t := s.op(ctx, "Statistics")
	byStatus, byType, total, err := s.inner.Statistics(ctx)
	s.done(ctx, span, t, err)
	return byStatus, byType, total, err
}

func (s *InstrumentedStore) Enrich(ctx context.Context, issues []*types.Issue) error {
	attrs := []attribute.KeyValue{attribute.Int("weft.issue.count", len(issues))}
	ctx, span, t := s.op(ctx, "Enrich", attrs...)
	err := s.inner.Enrich(ctx, issues)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) BlockerCounts(ctx context.Context, ids []string, doneStates []string) (map[string]int, error) {
	attrs := []attribute.KeyValue{attribute.Int("weft.issue.count", len(ids))}
	ctx, span, t := s.op(ctx, "BlockerCounts", attrs...)
	v, err := s.inner.BlockerCounts(ctx, ids, doneStates)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Dependencies ────────────────────────────────────────────────────────────

func (s *InstrumentedStore) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.dep.from", dep.FromID),
		attribute.String("weft.dep.to", dep.ToID),
		attribute.String("weft.dep.kind", dep.Kind),
	}
	ctx, span, t := s.op(ctx, "AddDependency", attrs...)
	err := s.inner.AddDependency(ctx, dep, actor)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) RemoveDependency(ctx context.Context, fromID, toID, actor string) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.dep.from", fromID),
		attribute.String("weft.dep.to", toID),
	}
	ctx, span, t := s.op(ctx, "RemoveDependency", attrs...)
	err := s.inner.RemoveDependency(ctx, fromID, toID, actor)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) DependenciesOf(ctx context.Context, id string) ([]*types.Dependency, error) {
	attrs := []attribute.KeyValue{attribute.String("weft.issue.id", id)}
	ctx, span, t := s.op(ctx, "DependenciesOf", attrs...)
	v, err := s.inner.DependenciesOf(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) AllDependencies(ctx context.Context) ([]*types.Dependency, error) {
	ctx, span, t := s.op(ctx, "AllDependencies")
	v, err := s.inner.AllDependencies(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) ReadyIssues(ctx context.Context, openStates, doneStates []string) ([]*types.Issue, error) {
	ctx, span, t := s.op(ctx, "ReadyIssues")
	v, err := s.inner.ReadyIssues(ctx, openStates, doneStates)
	if err == nil {
		span.SetAttributes(attribute.Int("weft.result.count", len(v)))
	}
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) BlockedIssues(ctx context.Context, openStates, doneStates []string) ([]*types.BlockedIssue, error) {
	ctx, span, t := s.op(ctx, "BlockedIssues")
	v, err := s.inner.BlockedIssues(ctx, openStates, doneStates)
	if err == nil {
		span.SetAttributes(attribute.Int("weft.result.count", len(v)))
	}
	s.done(ctx, span, t, err)
	return v, err
}

// ── Events ──────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) ListEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error) {
	attrs := []attribute.KeyValue{attribute.String("weft.issue.id", issueID)}
	ctx, span, t := s.op(ctx, "ListEvents", attrs...)
	v, err := s.inner.ListEvents(ctx, issueID, limit)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) ActivityFeed(ctx context.Context, q storage.ActivityQuery) ([]*types.Event, error) {
	ctx, span, t := s.op(ctx, "ActivityFeed")
	v, err := s.inner.ActivityFeed(ctx, q)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) CompactEvents(ctx context.Context, keep int) (int64, error) {
	attrs := []attribute.KeyValue{attribute.Int("weft.keep", keep)}
	ctx, span, t := s.op(ctx, "CompactEvents", attrs...)
	v, err := s.inner.CompactEvents(ctx, keep)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Comments & labels ───────────────────────────────────────────────────────

func (s *InstrumentedStore) AddComment(ctx context.Context, c *types.Comment, ev types.Event) (int64, error) {
	attrs := []attribute.KeyValue{
		attribute.String("weft.issue.id", c.IssueID),
		attribute.String("weft.actor", c.Author),
	}
	ctx, span, t := s.op(ctx, "AddComment", attrs...)
	v, err := s.inner.AddComment(ctx, c, ev)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) ListComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	attrs := []attribute.KeyValue{attribute.String("weft.issue.id", issueID)}
	ctx, span, t := s.op(ctx, "ListComments", attrs...)
	v, err := s.inner.ListComments(ctx, issueID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) AddLabel(ctx context.Context, issueID, label string, ev types.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.issue.id", issueID),
		attribute.String("weft.label", label),
	}
	ctx, span, t := s.op(ctx, "AddLabel", attrs...)
	err := s.inner.AddLabel(ctx, issueID, label, ev)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) RemoveLabel(ctx context.Context, issueID, label string, ev types.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("weft.issue.id", issueID),
		attribute.String("weft.label", label),
	}
	ctx, span, t := s.op(ctx, "RemoveLabel", attrs...)
	err := s.inner.RemoveLabel(ctx, issueID, label, ev)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Flow metrics ────────────────────────────────────────────────────────────

func (s *InstrumentedStore) ClosuresSince(ctx context.Context, since time.Time, wipStates []string) ([]storage.ClosureTiming, error) {
	ctx, span, t := s.op(ctx, "ClosuresSince")
	v, err := s.inner.ClosuresSince(ctx, since, wipStates)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) ThroughputSince(ctx context.Context, since time.Time) (int, error) {
	ctx, span, t := s.op(ctx, "ThroughputSince")
	v, err := s.inner.ThroughputSince(ctx, since)
	s.done(ctx, span, t, err)
	return v, err
}

// ── Templates & packs ───────────────────────────────────────────────────────

func (s *InstrumentedStore) UpsertTemplateRow(ctx context.Context, row storage.TemplateRow) error {
	attrs := []attribute.KeyValue{attribute.String("weft.template.type", row.Type)}
	ctx, span, t := s.op(ctx, "UpsertTemplateRow", attrs...)
	err := s.inner.UpsertTemplateRow(ctx, row)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) ListTemplateRows(ctx context.Context) ([]storage.TemplateRow, error) {
	ctx, span, t := s.op(ctx, "ListTemplateRows")
	v, err := s.inner.ListTemplateRows(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) UpsertPackRow(ctx context.Context, row storage.PackRow) error {
	attrs := []attribute.KeyValue{attribute.String("weft.pack.name", row.Name)}
	ctx, span, t := s.op(ctx, "UpsertPackRow", attrs...)
	err := s.inner.UpsertPackRow(ctx, row)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) ListPackRows(ctx context.Context) ([]storage.PackRow, error) {
	ctx, span, t := s.op(ctx, "ListPackRows")
	v, err := s.inner.ListPackRows(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

// ── Configuration ───────────────────────────────────────────────────────────

func (s *InstrumentedStore) GetConfig(ctx context.Context, key string) (string, error) {
	attrs := []attribute.KeyValue{attribute.String("weft.config.key", key)}
	ctx, span, t := s.op(ctx, "GetConfig", attrs...)
	v, err := s.inner.GetConfig(ctx, key)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) SetConfig(ctx context.Context, key, value string) error {
	attrs := []attribute.KeyValue{attribute.String("weft.config.key", key)}
	ctx, span, t := s.op(ctx, "SetConfig", attrs...)
	err := s.inner.SetConfig(ctx, key, value)
	s.done(ctx, span, t, err, attrs...)
	return err
}
