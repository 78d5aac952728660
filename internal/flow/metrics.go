// Package flow computes read-side analytics over the issue store: flow
// metrics (throughput, cycle time, lead time), the activity feed, and
// release progress trees. Everything here is derived; nothing writes.
package flow

import (
	"context"
	"sort"
	"time"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/storage"
)

// Service answers analytics queries against one project's engine.
type Service struct {
	eng *engine.Engine
}

// NewService returns a flow service over the engine.
func NewService(eng *engine.Engine) *Service {
	return &Service{eng: eng}
}

// DurationStats summarizes a set of durations. Zero Count means no samples;
// mean and median are zero in that case.
type DurationStats struct {
	Count  int           `json:"count"`
	Mean   time.Duration `json:"mean"`
	Median time.Duration `json:"median"`
}

// MeanHours reports the mean in fractional hours for display and JSON.
func (s DurationStats) MeanHours() float64 { return s.Mean.Hours() }

// MedianHours reports the median in fractional hours.
func (s DurationStats) MedianHours() float64 { return s.Median.Hours() }

// TypeMetrics is the per-type slice of the window.
type TypeMetrics struct {
	Throughput int           `json:"throughput"`
	CycleTime  DurationStats `json:"cycle_time"`
	LeadTime   DurationStats `json:"lead_time"`
}

// Metrics is the flow report for one trailing window.
type Metrics struct {
	WindowDays int                    `json:"window_days"`
	Since      time.Time              `json:"since"`
	Throughput int                    `json:"throughput"`
	CycleTime  DurationStats          `json:"cycle_time"`
	LeadTime   DurationStats          `json:"lead_time"`
	PerType    map[string]TypeMetrics `json:"per_type"`
}

// Metrics computes throughput and timing stats for issues closed within the
// trailing window. Cycle time runs from the first entry into a wip state
// (taken from the event log) to closed_at; issues that were closed without
// ever entering wip contribute to throughput and lead time but not to cycle
// time. Lead time runs from created_at to closed_at.
func (s *Service) Metrics(ctx context.Context, days int) (*Metrics, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	closures, err := s.eng.Store().ClosuresSince(ctx, since, s.eng.Registry().WipStates())
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		WindowDays: days,
		Since:      since,
		Throughput: len(closures),
		PerType:    make(map[string]TypeMetrics),
	}

	var cycles, leads []time.Duration
	perTypeCycles := make(map[string][]time.Duration)
	perTypeLeads := make(map[string][]time.Duration)
	perTypeCount := make(map[string]int)

	for _, c := range closures {
		perTypeCount[c.Type]++

		lead := c.ClosedAt.Sub(c.CreatedAt)
		leads = append(leads, lead)
		perTypeLeads[c.Type] = append(perTypeLeads[c.Type], lead)

		if !c.FirstWip.IsZero() {
			cycle := c.ClosedAt.Sub(c.FirstWip)
			if cycle < 0 {
				cycle = 0
			}
			cycles = append(cycles, cycle)
			perTypeCycles[c.Type] = append(perTypeCycles[c.Type], cycle)
		}
	}

	m.CycleTime = summarize(cycles)
	m.LeadTime = summarize(leads)
	for typ, n := range perTypeCount {
		m.PerType[typ] = TypeMetrics{
			Throughput: n,
			CycleTime:  summarize(perTypeCycles[typ]),
			LeadTime:   summarize(perTypeLeads[typ]),
		}
	}
	return m, nil
}

// Activity returns events matching the query, oldest first.
func (s *Service) Activity(ctx context.Context, q storage.ActivityQuery) ([]*ActivityEntry, error) {
	events, err := s.eng.ActivityFeed(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*ActivityEntry, len(events))
	for i, ev := range events {
		out[i] = &ActivityEntry{
			IssueID:   ev.IssueID,
			EventType: string(ev.Type),
			Actor:     ev.Actor,
			OldValue:  ev.OldValue,
			NewValue:  ev.NewValue,
			Comment:   ev.Comment,
			CreatedAt: ev.CreatedAt,
		}
	}
	return out, nil
}

// ActivityEntry is one feed row, flattened for JSON consumers.
type ActivityEntry struct {
	IssueID   string    `json:"issue_id"`
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor,omitempty"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// summarize computes count, mean, and median. The median of an even sample
// is the mean of the two central values.
func summarize(samples []time.Duration) DurationStats {
	if len(samples) == 0 {
		return DurationStats{}
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	n := len(sorted)
	var median time.Duration
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return DurationStats{
		Count:  n,
		Mean:   total / time.Duration(n),
		Median: median,
	}
}
