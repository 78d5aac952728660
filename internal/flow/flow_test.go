package flow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/idgen"
	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/storage/sqlite"
	"github.com/weftworks/weft/internal/templates"
	"github.com/weftworks/weft/internal/types"
)

func newTestService(t *testing.T) (*Service, *engine.Engine) {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.New(context.Background(), filepath.Join(dir, "weft.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store, templates.New(dir), idgen.New("wf"))
	return NewService(eng), eng
}

func create(t *testing.T, eng *engine.Engine, title, typ, parent string) *types.Issue {
	t.Helper()
	issue, err := eng.CreateIssue(context.Background(), engine.CreateRequest{
		Title: title, Type: typ, Priority: 2, ParentID: parent, Actor: "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	return issue
}

func closeIssue(t *testing.T, eng *engine.Engine, id string) {
	t.Helper()
	if _, _, err := eng.CloseIssue(context.Background(), id, engine.CloseRequest{}, "test"); err != nil {
		t.Fatal(err)
	}
}

func TestMetricsCountsClosuresInWindow(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	// Claimed then closed: contributes to throughput, lead, and cycle.
	worked := create(t, eng, "worked", "task", "")
	if _, err := eng.ClaimIssue(ctx, worked.ID, "alice", "alice"); err != nil {
		t.Fatal(err)
	}
	closeIssue(t, eng, worked.ID)

	// Closed straight from open: throughput and lead only.
	direct := create(t, eng, "direct", "task", "")
	closeIssue(t, eng, direct.ID)

	// Still open: no contribution.
	create(t, eng, "open", "task", "")

	m, err := svc.Metrics(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if m.Throughput != 2 {
		t.Errorf("throughput = %d, want 2", m.Throughput)
	}
	if m.LeadTime.Count != 2 {
		t.Errorf("lead samples = %d, want 2", m.LeadTime.Count)
	}
	if m.CycleTime.Count != 1 {
		t.Errorf("cycle samples = %d, want 1 (never-wip issue excluded)", m.CycleTime.Count)
	}
	if tm, ok := m.PerType["task"]; !ok || tm.Throughput != 2 {
		t.Errorf("per-type = %+v, want task throughput 2", m.PerType)
	}
}

func TestMetricsDefaultsWindow(t *testing.T) {
	svc, _ := newTestService(t)

	m, err := svc.Metrics(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if m.WindowDays != 30 {
		t.Errorf("default window = %d, want 30", m.WindowDays)
	}
	if m.Throughput != 0 || m.CycleTime.Count != 0 {
		t.Errorf("empty store should report zero metrics: %+v", m)
	}
}

func TestSummarizeMedian(t *testing.T) {
	odd := summarize([]time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour})
	if odd.Median != 2*time.Hour {
		t.Errorf("odd median = %v, want 2h", odd.Median)
	}
	even := summarize([]time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour, 10 * time.Hour})
	if even.Median != (2*time.Hour+3*time.Hour)/2 {
		t.Errorf("even median = %v, want 2h30m", even.Median)
	}
	if even.Mean != 4*time.Hour {
		t.Errorf("mean = %v, want 4h", even.Mean)
	}
}

func TestActivityFeedFilters(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	issue := create(t, eng, "busy", "task", "")
	if _, err := eng.ClaimIssue(ctx, issue.ID, "alice", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AddComment(ctx, issue.ID, "bob", "status?"); err != nil {
		t.Fatal(err)
	}

	all, err := svc.Activity(ctx, storage.ActivityQuery{Since: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 3 {
		t.Fatalf("feed has %d entries, want at least created+claimed+comment", len(all))
	}

	onlyBob, err := svc.Activity(ctx, storage.ActivityQuery{
		Since: time.Now().Add(-time.Hour),
		Actor: "bob",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyBob) != 1 || onlyBob[0].EventType != string(types.EventCommentAdded) {
		t.Errorf("actor filter returned %+v", onlyBob)
	}
}

func TestReleaseTreeCountsLeavesOnly(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	release := create(t, eng, "v1", "release", "")
	epic := create(t, eng, "auth", "epic", release.ID)
	t1 := create(t, eng, "login", "task", epic.ID)
	create(t, eng, "signup", "task", epic.ID)
	loose := create(t, eng, "docs", "task", release.ID)

	closeIssue(t, eng, t1.ID)
	closeIssue(t, eng, loose.ID)

	tree, err := svc.ReleaseTree(ctx, release.ID)
	if err != nil {
		t.Fatal(err)
	}
	// Leaves are login, signup, docs; the epic is a grouping node and must
	// not count as a leaf itself.
	if tree.Leaves != 3 {
		t.Errorf("leaves = %d, want 3", tree.Leaves)
	}
	if tree.DoneLeafs != 2 {
		t.Errorf("done leaves = %d, want 2", tree.DoneLeafs)
	}
	if tree.Progress < 0.66 || tree.Progress > 0.67 {
		t.Errorf("progress = %f, want 2/3", tree.Progress)
	}
	if len(tree.Children) != 2 {
		t.Errorf("root has %d children, want 2", len(tree.Children))
	}
}

func TestReleasesExcludeReleasedByDefault(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	create(t, eng, "v2", "release", "")
	done := create(t, eng, "v1", "release", "")
	closeIssue(t, eng, done.ID)

	active, err := svc.Releases(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Issue.Title != "v2" {
		t.Fatalf("active releases = %d, want just v2", len(active))
	}

	all, err := svc.Releases(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all releases = %d, want 2", len(all))
	}
}
