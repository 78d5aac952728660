package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/flow"
	"github.com/weftworks/weft/internal/idgen"
	"github.com/weftworks/weft/internal/storage/sqlite"
	"github.com/weftworks/weft/internal/templates"
	"github.com/weftworks/weft/internal/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine, *Server) {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.New(context.Background(), filepath.Join(dir, "weft.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store, templates.New(dir), idgen.New("wf"))
	srv := New(eng, flow.NewService(eng), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, eng, srv
}

func createIssue(t *testing.T, eng *engine.Engine, title, typ string) *types.Issue {
	t.Helper()
	issue, err := eng.CreateIssue(context.Background(), engine.CreateRequest{
		Title: title, Type: typ, Priority: 2, Actor: "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	return issue
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp
}

func TestListAndFilterIssues(t *testing.T) {
	ts, eng, _ := newTestServer(t)

	createIssue(t, eng, "a bug", "bug")
	task := createIssue(t, eng, "a task", "task")
	wip := "in_progress"
	if _, _, err := eng.UpdateIssue(context.Background(), task.ID, types.UpdateRequest{Status: &wip}, "test"); err != nil {
		t.Fatal(err)
	}

	var body struct {
		Issues []*types.Issue `json:"issues"`
	}
	resp := getJSON(t, ts.URL+"/api/issues", &body)
	if resp.StatusCode != http.StatusOK || len(body.Issues) != 2 {
		t.Fatalf("status %d, %d issues", resp.StatusCode, len(body.Issues))
	}

	body.Issues = nil
	getJSON(t, ts.URL+"/api/issues?status_category=wip", &body)
	if len(body.Issues) != 1 || body.Issues[0].ID != task.ID {
		t.Errorf("wip filter returned %d issues", len(body.Issues))
	}

	resp = getJSON(t, ts.URL+"/api/issues?status_category=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad category returned %d, want 400", resp.StatusCode)
	}
}

func TestGetIssueEnvelopes(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	bug := createIssue(t, eng, "lookup", "bug")

	var body struct {
		Issue            *types.Issue             `json:"issue"`
		ValidTransitions []types.TransitionOption `json:"valid_transitions"`
	}
	getJSON(t, ts.URL+"/api/issue/"+bug.ID+"?include_transitions=1", &body)
	if body.Issue == nil || body.Issue.ID != bug.ID {
		t.Fatal("issue missing from response")
	}
	if len(body.ValidTransitions) != 2 {
		t.Errorf("transitions = %d, want 2 out of triage", len(body.ValidTransitions))
	}

	var envelope errorEnvelope
	resp := getJSON(t, ts.URL+"/api/issue/wf-nothere1", &envelope)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing issue returned %d, want 404", resp.StatusCode)
	}
	if envelope.Code != engine.CodeNotFound {
		t.Errorf("code = %q, want NOT_FOUND", envelope.Code)
	}
}

func TestPatchHardEnforcementEnvelope(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	bug := createIssue(t, eng, "gated", "bug")
	ctx := context.Background()
	for _, st := range []string{"confirmed", "fixing", "verifying"} {
		s := st
		if _, _, err := eng.UpdateIssue(ctx, bug.ID, types.UpdateRequest{Status: &s}, "test"); err != nil {
			t.Fatal(err)
		}
	}

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/issue/"+bug.ID,
		strings.NewReader(`{"status":"closed"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("blocked close returned %d, want 409", resp.StatusCode)
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Code != engine.CodeHardEnforcement {
		t.Errorf("code = %q, want HARD_ENFORCEMENT", envelope.Code)
	}
	if envelope.Details["hint"] == nil || envelope.Details["missing_fields"] == nil ||
		envelope.Details["valid_transitions"] == nil {
		t.Errorf("details missing self-correction payload: %v", envelope.Details)
	}
}

func TestPatchAppliesUpdate(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	task := createIssue(t, eng, "rename me", "task")

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/issue/"+task.ID,
		strings.NewReader(`{"title":"renamed","priority":0}`))
	req.Header.Set("X-Weft-Actor", "alice")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch returned %d", resp.StatusCode)
	}

	got, _, err := eng.GetIssue(context.Background(), task.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "renamed" || got.Priority != 0 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestBatchCloseEndpoint(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	a := createIssue(t, eng, "a", "task")
	b := createIssue(t, eng, "b", "task")

	payload := fmt.Sprintf(`{"ids":["%s","%s","wf-missing1"]}`, a.ID, b.ID)
	resp, err := http.Post(ts.URL+"/api/batch/close", "application/json", bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var result types.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Succeeded) != 2 || len(result.Failed) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	hit := createIssue(t, eng, "flaky reconnect logic", "bug")
	createIssue(t, eng, "unrelated", "task")

	resp, err := http.Post(ts.URL+"/api/search?q=reconnect", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Issues []*types.Issue `json:"issues"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Issues) != 1 || body.Issues[0].ID != hit.ID {
		t.Errorf("search returned %d issues", len(body.Issues))
	}

	resp2, err := http.Post(ts.URL+"/api/search", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query returned %d, want 400", resp2.StatusCode)
	}
}

func TestReadyBlockedCriticalPath(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	ctx := context.Background()

	blocker := createIssue(t, eng, "blocker", "task")
	dependent, err := eng.CreateIssue(ctx, engine.CreateRequest{
		Title: "dependent", Type: "task", Priority: 2,
		DependsOn: []string{blocker.ID}, Actor: "test",
	})
	if err != nil {
		t.Fatal(err)
	}

	var ready struct {
		Issues []*types.Issue `json:"issues"`
	}
	getJSON(t, ts.URL+"/api/ready", &ready)
	for _, issue := range ready.Issues {
		if issue.ID == dependent.ID {
			t.Error("blocked issue listed as ready")
		}
	}

	var blocked struct {
		Issues []*types.BlockedIssue `json:"issues"`
	}
	getJSON(t, ts.URL+"/api/blocked", &blocked)
	if len(blocked.Issues) != 1 || blocked.Issues[0].ID != dependent.ID {
		t.Errorf("blocked = %+v", blocked.Issues)
	}

	var path struct {
		Path []*types.Issue `json:"path"`
	}
	getJSON(t, ts.URL+"/api/critical-path", &path)
	if len(path.Path) != 2 {
		t.Errorf("critical path has %d issues, want 2", len(path.Path))
	}
}

func TestMetricsAndActivityEndpoints(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	task := createIssue(t, eng, "shipped", "task")
	if _, _, err := eng.CloseIssue(context.Background(), task.ID, engine.CloseRequest{}, "test"); err != nil {
		t.Fatal(err)
	}

	var metrics struct {
		Throughput int `json:"throughput"`
	}
	getJSON(t, ts.URL+"/api/metrics?days=7", &metrics)
	if metrics.Throughput != 1 {
		t.Errorf("throughput = %d, want 1", metrics.Throughput)
	}

	since := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	var activity struct {
		Events []json.RawMessage `json:"events"`
	}
	getJSON(t, ts.URL+"/api/activity?since="+since, &activity)
	if len(activity.Events) == 0 {
		t.Error("activity feed empty after mutations")
	}

	resp := getJSON(t, ts.URL+"/api/activity?since=yesterday", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad since returned %d, want 400", resp.StatusCode)
	}
}

func TestReleaseEndpoints(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	ctx := context.Background()

	rel := createIssue(t, eng, "v1", "release")
	child, err := eng.CreateIssue(ctx, engine.CreateRequest{
		Title: "work", Type: "task", Priority: 2, ParentID: rel.ID, Actor: "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := eng.CloseIssue(ctx, child.ID, engine.CloseRequest{}, "test"); err != nil {
		t.Fatal(err)
	}

	var releases struct {
		Releases []*flow.ReleaseSummary `json:"releases"`
	}
	getJSON(t, ts.URL+"/api/releases", &releases)
	if len(releases.Releases) != 1 || releases.Releases[0].Progress != 1.0 {
		t.Errorf("releases = %+v", releases.Releases)
	}

	var tree flow.TreeNode
	getJSON(t, ts.URL+"/api/release/"+rel.ID+"/tree", &tree)
	if tree.Issue == nil || tree.Issue.ID != rel.ID || tree.Leaves != 1 {
		t.Errorf("tree = %+v", tree)
	}
}

func TestHealthAndIndex(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var health map[string]string
	resp := getJSON(t, ts.URL+"/healthz", &health)
	if resp.StatusCode != http.StatusOK || health["status"] != "ok" {
		t.Errorf("healthz = %d %v", resp.StatusCode, health)
	}

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), "<title>weft</title>") {
		t.Error("index page not served")
	}
}

func TestReloadEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/reload", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Reloaded bool `json:"reloaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Reloaded {
		t.Error("reload did not report success")
	}
}

func TestEventStreamDeliversChanges(t *testing.T) {
	ts, _, srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	// First line is the stream-online comment.
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(line, ": stream online") {
		t.Fatalf("first line = %q", line)
	}

	// Give the subscriber a moment to register, then publish.
	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.NotifyChange()
	}()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before change event: %v", err)
		}
		if strings.TrimSpace(line) == "event: change" {
			return
		}
	}
}
