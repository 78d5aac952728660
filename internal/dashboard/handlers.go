package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/types"
)

// actor resolves who performed a mutating request. Local dashboard, so a
// header is trusted as-is.
func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get("X-Weft-Actor")); a != "" {
		return a
	}
	if a := strings.TrimSpace(r.URL.Query().Get("actor")); a != "" {
		return a
	}
	return "dashboard"
}

// parseFilter reads the shared list/search query parameters.
// status_category is first-class alongside literal status.
func parseFilter(r *http.Request) (types.IssueFilter, error) {
	q := r.URL.Query()
	f := types.IssueFilter{
		Status:   q.Get("status"),
		Type:     q.Get("type"),
		ParentID: q.Get("parent_id"),
		Label:    q.Get("label"),
	}
	if cat := q.Get("status_category"); cat != "" {
		switch types.Category(cat) {
		case types.CategoryOpen, types.CategoryWip, types.CategoryDone:
			f.StatusCategory = types.Category(cat)
		default:
			return f, &engine.ValidationError{Msg: "status_category must be open, wip, or done"}
		}
	}
	if q.Has("assignee") {
		a := q.Get("assignee")
		f.Assignee = &a
	}
	var err error
	if f.PriorityMin, err = intParam(q.Get("priority_min")); err != nil {
		return f, &engine.ValidationError{Msg: "priority_min must be an integer"}
	}
	if f.PriorityMax, err = intParam(q.Get("priority_max")); err != nil {
		return f, &engine.ValidationError{Msg: "priority_max must be an integer"}
	}
	f.Limit = intOr(q.Get("limit"), 0)
	f.Offset = intOr(q.Get("offset"), 0)
	return f, nil
}

func intParam(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func intOr(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	issues, err := s.eng.ListIssues(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	include := r.URL.Query().Get("include_transitions") == "1" ||
		r.URL.Query().Get("include_transitions") == "true"
	issue, opts, err := s.eng.GetIssue(r.Context(), r.PathValue("id"), include)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]interface{}{"issue": issue}
	if include {
		if opts == nil {
			opts = []types.TransitionOption{}
		}
		resp["valid_transitions"] = opts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePatchIssue(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed update body: "+err.Error())
		return
	}
	issue, warnings, err := s.eng.UpdateIssue(r.Context(), r.PathValue("id"), req, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]interface{}{"issue": issue}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "malformed comment body: "+err.Error())
		return
	}
	author := body.Author
	if author == "" {
		author = actor(r)
	}
	c, err := s.eng.AddComment(r.Context(), r.PathValue("id"), author, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"comment": c})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	issues, err := s.eng.GetReady(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	blocked, err := s.eng.GetBlocked(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": blocked})
}

func (s *Server) handleCriticalPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.eng.GetCriticalPath(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"path": path})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	days := intOr(r.URL.Query().Get("days"), 30)
	m, err := s.flow.Metrics(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	q := storage.ActivityQuery{
		Actor:     r.URL.Query().Get("actor"),
		EventType: r.URL.Query().Get("event_type"),
		Limit:     intOr(r.URL.Query().Get("limit"), 0),
		Offset:    intOr(r.URL.Query().Get("offset"), 0),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		q.Since = t
	}
	entries, err := s.flow.Activity(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

func (s *Server) handleReleases(w http.ResponseWriter, r *http.Request) {
	include := r.URL.Query().Get("include_released") == "1" ||
		r.URL.Query().Get("include_released") == "true"
	releases, err := s.flow.Releases(r.Context(), include)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"releases": releases})
}

func (s *Server) handleReleaseTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.flow.ReleaseTree(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleBatchClose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs    []string `json:"ids"`
		Status string   `json:"status"`
		Reason string   `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "malformed batch body: "+err.Error())
		return
	}
	if len(body.IDs) == 0 {
		writeBadRequest(w, "ids is required")
		return
	}
	result := s.eng.BatchClose(r.Context(), body.IDs,
		engine.CloseRequest{Status: body.Status, Reason: body.Reason}, actor(r))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs    []string           `json:"ids"`
		Update types.UpdateRequest `json:"update"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "malformed batch body: "+err.Error())
		return
	}
	if len(body.IDs) == 0 {
		writeBadRequest(w, "ids is required")
		return
	}
	result := s.eng.BatchUpdate(r.Context(), body.IDs, body.Update, actor(r))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeBadRequest(w, "q is required")
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	issues, err := s.eng.SearchIssues(r.Context(), query, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

// handleReload busts the template registry cache. The explicit endpoint
// replaces file watching: pack and template edits take effect on the next
// reload call.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.eng.ReloadTemplates()
	warnings := s.eng.Registry().Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"warnings": warnings,
	})
}
