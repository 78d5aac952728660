// Package dashboard serves the local web UI and its JSON API. Every
// endpoint is a thin call into the engine or the flow service; the server
// holds no state of its own beyond the SSE subscriber set. It binds to
// loopback only and relies on local-OS isolation instead of authentication.
package dashboard

import (
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/flow"
	"github.com/weftworks/weft/internal/telemetry"
)

//go:embed assets/index.html
var indexHTML []byte

// Server is the dashboard HTTP surface for one project.
type Server struct {
	eng    *engine.Engine
	flow   *flow.Service
	log    *slog.Logger
	broker *broker

	heartbeatInterval time.Duration
}

// New returns a dashboard server over the engine. logger may not be nil;
// pass slog.Default() when no rotation setup applies.
func New(eng *engine.Engine, flowSvc *flow.Service, logger *slog.Logger) *Server {
	return &Server{
		eng:               eng,
		flow:              flowSvc,
		log:               logger,
		broker:            newBroker(),
		heartbeatInterval: 30 * time.Second,
	}
}

// NotifyChange pushes a change event to all SSE subscribers. Wire it into
// the engine's AfterMutation hook alongside summary regeneration.
func (s *Server) NotifyChange() {
	s.broker.publish(ChangeEvent{Kind: "change", At: time.Now().UTC()})
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /api/issues", s.handleListIssues)
	mux.HandleFunc("GET /api/issue/{id}", s.handleGetIssue)
	mux.HandleFunc("PATCH /api/issue/{id}", s.handlePatchIssue)
	mux.HandleFunc("POST /api/issue/{id}/comments", s.handleAddComment)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.HandleFunc("GET /api/blocked", s.handleBlocked)
	mux.HandleFunc("GET /api/critical-path", s.handleCriticalPath)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/releases", s.handleReleases)
	mux.HandleFunc("GET /api/release/{id}/tree", s.handleReleaseTree)
	mux.HandleFunc("POST /api/batch/close", s.handleBatchClose)
	mux.HandleFunc("POST /api/batch/update", s.handleBatchUpdate)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	return telemetry.HTTPMiddleware(s.logRequests(mux))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
