// Package httpapi exposes the HTTP trigger surface: one gated GET endpoint
// per scheduled job, invoked by the external clock, plus a couple of small
// operational reads. The handlers hold no business logic beyond rendering
// run reports.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"pulsewire/internal/cache"
	"pulsewire/internal/jobs"
	"pulsewire/internal/reading"
	"pulsewire/internal/trigger"
)

// SnapshotReader is the read side of the best-effort cache, served for
// operational inspection.
type SnapshotReader interface {
	Get(ctx context.Context, key string) (*reading.Snapshot, error)
}

// Server routes trigger requests to jobs.
type Server struct {
	gate      *trigger.Gate
	registry  *jobs.Registry
	snapshots SnapshotReader
	now       func() time.Time
	logger    zerolog.Logger
	router    chi.Router
}

// NewServer wires the trigger surface.
func NewServer(gate *trigger.Gate, registry *jobs.Registry, snapshots SnapshotReader, logger zerolog.Logger) *Server {
	s := &Server{
		gate:      gate,
		registry:  registry,
		snapshots: snapshots,
		now:       time.Now,
		logger:    logger.With().Str("component", "httpapi").Logger(),
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/jobs", s.withGate(s.handleListJobs))
	r.Get("/jobs/{name}/run", s.withGate(s.handleRunJob))
	r.Get("/jobs/{name}/snapshot", s.withGate(s.handleSnapshot))
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// withGate enforces the trigger credential before any handler side effect.
// Unauthorized and misconfigured outcomes stay distinguishable: a bad caller
// gets 401, a deployment without a secret gets 500.
func (s *Server) withGate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch decision := s.gate.Authorize(r); decision {
		case trigger.Authorized:
			next(w, r)
		case trigger.Misconfigured:
			s.logger.Error().Str("path", r.URL.Path).Msg("trigger secret not configured, rejecting all invocations")
			s.writeGateReport(w, r, http.StatusInternalServerError, decision)
		default:
			s.logger.Warn().Str("path", r.URL.Path).Msg("trigger rejected")
			s.writeGateReport(w, r, http.StatusUnauthorized, decision)
		}
	}
}

func (s *Server) writeGateReport(w http.ResponseWriter, r *http.Request, status int, decision trigger.Decision) {
	// Only job routes carry a name; everywhere else a run report would
	// render with empty fields, so those get a plain error body.
	name := chi.URLParam(r, "name")
	if name == "" {
		writeJSON(w, status, map[string]string{"error": decision.String()})
		return
	}
	report := jobs.NewUnauthorizedReport(name, decision.String(), s.now())
	writeJSON(w, status, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"jobs": s.registry.Names()})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := s.registry.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job: " + name})
		return
	}

	report := job.Run(r.Context())

	// Every anticipated branch is a completed run: no data, no content, and
	// delivery failure all render as 200. Only adapter failures outside
	// their contract become 500s.
	status := http.StatusOK
	if report.Outcome == jobs.OutcomeError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshot cache not configured"})
		return
	}

	name := chi.URLParam(r, "name")
	snap, err := s.snapshots.Get(r.Context(), name)
	if errors.Is(err, cache.ErrMiss) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached snapshot for " + name})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"job": name, "readings": snap.Readings()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
