package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	"github.com/couchcryptid/flood-risk-monitor/internal/monitor"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor is the scheduler surface exposed to operators.
type Monitor interface {
	sharedobs.ReadinessChecker
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	RunCycle(ctx context.Context) (domain.CycleResult, error)
	LastResult() (domain.CycleResult, bool)
}

// AreaReader looks up a single stored area.
type AreaReader interface {
	GetArea(ctx context.Context, id string) (domain.MonitoredArea, error)
}

// Server exposes health, readiness, metrics, and monitor control endpoints.
type Server struct {
	httpServer *http.Server
	monitor    Monitor
	areas      AreaReader
	runCtx     context.Context
	logger     *slog.Logger
}

// NewServer creates the HTTP server. runCtx bounds a scheduler started through
// POST /monitor/start, which must outlive the request that started it.
func NewServer(runCtx context.Context, addr string, mon Monitor, areas AreaReader, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		monitor: mon,
		areas:   areas,
		runCtx:  runCtx,
		logger:  logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(mon))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/monitor", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/run", s.handleRun)
	})
	r.Get("/areas/{id}", s.handleGetArea)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type statusResponse struct {
	Running    bool                `json:"running"`
	LastResult *domain.CycleResult `json:"last_result,omitempty"`
}

func (s *Server) status() statusResponse {
	resp := statusResponse{Running: s.monitor.IsRunning()}
	if last, ok := s.monitor.LastResult(); ok {
		resp.LastResult = &last
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.monitor.Start(s.runCtx); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.monitor.Stop()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	result, err := s.monitor.RunCycle(r.Context())
	if err != nil {
		s.logger.Warn("manual cycle failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetArea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	area, err := s.areas.GetArea(r.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrAreaNotFound) {
			s.logger.Error("get area failed", "area_id", id, "error", err)
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, monitor.ErrWeatherUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, monitor.ErrCycleInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAreaNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
