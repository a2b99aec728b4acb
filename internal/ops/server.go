// Package ops exposes the worker's operational HTTP surface: liveness,
// readiness, Prometheus metrics, and run progress snapshots.
package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
	"github.com/doublexl-digital/cloudflare-crawler/internal/metrics"
	"github.com/doublexl-digital/cloudflare-crawler/internal/middleware"
	"github.com/doublexl-digital/cloudflare-crawler/internal/store"
)

const (
	defaultSitesLimit = 100
	maxSitesLimit     = 1000
	progressTimeout   = 3 * time.Second
)

// Server wires the ops endpoints onto a chi router.
type Server struct {
	router   chi.Router
	counters *crawler.Counters
	repo     store.ProgressRepository
	runID    string
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The gatherer
// backs /metrics, counters back /statusz, and the repository backs the
// /runz and /sites progress endpoints.
func NewServer(gatherer prometheus.Gatherer, m *metrics.Metrics, counters *crawler.Counters, repo store.ProgressRepository, runID string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		counters: counters,
		repo:     repo,
		runID:    runID,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	r.Use(timeoutMiddleware(10 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/statusz", s.statusz)
	r.Get("/runz", s.runz)
	r.Get("/sites", s.listSites)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The worker holds no warm-up state; ready as soon as it serves.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	RunID string                  `json:"run_id"`
	Stats crawler.CounterSnapshot `json:"stats"`
}

func (s *Server) statusz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		RunID: s.runID,
		Stats: s.counters.Snapshot(),
	})
}

// runz handles GET /runz. It returns the persisted run record as JSON, 404
// before the run loop has recorded its start, or 503 when no repository is
// configured.
func (s *Server) runz(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "progress repository unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), progressTimeout)
	defer cancel()

	rec, err := s.repo.GetRun(ctx, s.runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not started")
			return
		}
		s.logger.Error("get run failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	s.writeJSON(w, http.StatusOK, toRunResponse(rec))
}

// listSites handles GET /sites?limit=&offset=. It returns a JSON object
// {"run_id": ..., "sites": [...]} on success, 400 for invalid paging
// parameters, or 503 when no repository is configured.
func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "progress repository unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSitesLimit, maxSitesLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), progressTimeout)
	defer cancel()

	sites, err := s.repo.ListSites(ctx, s.runID, limit, offset)
	if err != nil {
		s.logger.Error("list sites failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list sites")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": s.runID,
		"sites":  toSiteResponses(sites),
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

type runResponse struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Note       *string    `json:"note,omitempty"`
	Batches    int64      `json:"batches"`
	Reported   int64      `json:"reported"`
}

func toRunResponse(rec store.RunRecord) runResponse {
	resp := runResponse{
		RunID:     rec.RunID,
		Status:    string(rec.Status),
		StartedAt: rec.StartedAt,
		Note:      rec.Note,
		Batches:   rec.Batches,
		Reported:  rec.Reported,
	}
	if rec.FinishedAt != nil {
		resp.FinishedAt = rec.FinishedAt
	}
	return resp
}

type siteStatsResponse struct {
	Site       string    `json:"site"`
	LastUpdate time.Time `json:"last_update"`
	Pages      int64     `json:"pages"`
	BytesTotal int64     `json:"bytes_total"`
	Fetch2xx   int64     `json:"fetch_2xx"`
	Fetch3xx   int64     `json:"fetch_3xx"`
	Fetch4xx   int64     `json:"fetch_4xx"`
	Fetch5xx   int64     `json:"fetch_5xx"`
}

func toSiteResponses(in []store.SiteStats) []siteStatsResponse {
	out := make([]siteStatsResponse, 0, len(in))
	for _, s := range in {
		out = append(out, siteStatsResponse{
			Site:       s.Site,
			LastUpdate: s.LastUpdate,
			Pages:      s.Pages,
			BytesTotal: s.BytesTotal,
			Fetch2xx:   s.Fetch2xx,
			Fetch3xx:   s.Fetch3xx,
			Fetch4xx:   s.Fetch4xx,
			Fetch5xx:   s.Fetch5xx,
		})
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write json response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}
