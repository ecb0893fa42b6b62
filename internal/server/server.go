// Package server exposes the RAG pipeline over a REST API: document CRUD,
// similarity search, question answering, health/readiness probes, and
// Prometheus metrics. The server is started by the `ragserve serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/ragserve-go/internal/logging"
	"github.com/54b3r/ragserve-go/internal/version"
)

// request bounds mirrored by the API surface.
const (
	defaultSearchLimit  = 5
	maxSearchLimit      = 20
	defaultAskResults   = 5
	maxAskResults       = 10
	maxRequestBodyBytes = 10 << 20 // generous; documents are capped separately
)

// New constructs a Server around the given pipeline.
func New(pipeline answerer, cfg *Config) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full live generation round trip.
		cfg.WriteTimeout = 3 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		pipeline: pipeline,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
		registry: reg,
	}

	rps := cfg.RateLimit
	if rps == 0 {
		rps = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = defaultRateBurst
	}
	rl, stop := newRateLimiter(rps, burst, log)
	s.stopRL = stop

	if cfg.APIKey == "" {
		log.Warn("API authentication disabled; set RAGSERVE_API_KEY to enable")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/documents", s.route("add_document", s.handleAddDocument))
	mux.Handle("POST /api/documents/bulk", s.route("bulk_add", s.handleBulkAdd))
	mux.Handle("GET /api/documents/{id}", s.route("get_document", s.handleGetDocument))
	mux.Handle("PATCH /api/documents/{id}", s.route("update_document", s.handleUpdateDocument))
	mux.Handle("DELETE /api/documents/{id}", s.route("delete_document", s.handleDeleteDocument))
	mux.Handle("POST /api/search", s.route("search", s.handleSearch))
	mux.Handle("POST /api/ask", s.route("ask", s.handleAsk))
	mux.Handle("GET /api/stats", s.route("stats", s.handleStats))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	handler := requestLogger(log, rl.middleware(authMiddleware(cfg.APIKey, mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// route wraps a pipeline handler with per-endpoint metrics instrumentation.
func (s *Server) route(name string, h http.HandlerFunc) http.Handler {
	return s.metrics.instrument(name, h)
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.started = time.Now()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", "addr", "http://"+s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. The pipeline itself never fails — every
// failure is encoded inside the Answer — so this handler can only reject
// malformed requests.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = defaultAskResults
	}
	if maxResults < 1 || maxResults > maxAskResults {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("max_results must be between 1 and %d", maxAskResults))
		return
	}

	ans := s.pipeline.AnswerQuestion(r.Context(), req.Question, maxResults)
	s.metrics.observeAnswer(ans)
	writeJSON(w, http.StatusOK, ans)
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit < 1 || limit > maxSearchLimit {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit))
		return
	}

	results, err := s.pipeline.Search(r.Context(), req.Query, limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("search failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Stats(r.Context()))
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version.Version,
		"model":     s.pipeline.ModelUsed(),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

// decodeBody decodes the JSON request body into v, writing a 400 and
// returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body with the given status.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
