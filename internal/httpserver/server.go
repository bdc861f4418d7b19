package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/blackmichael/disc-sheets/internal/scheduler"
)

// Runs starts background runs and reports the most recent one.
type Runs interface {
	Start(ctx context.Context, q domain.SearchQuery) error
	Last() (*scheduler.Report, bool)
}

// Server is the HTTP server exposing run status and manual triggers.
type Server struct {
	runs       Runs
	defaults   domain.SearchQuery
	runCtx     context.Context
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server. Runs triggered over HTTP use runCtx,
// not the request context, so they outlive the request.
func NewServer(runCtx context.Context, port int, runs Runs, defaults domain.SearchQuery, logger *slog.Logger) *Server {
	s := &Server{
		runs:     runs,
		defaults: defaults,
		runCtx:   runCtx,
		logger:   logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      withLogging(logger, s.routes()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs/latest", s.handleLatestRun)
	return mux
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runRequest overrides fields of the default query. An empty body keeps the
// defaults.
type runRequest struct {
	Query      string `json:"query"`
	Sort       string `json:"sort"`
	TimeWindow string `json:"time_window"`
	Limit      *int   `json:"limit"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("invalid run request", "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be a JSON object")
		return
	}

	q := s.defaults
	if req.Query != "" {
		q.Query = req.Query
	}
	if req.Sort != "" {
		q.Sort = req.Sort
	}
	if req.TimeWindow != "" {
		q.TimeWindow = req.TimeWindow
	}
	if req.Limit != nil {
		if *req.Limit < 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must not be negative")
			return
		}
		q.Limit = *req.Limit
	}

	if err := s.runs.Start(s.runCtx, q); err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "RunInProgress", "a run is already in progress")
			return
		}
		s.logger.Error("failed to start run", "query", q.Query, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to start run")
		return
	}

	s.logger.Info("run started", "query", q.Query, "sort", q.Sort, "time_window", q.TimeWindow, "limit", q.Limit)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"query":  q,
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.runs.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "no run has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
