// Package server exposes the trigger and status HTTP surface and hosts the
// in-process cron that fires the runner every few minutes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/c360studio/hndaily/store"
	"github.com/c360studio/hndaily/task"
)

const (
	defaultCronSchedule = "*/10 * * * *"
	// syncTriggerTimeout bounds a synchronous trigger; async triggers get
	// the same budget in the background.
	syncTriggerTimeout = 9 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

// Runner is the trigger surface the server drives.
type Runner interface {
	RunOnce(ctx context.Context, date string) error
	RetryFailed(ctx context.Context, date string) (int, error)
}

// SnapshotStore reads task state for the status endpoint.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, date string) (*store.Snapshot, error)
}

// Server hosts the HTTP API and the cron trigger.
type Server struct {
	runner   Runner
	store    SnapshotStore
	addr     string
	schedule string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithCronSchedule overrides the trigger schedule.
func WithCronSchedule(schedule string) Option {
	return func(s *Server) {
		if schedule != "" {
			s.schedule = schedule
		}
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server listening on addr.
func New(runner Runner, snapshots SnapshotStore, addr string, opts ...Option) *Server {
	s := &Server{
		runner:   runner,
		store:    snapshots,
		addr:     addr,
		schedule: defaultCronSchedule,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleBanner)
	r.Post("/trigger-export", s.handleTriggerAsync)
	r.Post("/trigger-export-sync", s.handleTriggerSync)
	r.Get("/task-status", s.handleTaskStatus)
	r.Post("/retry-failed-tasks", s.handleRetryFailed)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// Run serves HTTP and the cron trigger until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		cronCtx, cancel := context.WithTimeout(context.Background(), syncTriggerTimeout)
		defer cancel()
		if err := s.runner.RunOnce(cronCtx, ""); err != nil {
			s.logger.Error("Cron trigger failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("registering cron schedule %q: %w", s.schedule, err)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr, "cron", s.schedule)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "hndaily: HackerNews daily digest service")
}

// triggerRequest is the optional body of the trigger endpoints.
type triggerRequest struct {
	Date string `json:"date"`
}

// resolveDate parses the optional date override, defaulting to the
// previous UTC day.
func (s *Server) resolveDate(r *http.Request) (string, error) {
	var req triggerRequest
	// An empty body is fine; any JSON present must be valid.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("invalid request body: %w", err)
	}
	if req.Date == "" {
		return task.TargetDate(s.now()), nil
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", req.Date)
	}
	return req.Date, nil
}

func (s *Server) handleTriggerAsync(w http.ResponseWriter, r *http.Request) {
	date, err := s.resolveDate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTriggerTimeout)
		defer cancel()
		if err := s.runner.RunOnce(ctx, date); err != nil {
			s.logger.Error("Background trigger failed", "date", date, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": fmt.Sprintf("export for %s started", date),
	})
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	date, err := s.resolveDate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), syncTriggerTimeout)
	defer cancel()

	if err := s.runner.RunOnce(ctx, date); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("export for %s completed", date),
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = task.TargetDate(s.now())
	}

	snap, err := s.store.GetSnapshot(r.Context(), date)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":           snap.Task.Date,
		"status":         snap.Task.Status,
		"total_articles": snap.Task.TotalArticles,
		"counts": map[string]int{
			"pending":    snap.Counts.Pending,
			"processing": snap.Counts.Processing,
			"completed":  snap.Counts.Completed,
			"failed":     snap.Counts.Failed,
		},
	})
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	date, err := s.resolveDate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	n, err := s.runner.RetryFailed(r.Context(), date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reset": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
