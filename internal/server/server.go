// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/tasks"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultAddr is the listen address used when Options.Addr is empty.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is 0.
	DefaultMaxBodyBytes = 4 << 20

	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

// =============================================================================
// SERVER
// =============================================================================

// Options configures a Server.
type Options struct {
	// Addr is the listen address for ListenAndServe
	Addr string

	// Root confines task paths (empty = working directory)
	Root string

	// APIKey, when set, is required as a Bearer token
	APIKey string

	// RateLimit is requests per minute per client (0 = unlimited)
	RateLimit int

	// MaxBodyBytes bounds request bodies (0 = DefaultMaxBodyBytes)
	MaxBodyBytes int64

	// DiffTimeout bounds one POST /v1/diff (0 = no timeout)
	DiffTimeout time.Duration

	// Runner configures the task runner behind /v1/tasks
	Runner tasks.RunnerOptions

	// MaxHistory and MaxQueue size the task queue (0 = unlimited)
	MaxHistory int
	MaxQueue   int

	// Version is reported by /health
	Version string
}

// Server serves the diff API.
type Server struct {
	opts    Options
	root    string
	queue   *tasks.Queue
	runner  *tasks.Runner
	started time.Time

	startOnce sync.Once
	closeOnce sync.Once
	drainDone chan struct{}

	stats counters
}

type counters struct {
	requests       atomic.Int64
	diffs          atomic.Int64
	diffErrors     atomic.Int64
	tasksSubmitted atomic.Int64
	tasksRejected  atomic.Int64
	tasksCanceled  atomic.Int64
}

// New creates a Server. The task runner starts with Start or on the first
// call to Serve.
func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RateLimit < 0 {
		return nil, fmt.Errorf("server: rate limit must be >= 0, got %d", opts.RateLimit)
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("server: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("server: root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("server: root %s is not a directory", root)
	}

	queue := tasks.NewQueueWithOptions(opts.MaxHistory, opts.MaxQueue)
	return &Server{
		opts:      opts,
		root:      root,
		queue:     queue,
		runner:    tasks.NewRunnerWithOptions(queue, opts.Runner),
		started:   time.Now(),
		drainDone: make(chan struct{}),
	}, nil
}

// Root returns the absolute directory task paths are confined to.
func (s *Server) Root() string {
	return s.root
}

// Start launches the task runner.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		s.runner.Start()
		go s.drainNotifications()
	})
}

// Close cancels outstanding tasks and stops the runner. It is safe to call
// more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		for _, task := range s.queue.All() {
			if !task.IsComplete() {
				s.queue.Cancel(task.ID)
			}
		}
		s.runner.Stop()
		close(s.drainDone)
	})
}

// drainNotifications logs task completions so the queue's notification
// buffer never fills.
func (s *Server) drainNotifications() {
	for {
		select {
		case n := <-s.queue.Notifications():
			entry := log.WithFields(log.Fields{
				"task":     n.TaskID,
				"status":   n.Status,
				"duration": n.Duration.Round(time.Millisecond),
			})
			if n.Error != "" {
				entry.WithField("error", n.Error).Warn("server: task finished")
			} else {
				entry.Debug("server: task finished")
			}
		case <-s.drainDone:
			return
		}
	}
}

// Handler returns the routed API wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(),
		s.countRequests,
	}
	if s.opts.RateLimit > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(s.opts.RateLimit, time.Minute)))
	}
	if s.opts.APIKey != "" {
		middlewares = append(middlewares, AuthMiddleware(s.opts.APIKey))
	}
	return Chain(middlewares...)(mux)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/diff", s.handleDiff)
	mux.HandleFunc("POST /v1/tasks", s.handleSubmitTask)
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.handleCancelTask)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
}

// Serve accepts connections on l until ctx is canceled, then shuts down
// gracefully and closes the server.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.Start()
	defer s.Close()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr": l.Addr().String(),
			"root": s.root,
		}).Info("server: listening")
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("server: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on Options.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, l)
}

// =============================================================================
// HANDLERS
// =============================================================================

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

// DiffRequest is the body of POST /v1/diff.
type DiffRequest struct {
	Original string `json:"original"`
	Modified string `json:"modified"`
	FilePath string `json:"file_path,omitempty"`
}

// DiffResponse is the body returned by POST /v1/diff.
type DiffResponse struct {
	*diff.Diff
	Hunks   []diff.Hunk `json:"hunks"`
	Summary string      `json:"summary"`
}

func newDiffResponse(d *diff.Diff) DiffResponse {
	hunks := d.Hunks()
	if hunks == nil {
		hunks = []diff.Hunk{}
	}
	return DiffResponse{Diff: d, Hunks: hunks, Summary: d.Summary()}
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if s.opts.DiffTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.DiffTimeout)
		defer cancel()
	}

	d, err := diff.Compare(ctx, req.FilePath, req.Original, req.Modified)
	if err != nil {
		s.stats.diffErrors.Add(1)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "diff timed out")
		case errors.Is(err, context.Canceled):
			// Client went away; nobody reads this.
			writeError(w, http.StatusServiceUnavailable, "diff canceled")
		default:
			log.WithError(err).Error("server: diff failed")
			writeError(w, http.StatusInternalServerError, "diff failed")
		}
		return
	}

	s.stats.diffs.Add(1)
	writeJSON(w, http.StatusOK, newDiffResponse(d))
}

// TaskRequest is the body of POST /v1/tasks. Paths are relative to the
// server root.
type TaskRequest struct {
	OriginalPath string `json:"original_path"`
	ModifiedPath string `json:"modified_path"`
}

// TaskAccepted is returned by POST /v1/tasks.
type TaskAccepted struct {
	TaskID       string           `json:"task_id"`
	Status       tasks.TaskStatus `json:"status"`
	OriginalPath string           `json:"original_path"`
	ModifiedPath string           `json:"modified_path"`
}

// TaskList is returned by GET /v1/tasks.
type TaskList struct {
	Summary string       `json:"summary"`
	Tasks   []tasks.Info `json:"tasks"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !s.decode(w, r, &req) {
		return
	}

	original, err := s.resolve(req.OriginalPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "original_path: "+err.Error())
		return
	}
	modified, err := s.resolve(req.ModifiedPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "modified_path: "+err.Error())
		return
	}

	task := tasks.NewTask(original, modified)
	if err := s.queue.Add(task); err != nil {
		s.stats.tasksRejected.Add(1)
		if errors.Is(err, tasks.ErrQueueFull) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "task queue is full")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.stats.tasksSubmitted.Add(1)

	w.Header().Set("Location", "/v1/tasks/"+task.ID)
	writeJSON(w, http.StatusAccepted, TaskAccepted{
		TaskID:       task.ID,
		Status:       tasks.TaskStatusQueued,
		OriginalPath: req.OriginalPath,
		ModifiedPath: req.ModifiedPath,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	all := s.queue.All()
	infos := make([]tasks.Info, 0, len(all))
	for _, task := range all {
		infos = append(infos, s.publicInfo(task))
	}
	writeJSON(w, http.StatusOK, TaskList{Summary: s.queue.Summary(), Tasks: infos})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task := s.queue.Get(r.PathValue("id"))
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, s.publicInfo(task))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task := s.queue.Get(id)
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if !s.queue.Cancel(id) {
		writeError(w, http.StatusConflict, "task already "+strings.ToLower(task.GetStatus().String()))
		return
	}
	s.stats.tasksCanceled.Add(1)
	writeJSON(w, http.StatusOK, s.publicInfo(s.queue.Get(id)))
}

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	Requests       int64 `json:"requests"`
	Diffs          int64 `json:"diffs"`
	DiffErrors     int64 `json:"diff_errors"`
	TasksSubmitted int64 `json:"tasks_submitted"`
	TasksRejected  int64 `json:"tasks_rejected"`
	TasksCanceled  int64 `json:"tasks_canceled"`
	TasksQueued    int   `json:"tasks_queued"`
	TasksRunning   int   `json:"tasks_running"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Requests:       s.stats.requests.Load(),
		Diffs:          s.stats.diffs.Load(),
		DiffErrors:     s.stats.diffErrors.Load(),
		TasksSubmitted: s.stats.tasksSubmitted.Load(),
		TasksRejected:  s.stats.tasksRejected.Load(),
		TasksCanceled:  s.stats.tasksCanceled.Load(),
		TasksQueued:    len(s.queue.Queued()),
		TasksRunning:   len(s.queue.Running()),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// publicInfo reports task paths relative to the root so responses never
// reveal the server's file system layout.
func (s *Server) publicInfo(task *tasks.Task) tasks.Info {
	info := task.Info()
	info.OriginalPath = s.relative(info.OriginalPath)
	info.ModifiedPath = s.relative(info.ModifiedPath)
	if info.Result != nil {
		result := *info.Result
		result.FilePath = s.relative(result.FilePath)
		info.Result = &result
	}
	info.Error = strings.ReplaceAll(info.Error, s.root+string(filepath.Separator), "")
	return info
}

func (s *Server) relative(path string) string {
	if rel, err := filepath.Rel(s.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// resolve joins a client supplied path onto the root and rejects anything
// that would escape it.
func (s *Server) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", errors.New("path must be relative to the server root")
	}

	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !isPathWithinDir(full, s.root) {
		return "", errors.New("path escapes the server root")
	}

	// Symlinks inside the root must not lead out of it either.
	if resolved, err := filepath.EvalSymlinks(full); err == nil {
		rootResolved, rerr := filepath.EvalSymlinks(s.root)
		if rerr != nil {
			rootResolved = s.root
		}
		if !isPathWithinDir(resolved, rootResolved) {
			return "", errors.New("path escapes the server root")
		}
	}
	return full, nil
}

// isPathWithinDir reports whether path is dir or lies below it.
func isPathWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// decode reads a JSON body into v, answering the request itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "invalid request body: trailing data")
		return false
	}
	return true
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("server: write response")
	}
}
