package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hdvapourize/internal/logging"
	"hdvapourize/internal/logs"
	"hdvapourize/internal/progress"
)

// Source provides the current batch progress.
type Source interface {
	Snapshot() progress.Snapshot
}

// StatusResponse is the payload of GET /api/status.
type StatusResponse struct {
	RunID      string  `json:"run_id"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Running    int     `json:"running"`
	Fraction   float64 `json:"fraction"`
	Percent    float64 `json:"percent"`
	ETASeconds float64 `json:"eta_seconds"`
	Elapsed    float64 `json:"elapsed_seconds"`
	Terminated bool    `json:"terminated"`
}

// JobsResponse is the payload of GET /api/jobs.
type JobsResponse struct {
	Jobs []progress.JobProgress `json:"jobs"`
}

// LogsResponse is the payload of GET /api/logs.
type LogsResponse struct {
	Path   string   `json:"path"`
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

const (
	defaultLogLines = 100
	maxLogLines     = 1000
)

// Server exposes a Source over HTTP.
type Server struct {
	bind   string
	source Source
	logger *slog.Logger

	mu       sync.Mutex
	runID    string
	runLog   string
	listener net.Listener
	server   *http.Server
}

// New builds a Server. It does not listen until Start.
func New(bind string, source Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		bind:   strings.TrimSpace(bind),
		source: source,
		logger: logging.NewComponentLogger(logger, "statusapi"),
	}
}

// SetRunID labels responses with the active run.
func (s *Server) SetRunID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
}

func (s *Server) currentRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// SetRunLog points /api/logs at the active run's log file.
func (s *Server) SetRunLog(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runLog = path
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/jobs", s.handleJobs)
		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/logs", s.handleLogs)
	})
	return r
}

// Start listens on the configured address and serves until ctx ends or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("status api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("status api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("status api listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		RunID:      s.currentRunID(),
		Total:      snap.Total,
		Completed:  snap.Completed,
		Running:    snap.Running,
		Fraction:   snap.Fraction,
		Percent:    snap.Fraction * 100,
		ETASeconds: snap.ETA.Seconds(),
		Elapsed:    snap.Elapsed.Seconds(),
		Terminated: snap.Terminated,
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	jobs := snap.Jobs
	if state := strings.TrimSpace(r.URL.Query().Get("state")); state != "" {
		filtered := make([]progress.JobProgress, 0, len(jobs))
		for _, j := range jobs {
			if string(j.State) == state {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	writeJSON(w, http.StatusOK, JobsResponse{Jobs: jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, j := range s.source.Snapshot().Jobs {
		if j.ID == id || (len(id) >= 8 && strings.HasPrefix(j.ID, id)) {
			writeJSON(w, http.StatusOK, j)
			return
		}
	}
	writeErr(w, http.StatusNotFound, fmt.Errorf("job %q not found", id))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	path := s.runLog
	s.mu.Unlock()
	if path == "" {
		writeErr(w, http.StatusNotFound, errors.New("no run log is active"))
		return
	}

	limit := defaultLogLines
	if raw := strings.TrimSpace(r.URL.Query().Get("lines")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid lines value %q", raw))
			return
		}
		limit = min(n, maxLogLines)
	}

	lines, offset, err := logs.Last(path, limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, LogsResponse{Path: path, Lines: lines, Offset: offset})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
