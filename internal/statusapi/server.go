// Package statusapi serves a read-only JSON view of running searches and the
// persisted champion.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"equilibrium/internal/platform"
	"equilibrium/internal/storage"
)

// Runs is the live run view the server reads.
type Runs interface {
	ActiveRuns() []string
	Snapshot(runID string) (platform.Snapshot, bool)
}

// Supervised is implemented by platform.Supervisor.
type Supervised interface {
	Runs() []platform.SupervisedRunStatus
}

type Server struct {
	runs       Runs
	store      storage.Store
	supervised Supervised
	logger     *slog.Logger
	router     *chi.Mux
}

func New(runs Runs, store storage.Store, supervised Supervised, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		runs:       runs,
		store:      store,
		supervised: supervised,
		logger:     logger,
		router:     chi.NewRouter(),
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/state", s.handleState)
	s.router.Get("/state/{runID}", s.handleRunState)
	s.router.Get("/champion", s.handleChampion)
	s.router.Get("/best", s.handleBest)
	s.router.Get("/supervised", s.handleSupervised)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("status api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snapshots := make([]platform.Snapshot, 0)
	if s.runs != nil {
		for _, id := range s.runs.ActiveRuns() {
			if snap, ok := s.runs.Snapshot(id); ok {
				snapshots = append(snapshots, snap)
			}
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": snapshots})
}

func (s *Server) handleRunState(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if s.runs == nil {
		s.writeError(w, http.StatusNotFound, "run not active: "+runID)
		return
	}
	snap, ok := s.runs.Snapshot(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not active: "+runID)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleChampion(w http.ResponseWriter, r *http.Request) {
	champion, ok, err := s.store.GetChampion(r.Context())
	if err != nil {
		s.logger.Error("load champion", "err", err)
		s.writeError(w, http.StatusInternalServerError, "load champion failed")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "no champion")
		return
	}
	s.writeJSON(w, http.StatusOK, champion)
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	best, ok, err := s.store.GetBest(r.Context())
	if err != nil {
		s.logger.Error("load best", "err", err)
		s.writeError(w, http.StatusInternalServerError, "load best failed")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "no best configuration")
		return
	}
	s.writeJSON(w, http.StatusOK, best)
}

func (s *Server) handleSupervised(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]platform.SupervisedRunStatus, 0)
	if s.supervised != nil {
		statuses = s.supervised.Runs()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": statuses})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
