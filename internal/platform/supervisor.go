package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SupervisorPolicy bounds how failed runs are restarted.
type SupervisorPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	MaxRestarts    int
}

// SupervisedRunStatus reports the restart history of a supervised run.
type SupervisedRunStatus struct {
	RunID           string `json:"run_id"`
	RestartCount    int    `json:"restart_count"`
	LastError       string `json:"last_error,omitempty"`
	PermanentFailed bool   `json:"permanent_failed"`
	Running         bool   `json:"running"`
}

type SupervisorHooks struct {
	OnRunRestart          func(runID string, err error, restartCount int)
	OnRunPermanentFailure func(runID string, err error, restartCount int)
}

func defaultSupervisorPolicy() SupervisorPolicy {
	return SupervisorPolicy{
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		BackoffFactor:  2.0,
		MaxRestarts:    5,
	}
}

func normalizeSupervisorPolicy(policy SupervisorPolicy) SupervisorPolicy {
	def := defaultSupervisorPolicy()
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = def.MaxBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = def.BackoffFactor
	}
	if policy.MaxRestarts < 0 {
		policy.MaxRestarts = 0
	}
	return policy
}

// Supervisor keeps search runs alive across failures. A run that ends with
// an error is restarted after a backoff and resumes from the persisted best
// configuration; a run that stops cleanly is not restarted.
type Supervisor struct {
	polis  *Polis
	policy SupervisorPolicy
	hooks  SupervisorHooks
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*supervisedRun
}

type supervisedRun struct {
	cancel context.CancelFunc
	done   chan struct{}

	status SupervisedRunStatus
	result RunResult
}

func NewSupervisor(polis *Polis, policy SupervisorPolicy, hooks SupervisorHooks) *Supervisor {
	return &Supervisor{
		polis:  polis,
		policy: normalizeSupervisorPolicy(policy),
		hooks:  hooks,
		logger: polis.logger,
		runs:   make(map[string]*supervisedRun),
	}
}

// Start launches cfg under supervision. The run ID is required so restarts
// share one identity.
func (s *Supervisor) Start(ctx context.Context, cfg RunConfig) error {
	if cfg.RunID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	if run, exists := s.runs[cfg.RunID]; exists && run.status.Running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunActive, cfg.RunID)
	}
	ctx, cancel := context.WithCancel(ctx)
	run := &supervisedRun{
		cancel: cancel,
		done:   make(chan struct{}),
		status: SupervisedRunStatus{RunID: cfg.RunID, Running: true},
	}
	s.runs[cfg.RunID] = run
	s.mu.Unlock()

	go s.supervise(ctx, run, cfg)
	return nil
}

func (s *Supervisor) supervise(ctx context.Context, run *supervisedRun, cfg RunConfig) {
	defer func() {
		s.mu.Lock()
		run.status.Running = false
		s.mu.Unlock()
		close(run.done)
	}()

	backoff := s.policy.InitialBackoff
	for {
		result, err := s.polis.RunSearch(ctx, cfg)
		s.mu.Lock()
		run.result = result
		s.mu.Unlock()
		if err == nil || ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		run.status.LastError = err.Error()
		restarts := run.status.RestartCount
		s.mu.Unlock()
		if restarts >= s.policy.MaxRestarts {
			s.mu.Lock()
			run.status.PermanentFailed = true
			s.mu.Unlock()
			s.logger.Error("run failed permanently", "run_id", cfg.RunID, "restarts", restarts, "err", err)
			if s.hooks.OnRunPermanentFailure != nil {
				s.hooks.OnRunPermanentFailure(cfg.RunID, err, restarts)
			}
			return
		}

		restarts++
		s.mu.Lock()
		run.status.RestartCount = restarts
		s.mu.Unlock()
		s.logger.Warn("restarting run", "run_id", cfg.RunID, "restarts", restarts, "backoff", backoff, "err", err)
		if s.hooks.OnRunRestart != nil {
			s.hooks.OnRunRestart(cfg.RunID, err, restarts)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * s.policy.BackoffFactor)
		if backoff > s.policy.MaxBackoff {
			backoff = s.policy.MaxBackoff
		}
		cfg.Resume = true
		cfg.Initial = nil
	}
}

// Wait blocks until the supervised run ends and returns its last result.
func (s *Supervisor) Wait(runID string) (RunResult, SupervisedRunStatus, bool) {
	s.mu.Lock()
	run, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return RunResult{}, SupervisedRunStatus{}, false
	}
	<-run.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return run.result, run.status, true
}

// Stop cancels a supervised run and waits for it to flush.
func (s *Supervisor) Stop(runID string) {
	s.mu.Lock()
	run, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return
	}
	run.cancel()
	<-run.done
}

func (s *Supervisor) StopAll() {
	s.mu.Lock()
	runs := make([]*supervisedRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.Unlock()

	for _, run := range runs {
		run.cancel()
	}
	for _, run := range runs {
		<-run.done
	}
}

func (s *Supervisor) Runs() []SupervisedRunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]SupervisedRunStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.runs[id].status)
	}
	return out
}
