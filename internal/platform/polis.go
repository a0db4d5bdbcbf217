package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"equilibrium/internal/model"
	"equilibrium/internal/search"
	"equilibrium/internal/storage"
)

var (
	ErrRunActive    = errors.New("run already active")
	ErrRunNotActive = errors.New("run not active")
)

type Config struct {
	Store    storage.Store
	Logger   *slog.Logger
	Observer search.Observer
}

// RunConfig describes one search run started through the Polis.
type RunConfig struct {
	RunID    string
	Strategy StrategyConfig
	Initial  *model.Genome
	Resume   bool
	Observer search.Observer

	HighFitness            float64
	HighStagnation         int
	MinTrendSamples        int
	TrendEpsilon           float64
	PlateauStagnation      int
	CheckpointEvery        int
	MaxGenerations         int
	MaxConsecutiveFailures int
}

type activeRun struct {
	control    chan Command
	controller *Controller
}

// Polis owns the store and the registry of active runs. Runs are
// controlled by run ID through Stop, Reset, Pause and Continue commands.
type Polis struct {
	store    storage.Store
	logger   *slog.Logger
	observer search.Observer

	mu      sync.RWMutex
	started bool
	runs    map[string]*activeRun
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Polis{
		store:    cfg.Store,
		logger:   logger,
		observer: cfg.Observer,
		runs:     make(map[string]*activeRun),
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

// Stop asks every active run to stop and marks the Polis stopped.
func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, run := range p.runs {
		select {
		case run.control <- CommandStop:
		default:
		}
	}
	p.started = false
}

// RunSearch runs a search to completion. The run is registered under its ID
// for the duration so it can be controlled and observed.
func (p *Polis) RunSearch(ctx context.Context, cfg RunConfig) (RunResult, error) {
	if !p.Started() {
		return RunResult{}, fmt.Errorf("polis is not initialized")
	}
	strategy, err := NewStrategy(cfg.Strategy)
	if err != nil {
		return RunResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	observers := search.Observers{p.observer, cfg.Observer}
	control := make(chan Command, 16)
	controller, err := NewController(ControllerConfig{
		RunID:                  runID,
		Strategy:               strategy,
		Store:                  p.store,
		Initial:                cfg.Initial,
		Resume:                 cfg.Resume,
		Observer:               observers,
		Logger:                 p.logger.With("run_id", runID),
		Control:                control,
		HighFitness:            cfg.HighFitness,
		HighStagnation:         cfg.HighStagnation,
		MinTrendSamples:        cfg.MinTrendSamples,
		TrendEpsilon:           cfg.TrendEpsilon,
		PlateauStagnation:      cfg.PlateauStagnation,
		CheckpointEvery:        cfg.CheckpointEvery,
		MaxGenerations:         cfg.MaxGenerations,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	})
	if err != nil {
		return RunResult{}, err
	}

	if err := p.registerRun(runID, &activeRun{control: control, controller: controller}); err != nil {
		return RunResult{}, err
	}
	defer p.unregisterRun(runID)

	p.logger.Info("run started", "run_id", runID, "strategy", strategy.Name())
	result, err := controller.Run(ctx)
	p.logger.Info("run finished",
		"run_id", runID,
		"reason", string(result.StopReason),
		"generations", result.TotalGenerations,
		"best", result.Best.Fitness,
		"resets", result.Resets,
	)
	return result, err
}

func (p *Polis) StopRun(runID string) error {
	return p.sendRunCommand(runID, CommandStop)
}

// ResetRun forces the run through the Resetting phase.
func (p *Polis) ResetRun(runID string) error {
	return p.sendRunCommand(runID, CommandReset)
}

func (p *Polis) PauseRun(runID string) error {
	return p.sendRunCommand(runID, CommandPause)
}

func (p *Polis) ContinueRun(runID string) error {
	return p.sendRunCommand(runID, CommandContinue)
}

// ActiveRuns lists the IDs of running searches, sorted.
func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns the live view of an active run.
func (p *Polis) Snapshot(runID string) (Snapshot, bool) {
	p.mu.RLock()
	run, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return run.controller.Snapshot(), true
}

// Champion returns the champion held by an active run.
func (p *Polis) Champion(runID string) (model.Champion, bool) {
	p.mu.RLock()
	run, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return model.Champion{}, false
	}
	return run.controller.Champion()
}

func (p *Polis) registerRun(runID string, run *activeRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	p.runs[runID] = run
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	delete(p.runs, runID)
	p.mu.Unlock()
}

func (p *Polis) sendRunCommand(runID string, cmd Command) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	p.mu.RLock()
	run, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	select {
	case run.control <- cmd:
		return nil
	default:
		return fmt.Errorf("run control channel is full: %s", runID)
	}
}
