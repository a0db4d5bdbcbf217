package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/search"
	"equilibrium/internal/storage"
)

const tracerName = "equilibrium/platform"

// Command is a run control message.
type Command string

const (
	CommandStop     Command = "stop"
	CommandReset    Command = "reset"
	CommandPause    Command = "pause"
	CommandContinue Command = "continue"
)

type StopReason string

const (
	StopReasonCanceled       StopReason = "canceled"
	StopReasonCommand        StopReason = "command"
	StopReasonMaxGenerations StopReason = "max_generations"
	StopReasonFailed         StopReason = "failed"
)

var ErrTooManyFailures = errors.New("too many consecutive step failures")

// ControllerConfig configures one search run. Zero thresholds take the
// defaults below.
type ControllerConfig struct {
	RunID    string
	Strategy search.Strategy
	Store    storage.Store
	Initial  *model.Genome
	Resume   bool
	Observer search.Observer
	Logger   *slog.Logger
	Control  <-chan Command

	HighFitness            float64
	HighStagnation         int
	MinTrendSamples        int
	TrendEpsilon           float64
	PlateauStagnation      int
	CheckpointEvery        int
	MaxGenerations         int
	MaxConsecutiveFailures int
	LeaderboardSize        int

	Now func() time.Time
}

const (
	DefaultHighFitness            = 85.0
	DefaultHighStagnation         = 150
	DefaultMinTrendSamples        = 20
	DefaultTrendEpsilon           = 0.05
	DefaultPlateauStagnation      = 2000 // unattended multi-day runs used 50000
	DefaultCheckpointEvery        = 50
	DefaultMaxConsecutiveFailures = 10
)

func (c *ControllerConfig) applyDefaults() {
	if c.HighFitness == 0 {
		c.HighFitness = DefaultHighFitness
	}
	if c.HighStagnation == 0 {
		c.HighStagnation = DefaultHighStagnation
	}
	if c.MinTrendSamples == 0 {
		c.MinTrendSamples = DefaultMinTrendSamples
	}
	if c.TrendEpsilon == 0 {
		c.TrendEpsilon = DefaultTrendEpsilon
	}
	if c.PlateauStagnation == 0 {
		c.PlateauStagnation = DefaultPlateauStagnation
	}
	if c.CheckpointEvery == 0 {
		c.CheckpointEvery = DefaultCheckpointEvery
	}
	if c.MaxConsecutiveFailures == 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.LeaderboardSize == 0 {
		c.LeaderboardSize = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c ControllerConfig) validate() error {
	if c.Strategy == nil {
		return errors.New("strategy is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.RunID == "" {
		return errors.New("run id is required")
	}
	if c.HighStagnation < 0 || c.PlateauStagnation < 0 || c.CheckpointEvery < 0 || c.MaxGenerations < 0 {
		return errors.New("generation thresholds must be >= 0")
	}
	if c.MaxConsecutiveFailures < 0 {
		return errors.New("max consecutive failures must be >= 0")
	}
	return nil
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	RunID            string       `json:"run_id"`
	Strategy         string       `json:"strategy"`
	Generation       int          `json:"generation"`
	TotalGenerations int          `json:"total_generations"`
	Phase            search.Phase `json:"phase"`
	BestFitness      float64      `json:"best_fitness"`
	ChampionFitness  float64      `json:"champion_fitness"`
	Stagnation       int          `json:"stagnation"`
	Strength         float64      `json:"strength"`
	Trend            float64      `json:"trend"`
	Evaluations      int          `json:"evaluations"`
	Resets           int          `json:"resets"`
	Failures         int          `json:"failures"`
	Running          bool         `json:"running"`
	Paused           bool         `json:"paused"`
	StartedAtUTC     string       `json:"started_at_utc,omitempty"`
	UpdatedAtUTC     string       `json:"updated_at_utc,omitempty"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID            string
	Strategy         string
	StopReason       StopReason
	TotalGenerations int
	Resets           int
	Best             model.BestRecord
	Champion         model.Champion
	HasChampion      bool
	History          []model.FitnessSample
	Leaderboard      []model.LeaderboardEntry
}

// Controller drives a strategy through the Exploring, Improved, Stagnant and
// Resetting phases. It persists on every new best, at checkpoints and on
// stop, and keeps the champion monotone across resets.
type Controller struct {
	cfg    ControllerConfig
	tracer trace.Tracer

	mu            sync.RWMutex
	state         search.State
	champion      model.Champion
	hasChampion   bool
	championDirty bool
	storedBest    float64
	resets        int
	total         int
	failures      int
	running       bool
	paused        bool
	startedAt     time.Time
	updatedAt     time.Time
	history       []model.FitnessSample
	leaderboard   *search.Leaderboard
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &Controller{
		cfg:         cfg,
		tracer:      otel.Tracer(tracerName),
		leaderboard: search.NewLeaderboard(cfg.LeaderboardSize),
	}, nil
}

// Snapshot returns the current run view. It is safe to call from other
// goroutines while Run is active.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		RunID:            c.cfg.RunID,
		Strategy:         c.cfg.Strategy.Name(),
		Generation:       c.state.Generation,
		TotalGenerations: c.total,
		Phase:            c.state.Phase,
		BestFitness:      c.state.BestFitness,
		ChampionFitness:  c.state.ChampionFitness,
		Stagnation:       c.state.Stagnation,
		Strength:         c.state.Strength,
		Trend:            c.state.History.Trend(),
		Evaluations:      c.state.Evaluations,
		Resets:           c.resets,
		Failures:         c.failures,
		Running:          c.running,
		Paused:           c.paused,
	}
	if !c.startedAt.IsZero() {
		snap.StartedAtUTC = c.startedAt.UTC().Format(time.RFC3339)
	}
	if !c.updatedAt.IsZero() {
		snap.UpdatedAtUTC = c.updatedAt.UTC().Format(time.RFC3339)
	}
	return snap
}

// Champion returns the current champion, if any.
func (c *Controller) Champion() (model.Champion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasChampion {
		return model.Champion{}, false
	}
	out := c.champion
	out.Genome = genotype.CloneGenome(out.Genome)
	return out, true
}

// Best returns the best record of the current cycle.
func (c *Controller) Best() model.BestRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bestRecordLocked()
}

func (c *Controller) Run(ctx context.Context) (RunResult, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return RunResult{}, ErrRunActive
	}
	c.running = true
	c.startedAt = c.cfg.Now()
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.paused = false
		c.mu.Unlock()
	}()

	if err := c.restore(ctx); err != nil {
		return RunResult{}, err
	}

	reason, err := c.loop(ctx)
	// Flush with a fresh context: the run context may already be canceled.
	flushCtx := context.WithoutCancel(ctx)
	c.persistAll(flushCtx)
	c.emit(search.EventStopped, search.Candidate{}, string(reason))
	if err != nil {
		return c.result(reason), err
	}
	return c.result(reason), nil
}

func (c *Controller) loop(ctx context.Context) (StopReason, error) {
	for {
		if ctx.Err() != nil {
			return StopReasonCanceled, nil
		}
		if stop, reason := c.drainControl(ctx); stop {
			return reason, nil
		}
		if c.cfg.MaxGenerations > 0 && c.totalGenerations() >= c.cfg.MaxGenerations {
			return StopReasonMaxGenerations, nil
		}

		if err := c.generation(ctx); err != nil {
			if ctx.Err() != nil {
				return StopReasonCanceled, nil
			}
			return StopReasonFailed, err
		}
	}
}

// drainControl handles pending commands. Pause blocks until continue,
// stop or cancellation.
func (c *Controller) drainControl(ctx context.Context) (bool, StopReason) {
	for {
		select {
		case cmd, ok := <-c.cfg.Control:
			if !ok {
				return false, ""
			}
			switch cmd {
			case CommandStop:
				return true, StopReasonCommand
			case CommandReset:
				c.reset(ctx, "forced")
			case CommandPause:
				if stop, reason := c.waitWhilePaused(ctx); stop {
					return true, reason
				}
			}
		default:
			return false, ""
		}
	}
}

func (c *Controller) waitWhilePaused(ctx context.Context) (bool, StopReason) {
	c.setPaused(true)
	defer c.setPaused(false)
	c.cfg.Logger.Info("run paused", "run_id", c.cfg.RunID)
	for {
		select {
		case <-ctx.Done():
			return true, StopReasonCanceled
		case cmd, ok := <-c.cfg.Control:
			if !ok {
				return false, ""
			}
			switch cmd {
			case CommandContinue:
				c.cfg.Logger.Info("run continued", "run_id", c.cfg.RunID)
				return false, ""
			case CommandStop:
				return true, StopReasonCommand
			case CommandReset:
				c.reset(ctx, "forced")
			}
		}
	}
}

func (c *Controller) setPaused(paused bool) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
}

func (c *Controller) totalGenerations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// generation runs one strategy step and applies the lifecycle rules.
func (c *Controller) generation(ctx context.Context) error {
	c.mu.RLock()
	current := c.state
	c.mu.RUnlock()

	next, candidate, err := c.safeStep(ctx, current)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.stepFailed(current, err)
	}

	c.mu.Lock()
	improved := next.BestFitness > current.BestFitness
	c.state = next
	c.total++
	c.failures = 0
	c.updatedAt = c.cfg.Now()
	if candidate.Genome.ID != "" && !c.leaderboard.Contains(candidate.Genome.Derived.Fingerprint) {
		c.leaderboard.Add(candidate.Label, c.total, candidate.Fitness, candidate.Genome)
	}
	if improved {
		c.history = append(c.history, model.FitnessSample{Generation: c.total, Fitness: next.BestFitness})
	}
	promoted := c.promoteLocked()
	c.mu.Unlock()

	c.emit(search.EventGeneration, candidate, "")
	if improved {
		c.emit(search.EventImproved, candidate, "")
		c.persistBest(ctx)
	}
	if promoted {
		c.emit(search.EventChampion, candidate, "")
		c.persistChampion(ctx)
	}

	if c.total%c.cfg.CheckpointEvery == 0 {
		c.checkpoint(ctx)
	}
	if trigger := c.resetTrigger(); trigger != "" {
		c.reset(ctx, trigger)
	}
	return nil
}

// safeStep runs the strategy and converts panics into errors.
func (c *Controller) safeStep(ctx context.Context, state search.State) (next search.State, candidate search.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("strategy step panicked",
				"run_id", c.cfg.RunID,
				"strategy", c.cfg.Strategy.Name(),
				"generation", state.Generation+1,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	return c.cfg.Strategy.Step(ctx, state)
}

// stepFailed counts a failed generation and skips past it.
func (c *Controller) stepFailed(current search.State, err error) error {
	c.mu.Lock()
	c.failures++
	failures := c.failures
	c.total++
	c.state.Generation++
	c.mu.Unlock()

	c.cfg.Logger.Warn("generation failed", "run_id", c.cfg.RunID, "generation", current.Generation+1, "failures", failures, "err", err)
	c.emit(search.EventStepFailed, search.Candidate{}, err.Error())
	if failures >= c.cfg.MaxConsecutiveFailures {
		return fmt.Errorf("%w: %d: last: %v", ErrTooManyFailures, failures, err)
	}
	return nil
}

// promoteLocked makes the current best the champion when it is strictly
// better. Callers hold c.mu.
func (c *Controller) promoteLocked() bool {
	if c.hasChampion && c.state.BestFitness <= c.champion.Fitness {
		return false
	}
	if c.state.BestFitness <= 0 {
		return false
	}
	c.champion = model.Champion{
		VersionedRecord: storage.Versioned(),
		RunID:           c.cfg.RunID,
		Fitness:         c.state.BestFitness,
		Generation:      c.total,
		Resets:          c.resets,
		Genome:          genotype.CloneGenome(c.state.Best),
		PromotedAtUTC:   c.cfg.Now().UTC().Format(time.RFC3339),
	}
	c.hasChampion = true
	c.championDirty = true
	c.state.Champion = genotype.CloneGenome(c.state.Best)
	c.state.ChampionFitness = c.state.BestFitness
	return true
}

// resetTrigger reports why the run should reset, or "" to keep going.
func (c *Controller) resetTrigger() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if s.Phase != search.PhaseStagnant {
		return ""
	}
	if s.BestFitness >= c.cfg.HighFitness && s.Stagnation >= c.cfg.HighStagnation {
		return "high_fitness_stagnation"
	}
	if s.History.Len() >= c.cfg.MinTrendSamples && s.History.Trend() < c.cfg.TrendEpsilon && s.Stagnation >= c.cfg.PlateauStagnation {
		return "plateau"
	}
	return ""
}

// reset promotes and archives the champion, then restarts the search from
// the baseline genome.
func (c *Controller) reset(ctx context.Context, trigger string) {
	ctx, span := c.tracer.Start(ctx, "reset", trace.WithAttributes(
		attribute.String("run_id", c.cfg.RunID),
		attribute.String("trigger", trigger),
	))
	defer span.End()

	c.mu.Lock()
	c.state.Phase = search.PhaseResetting
	promoted := c.promoteLocked()
	archive := c.championDirty
	c.mu.Unlock()

	c.emit(search.EventReset, search.Candidate{}, trigger)
	if promoted {
		c.emit(search.EventChampion, search.Candidate{}, "")
	}
	c.persistAll(ctx)
	if archive {
		c.archiveChampion(ctx)
	}

	c.mu.Lock()
	c.resets++
	fresh := search.NewState(genotype.Baseline())
	fresh.Champion = genotype.CloneGenome(c.state.Champion)
	fresh.ChampionFitness = c.state.ChampionFitness
	if r, ok := c.cfg.Strategy.(search.Resetter); ok {
		fresh = r.Reset(fresh)
	}
	c.state = fresh
	resets := c.resets
	c.mu.Unlock()

	c.cfg.Logger.Info("search reset", "run_id", c.cfg.RunID, "trigger", trigger, "resets", resets)
}

func (c *Controller) checkpoint(ctx context.Context) {
	ctx, span := c.tracer.Start(ctx, "checkpoint", trace.WithAttributes(
		attribute.String("run_id", c.cfg.RunID),
		attribute.Int("generation", c.totalGenerations()),
	))
	defer span.End()

	c.persistAll(ctx)
	c.emit(search.EventCheckpoint, search.Candidate{}, "")
}

func (c *Controller) restore(ctx context.Context) error {
	// Init is idempotent. A store that cannot initialize may still accept
	// writes through a fallback, so the run goes on.
	if err := c.cfg.Store.Init(ctx); err != nil {
		c.cfg.Logger.Warn("init store failed", "err", err)
	}
	initial := genotype.Baseline()
	if c.cfg.Initial != nil {
		initial = genotype.CloneGenome(*c.cfg.Initial)
	}

	best, ok, err := c.cfg.Store.GetBest(ctx)
	if err != nil {
		c.cfg.Logger.Warn("load best configuration failed", "err", err)
	}
	if ok {
		c.storedBest = best.Fitness
		if c.cfg.Resume && c.cfg.Initial == nil {
			initial = best.Genome
		}
	}

	state := search.NewState(initial)
	champion, ok, err := c.cfg.Store.GetChampion(ctx)
	if err != nil {
		c.cfg.Logger.Warn("load champion failed", "err", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.champion = champion
		c.hasChampion = true
		state.Champion = genotype.CloneGenome(champion.Genome)
		state.ChampionFitness = champion.Fitness
	}
	c.state = state
	return ctx.Err()
}

func (c *Controller) bestRecordLocked() model.BestRecord {
	return model.BestRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           c.cfg.RunID,
		Strategy:        c.cfg.Strategy.Name(),
		Generation:      c.total,
		Fitness:         c.state.BestFitness,
		Result:          c.state.BestResult,
		Genome:          genotype.CloneGenome(c.state.Best),
		SavedAtUTC:      c.cfg.Now().UTC().Format(time.RFC3339),
	}
}

// persistBest writes the best record only when it beats the stored one.
func (c *Controller) persistBest(ctx context.Context) {
	c.mu.RLock()
	record := c.bestRecordLocked()
	stored := c.storedBest
	c.mu.RUnlock()
	if record.Fitness <= stored {
		return
	}
	if err := c.cfg.Store.SaveBest(ctx, record); err != nil {
		c.persistFailed("best", err)
		return
	}
	c.mu.Lock()
	if record.Fitness > c.storedBest {
		c.storedBest = record.Fitness
	}
	c.mu.Unlock()
}

func (c *Controller) persistChampion(ctx context.Context) {
	champion, ok := c.Champion()
	if !ok {
		return
	}
	if err := c.cfg.Store.SaveChampion(ctx, champion); err != nil {
		c.persistFailed("champion", err)
	}
}

func (c *Controller) archiveChampion(ctx context.Context) {
	champion, ok := c.Champion()
	if !ok {
		return
	}
	if err := c.cfg.Store.ArchiveChampion(ctx, champion); err != nil {
		c.persistFailed("champion archive", err)
		return
	}
	c.mu.Lock()
	c.championDirty = false
	c.mu.Unlock()
}

// persistAll flushes every persisted artifact. Failures are logged and
// retried at the next checkpoint.
func (c *Controller) persistAll(ctx context.Context) {
	c.mu.RLock()
	history := append([]model.FitnessSample(nil), c.history...)
	board := c.leaderboard.Entries()
	c.mu.RUnlock()

	c.persistBest(ctx)
	c.persistChampion(ctx)
	if err := c.cfg.Store.SaveFitnessHistory(ctx, c.cfg.RunID, history); err != nil {
		c.persistFailed("fitness history", err)
	}
	if err := c.cfg.Store.SaveLeaderboard(ctx, c.cfg.RunID, board); err != nil {
		c.persistFailed("leaderboard", err)
	}
}

func (c *Controller) persistFailed(what string, err error) {
	c.cfg.Logger.Error("persist failed", "run_id", c.cfg.RunID, "what", what, "err", err)
	c.emit(search.EventPersistFail, search.Candidate{}, what+": "+err.Error())
}

func (c *Controller) emit(kind search.EventKind, candidate search.Candidate, message string) {
	if c.cfg.Observer == nil {
		return
	}
	c.mu.RLock()
	e := search.Event{
		Kind:            kind,
		RunID:           c.cfg.RunID,
		Strategy:        c.cfg.Strategy.Name(),
		Generation:      c.total,
		Fitness:         candidate.Fitness,
		BestFitness:     c.state.BestFitness,
		ChampionFitness: c.state.ChampionFitness,
		Stagnation:      c.state.Stagnation,
		Strength:        c.state.Strength,
		Trend:           c.state.History.Trend(),
		Phase:           c.state.Phase,
		Resets:          c.resets,
		Label:           candidate.Label,
		Message:         message,
		At:              c.cfg.Now(),
	}
	c.mu.RUnlock()
	c.cfg.Observer.Observe(e)
}

func (c *Controller) result(reason StopReason) RunResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := RunResult{
		RunID:            c.cfg.RunID,
		Strategy:         c.cfg.Strategy.Name(),
		StopReason:       reason,
		TotalGenerations: c.total,
		Resets:           c.resets,
		Best:             c.bestRecordLocked(),
		HasChampion:      c.hasChampion,
		History:          append([]model.FitnessSample(nil), c.history...),
		Leaderboard:      c.leaderboard.Entries(),
	}
	if c.hasChampion {
		out.Champion = c.champion
		out.Champion.Genome = genotype.CloneGenome(c.champion.Genome)
	}
	return out
}
