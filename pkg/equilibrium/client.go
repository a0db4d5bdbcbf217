// Package equilibrium is the public entry point for running balance searches
// and reading their results.
package equilibrium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"equilibrium/internal/config"
	"equilibrium/internal/fitness"
	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/platform"
	"equilibrium/internal/search"
	"equilibrium/internal/stats"
	"equilibrium/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDataDir       = "data"
)

type Options struct {
	StoreKind string
	StorePath string
	// BackupDir receives the best record when the file store's data
	// directory cannot be written.
	BackupDir     string
	BenchmarksDir string
	ExportsDir    string
	Logger        *slog.Logger
	LogEvery      int
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	mu    sync.Mutex
	polis *platform.Polis

	logEvery      int
	benchmarksDir string
	exportsDir    string
}

// RunRequest is a run file plus the caller's observer.
type RunRequest struct {
	config.Run
	Observer search.Observer
}

type RunSummary struct {
	RunID            string
	Strategy         string
	StopReason       string
	ArtifactsDir     string
	Generations      int
	Resets           int
	FinalBestFitness float64
	ChampionFitness  float64
	HasChampion      bool
	History          []model.FitnessSample
	Duration         time.Duration
}

type RunsRequest struct {
	Limit int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// Source selects a configuration: "baseline", "best" or "champion".
type Source string

const (
	SourceBaseline Source = "baseline"
	SourceBest     Source = "best"
	SourceChampion Source = "champion"
)

type EvaluateRequest struct {
	Source Source
	// Difficulty overrides the multiplier derived from the stored champion.
	Difficulty float64
	Metrics    []config.Metric
}

type EvaluateSummary struct {
	Source    Source
	Genome    model.Genome
	Result    model.FitnessResult
	Quality   string
	Breakdown string
}

type ReportRequest struct {
	Source Source
	OutDir string
}

type ReportSummary struct {
	Source    Source
	Directory string
	Fitness   float64
	Quality   string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = "memory"
	}
	storePath := opts.StorePath
	if storePath == "" && storeKind == "file" {
		storePath = defaultDataDir
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, storePath, storage.WithBackupDir(opts.BackupDir))
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		logEvery:      opts.LogEvery,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Polis exposes the run registry for control commands and status serving.
func (c *Client) Polis(ctx context.Context) (*platform.Polis, error) {
	return c.ensurePolis(ctx)
}

func (c *Client) Store() storage.Store {
	return c.store
}

// Run executes one search to completion and writes its artifacts. A canceled
// run still writes artifacts and returns a nil error.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Strategy == "" {
		req.Strategy = config.DefaultRun().Strategy
	}
	if err := req.Validate(); err != nil {
		return RunSummary{}, err
	}
	evaluator, err := evaluatorFor(req.Metrics)
	if err != nil {
		return RunSummary{}, err
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = RunID(req.Strategy, req.Seed, started)
	}

	result, runErr := p.RunSearch(ctx, c.platformRunConfig(runID, req, evaluator))
	if result.RunID == "" {
		return RunSummary{}, runErr
	}
	return c.finishRun(runID, req.Run, started, result, runErr)
}

// Supervise runs a search under a platform.Supervisor: a run that fails is
// restarted with backoff and resumes from the persisted best configuration.
// The supervisor is passed to onStart so callers can expose its status.
func (c *Client) Supervise(ctx context.Context, req RunRequest, policy platform.SupervisorPolicy, onStart func(*platform.Supervisor)) (RunSummary, error) {
	if req.Strategy == "" {
		req.Strategy = config.DefaultRun().Strategy
	}
	if err := req.Validate(); err != nil {
		return RunSummary{}, err
	}
	evaluator, err := evaluatorFor(req.Metrics)
	if err != nil {
		return RunSummary{}, err
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = RunID(req.Strategy, req.Seed, started)
	}
	supervisor := platform.NewSupervisor(p, policy, platform.SupervisorHooks{
		OnRunRestart: func(runID string, err error, restarts int) {
			c.logger.Warn("supervised run restarting", "run_id", runID, "restarts", restarts, "err", err)
		},
	})
	if err := supervisor.Start(ctx, c.platformRunConfig(runID, req, evaluator)); err != nil {
		return RunSummary{}, err
	}
	if onStart != nil {
		onStart(supervisor)
	}
	result, status, _ := supervisor.Wait(runID)
	var runErr error
	if status.PermanentFailed {
		runErr = fmt.Errorf("run %s failed after %d restarts: %s", runID, status.RestartCount, status.LastError)
	}
	if result.RunID == "" {
		return RunSummary{}, runErr
	}
	return c.finishRun(runID, req.Run, started, result, runErr)
}

// StopRun asks an active run to stop and flush.
func (c *Client) StopRun(ctx context.Context, runID string) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.StopRun(runID)
}

// ResetRun forces an active run through a champion promotion and restart.
func (c *Client) ResetRun(ctx context.Context, runID string) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.ResetRun(runID)
}

// RunID is the default identifier of a run started at t.
func RunID(strategy string, seed int64, t time.Time) string {
	return fmt.Sprintf("%s-%d-%d", strategy, seed, t.Unix())
}

func (c *Client) platformRunConfig(runID string, req RunRequest, evaluator search.Evaluator) platform.RunConfig {
	return platform.RunConfig{
		RunID:                  runID,
		Strategy:               strategyConfig(req.Run, evaluator),
		Resume:                 req.Resume,
		Observer:               req.Observer,
		HighFitness:            req.Lifecycle.HighFitness,
		HighStagnation:         req.Lifecycle.HighStagnation,
		MinTrendSamples:        req.Lifecycle.MinTrendSamples,
		TrendEpsilon:           req.Lifecycle.TrendEpsilon,
		PlateauStagnation:      req.Lifecycle.PlateauStagnation,
		CheckpointEvery:        req.Lifecycle.CheckpointEvery,
		MaxGenerations:         req.MaxGenerations,
		MaxConsecutiveFailures: req.Lifecycle.MaxConsecutiveFailures,
	}
}

// finishRun writes the run artifacts and index entry. runErr is returned
// alongside the summary so callers see both.
func (c *Client) finishRun(runID string, run config.Run, started time.Time, result platform.RunResult, runErr error) (RunSummary, error) {
	var champion *model.Champion
	if result.HasChampion {
		champion = &result.Champion
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config:      runConfigRecord(runID, run),
		StopReason:  string(result.StopReason),
		Generations: result.TotalGenerations,
		Resets:      result.Resets,
		History:     result.History,
		Leaderboard: result.Leaderboard,
		Best:        result.Best,
		Champion:    champion,
	})
	if err != nil {
		return RunSummary{}, errors.Join(runErr, err)
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:            runID,
		Strategy:         result.Strategy,
		Seed:             run.Seed,
		Generations:      result.TotalGenerations,
		Resets:           result.Resets,
		StopReason:       string(result.StopReason),
		FinalBestFitness: result.Best.Fitness,
		ChampionFitness:  result.Champion.Fitness,
		CreatedAtUTC:     started.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, errors.Join(runErr, err)
	}

	return RunSummary{
		RunID:            runID,
		Strategy:         result.Strategy,
		StopReason:       string(result.StopReason),
		ArtifactsDir:     filepath.Clean(runDir),
		Generations:      result.TotalGenerations,
		Resets:           result.Resets,
		FinalBestFitness: result.Best.Fitness,
		ChampionFitness:  result.Champion.Fitness,
		HasChampion:      result.HasChampion,
		History:          result.History,
		Duration:         time.Since(started),
	}, runErr
}

// Evaluate scores a stored or baseline configuration.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	if req.Source == "" {
		req.Source = SourceBaseline
	}
	g, err := c.genomeFor(ctx, req.Source)
	if err != nil {
		return EvaluateSummary{}, err
	}
	evaluator, err := evaluatorFor(req.Metrics)
	if err != nil {
		return EvaluateSummary{}, err
	}
	difficulty := req.Difficulty
	if difficulty <= 0 {
		difficulty = 1
		champion, ok, err := c.store.GetChampion(ctx)
		if err != nil {
			c.logger.Warn("load champion failed", "err", err)
		}
		if ok {
			difficulty = fitness.Difficulty(champion.Fitness)
		}
	}
	result := evaluator.Evaluate(g, difficulty)
	return EvaluateSummary{
		Source:    req.Source,
		Genome:    g,
		Result:    result,
		Quality:   fitness.Quality(result.Total),
		Breakdown: fitness.Breakdown(result),
	}, nil
}

// Report writes the progression report of a configuration into OutDir.
func (c *Client) Report(ctx context.Context, req ReportRequest) (ReportSummary, error) {
	if req.Source == "" {
		req.Source = SourceBest
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	eval, err := c.Evaluate(ctx, EvaluateRequest{Source: req.Source})
	if err != nil {
		return ReportSummary{}, err
	}
	dir := filepath.Join(req.OutDir, "report_"+string(req.Source))
	if err := mkdirAll(dir); err != nil {
		return ReportSummary{}, err
	}
	report := stats.BuildProgressionReport(eval.Genome, eval.Result)
	if req.Source == SourceBest {
		report.History = c.bestHistory(ctx)
	}
	if err := stats.WriteProgressionReportFiles(dir, report); err != nil {
		return ReportSummary{}, err
	}
	return ReportSummary{
		Source:    req.Source,
		Directory: filepath.Clean(dir),
		Fitness:   eval.Result.Total,
		Quality:   eval.Quality,
	}, nil
}

// bestHistory loads the improvement curve of the run that produced the stored
// best configuration. Missing data yields nil.
func (c *Client) bestHistory(ctx context.Context) []model.FitnessSample {
	best, ok, err := c.store.GetBest(ctx)
	if err != nil || !ok || best.RunID == "" {
		return nil
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, best.RunID)
	if err != nil {
		c.logger.Warn("load fitness history failed", "run_id", best.RunID, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return history
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.benchmarksDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Champion(ctx context.Context) (model.Champion, bool, error) {
	return c.store.GetChampion(ctx)
}

func (c *Client) ArchivedChampions(ctx context.Context) ([]model.Champion, error) {
	return c.store.ListArchivedChampions(ctx)
}

func (c *Client) Best(ctx context.Context) (model.BestRecord, bool, error) {
	return c.store.GetBest(ctx)
}

func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]model.FitnessSample, bool, error) {
	if runID == "" {
		return nil, false, errors.New("run id is required")
	}
	return c.store.GetFitnessHistory(ctx, runID)
}

func (c *Client) Leaderboard(ctx context.Context, runID string) ([]model.LeaderboardEntry, bool, error) {
	if runID == "" {
		return nil, false, errors.New("run id is required")
	}
	return c.store.GetLeaderboard(ctx, runID)
}

func (c *Client) genomeFor(ctx context.Context, source Source) (model.Genome, error) {
	switch source {
	case SourceBaseline:
		return genotype.Baseline(), nil
	case SourceBest:
		best, ok, err := c.store.GetBest(ctx)
		if err != nil {
			return model.Genome{}, err
		}
		if !ok {
			return model.Genome{}, errors.New("no best configuration stored")
		}
		return best.Genome, nil
	case SourceChampion:
		champion, ok, err := c.store.GetChampion(ctx)
		if err != nil {
			return model.Genome{}, err
		}
		if !ok {
			return model.Genome{}, errors.New("no champion stored")
		}
		return champion.Genome, nil
	default:
		return model.Genome{}, fmt.Errorf("unsupported source: %s", source)
	}
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{
		Store:    c.store,
		Logger:   c.logger,
		Observer: platform.LogObserver{Logger: c.logger, Every: c.logEvery},
	})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}

func evaluatorFor(metrics []config.Metric) (*fitness.Evaluator, error) {
	registry := fitness.DefaultRegistry()
	for _, m := range metrics {
		if m.Enabled != nil {
			if err := registry.SetEnabled(m.Name, *m.Enabled); err != nil {
				return nil, err
			}
		}
		if m.Weight != nil {
			if err := registry.SetWeight(m.Name, *m.Weight); err != nil {
				return nil, err
			}
		}
	}
	return fitness.NewEvaluator(registry), nil
}

func strategyConfig(run config.Run, evaluator search.Evaluator) platform.StrategyConfig {
	return platform.StrategyConfig{
		Name:                run.Strategy,
		Seed:                run.Seed,
		Evaluator:           evaluator,
		Workers:             run.Workers,
		TargetTurns:         run.Tuning.TargetTurns,
		Playthroughs:        run.Tuning.Playthroughs,
		PlaythroughPolicy:   run.Tuning.PlaythroughPolicy,
		PlaythroughParam:    run.Tuning.PlaythroughParam,
		RegressionTolerance: run.Tuning.RegressionTolerance,
		LearningRate:        run.Tuning.LearningRate,
		MomentumFactor:      run.Tuning.MomentumFactor,
		Alpha:               run.Tuning.Alpha,
		JumpEvery:           run.Tuning.JumpEvery,
		Children:            run.Evolutionary.Children,
		MutationRate:        run.Evolutionary.MutationRate,
		TrialsPerRound:      run.Focused.TrialsPerRound,
		PoolSize:            run.Generational.PoolSize,
		Selector:            run.Generational.Selection,
		TournamentSize:      run.Generational.TournamentSize,
		RestartAfter:        run.Generational.RestartAfter,
	}
}

func runConfigRecord(runID string, run config.Run) stats.RunConfig {
	return stats.RunConfig{
		RunID:               runID,
		Strategy:            run.Strategy,
		Seed:                run.Seed,
		Workers:             run.Workers,
		MaxGenerations:      run.MaxGenerations,
		Resume:              run.Resume,
		TargetTurns:         run.Tuning.TargetTurns,
		Playthroughs:        run.Tuning.Playthroughs,
		PlaythroughPolicy:   run.Tuning.PlaythroughPolicy,
		PlaythroughParam:    run.Tuning.PlaythroughParam,
		RegressionTolerance: run.Tuning.RegressionTolerance,
		LearningRate:        run.Tuning.LearningRate,
		MomentumFactor:      run.Tuning.MomentumFactor,
		Children:            run.Evolutionary.Children,
		MutationRate:        run.Evolutionary.MutationRate,
		TrialsPerRound:      run.Focused.TrialsPerRound,
		PoolSize:            run.Generational.PoolSize,
		Selection:           run.Generational.Selection,
		RestartAfter:        run.Generational.RestartAfter,
		HighFitness:         run.Lifecycle.HighFitness,
		HighStagnation:      run.Lifecycle.HighStagnation,
		PlateauStagnation:   run.Lifecycle.PlateauStagnation,
		CheckpointEvery:     run.Lifecycle.CheckpointEvery,
	}
}
