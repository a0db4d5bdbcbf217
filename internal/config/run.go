package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Run holds the parameters of one search run as written in a TOML file.
//
//	strategy = "generational"
//	seed = 7
//	max_generations = 5000
//
//	[generational]
//	pool_size = 10
//	selection = "tournament"
type Run struct {
	RunID          string `toml:"run_id"`
	Strategy       string `toml:"strategy"`
	Seed           int64  `toml:"seed"`
	Workers        int    `toml:"workers"`
	MaxGenerations int    `toml:"max_generations"`
	Resume         bool   `toml:"resume"`

	Lifecycle    Lifecycle    `toml:"lifecycle"`
	Tuning       Tuning       `toml:"tuning"`
	Evolutionary Evolutionary `toml:"evolutionary"`
	Focused      Focused      `toml:"focused"`
	Generational Generational `toml:"generational"`
	Metrics      []Metric     `toml:"metrics"`
}

type Lifecycle struct {
	HighFitness            float64 `toml:"high_fitness"`
	HighStagnation         int     `toml:"high_stagnation"`
	MinTrendSamples        int     `toml:"min_trend_samples"`
	TrendEpsilon           float64 `toml:"trend_epsilon"`
	PlateauStagnation      int     `toml:"plateau_stagnation"` // default 2000; unattended multi-day runs used 50000
	CheckpointEvery        int     `toml:"checkpoint_every"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
}

type Tuning struct {
	TargetTurns         float64 `toml:"target_turns"`
	Playthroughs        int     `toml:"playthroughs"`
	PlaythroughPolicy   string  `toml:"playthrough_policy"`
	PlaythroughParam    float64 `toml:"playthrough_param"`
	RegressionTolerance float64 `toml:"regression_tolerance"`
	LearningRate        float64 `toml:"learning_rate"`
	MomentumFactor      float64 `toml:"momentum_factor"`
	Alpha               float64 `toml:"alpha"`
	JumpEvery           int     `toml:"jump_every"`
}

type Evolutionary struct {
	Children     int     `toml:"children"`
	MutationRate float64 `toml:"mutation_rate"`
}

type Focused struct {
	TrialsPerRound int `toml:"trials_per_round"`
}

type Generational struct {
	PoolSize       int    `toml:"pool_size"`
	Selection      string `toml:"selection"`
	TournamentSize int    `toml:"tournament_size"`
	RestartAfter   int    `toml:"restart_after"`
}

// Metric toggles or reweights a registered fitness metric.
type Metric struct {
	Name    string   `toml:"name"`
	Enabled *bool    `toml:"enabled"`
	Weight  *float64 `toml:"weight"`
}

// DefaultRun is the run used when no file is given.
func DefaultRun() Run {
	return Run{Strategy: "evolutionary", Seed: 1}
}

// LoadRun decodes path over DefaultRun. Unknown keys are rejected.
func LoadRun(path string) (Run, error) {
	run := DefaultRun()
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, err
	}
	md, err := toml.Decode(string(data), &run)
	if err != nil {
		return Run{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Run{}, fmt.Errorf("decode %s: unknown key %s", path, undecoded[0])
	}
	return run, run.Validate()
}

// WriteRun encodes run as TOML.
func WriteRun(path string, run Run) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(run); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r Run) Validate() error {
	if r.Strategy == "" {
		return errors.New("strategy is required")
	}
	if r.MaxGenerations < 0 {
		return errors.New("max generations must be >= 0")
	}
	if r.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	for _, m := range r.Metrics {
		if m.Name == "" {
			return errors.New("metric name is required")
		}
		if m.Weight != nil && *m.Weight < 0 {
			return fmt.Errorf("metric %s weight must be >= 0", m.Name)
		}
	}
	return nil
}
