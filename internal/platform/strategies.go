package platform

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"equilibrium/internal/evo"
	"equilibrium/internal/fitness"
	"equilibrium/internal/oracle"
	"equilibrium/internal/search"
	"equilibrium/internal/tuning"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrStrategyExists  = errors.New("strategy already registered")
)

// StrategyConfig carries every strategy knob. Each factory reads the fields
// it understands; zero values select the strategy's defaults.
type StrategyConfig struct {
	Name      string
	Seed      int64
	Evaluator search.Evaluator
	Workers   int

	TargetTurns         float64
	Playthroughs        int
	PlaythroughPolicy   string
	PlaythroughParam    float64
	RegressionTolerance float64

	LearningRate   float64
	MomentumFactor float64
	Alpha          float64
	JumpEvery      int

	Children       int
	MutationRate   float64
	TrialsPerRound int
	PoolSize       int
	Selector       string
	TournamentSize int
	RestartAfter   int
}

type StrategyFactory func(cfg StrategyConfig) (search.Strategy, error)

var strategyRegistry = struct {
	mu sync.RWMutex
	m  map[string]StrategyFactory
}{
	m: map[string]StrategyFactory{
		"hillclimb":    newHillClimber,
		"gradient":     newGradientDescent,
		"evolutionary": newEvolutionary,
		"focused":      newFocused,
		"generational": newGenerational,
	},
}

// RegisterStrategy adds a named strategy factory.
func RegisterStrategy(name string, factory StrategyFactory) error {
	if name == "" {
		return errors.New("strategy name is required")
	}
	if factory == nil {
		return errors.New("strategy factory is required")
	}
	strategyRegistry.mu.Lock()
	defer strategyRegistry.mu.Unlock()
	if _, exists := strategyRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	strategyRegistry.m[name] = factory
	return nil
}

// Strategies lists registered strategy names, sorted.
func Strategies() []string {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()
	names := make([]string, 0, len(strategyRegistry.m))
	for name := range strategyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStrategy builds the named strategy. A nil evaluator selects the default
// fitness evaluator.
func NewStrategy(cfg StrategyConfig) (search.Strategy, error) {
	strategyRegistry.mu.RLock()
	factory, ok := strategyRegistry.m[cfg.Name]
	strategyRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, cfg.Name)
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = fitness.NewEvaluator(nil)
	}
	return factory(cfg)
}

func sessionConfig(cfg StrategyConfig) oracle.SessionConfig {
	session := oracle.DefaultSessionConfig()
	if cfg.Playthroughs > 0 {
		session.Playthroughs = cfg.Playthroughs
	}
	return session
}

func targetTurns(cfg StrategyConfig) float64 {
	if cfg.TargetTurns > 0 {
		return cfg.TargetTurns
	}
	return tuning.DefaultTargetTurns
}

func newHillClimber(cfg StrategyConfig) (search.Strategy, error) {
	policy, err := tuning.PlaythroughPolicyFromConfig(cfg.PlaythroughPolicy, cfg.PlaythroughParam)
	if err != nil {
		return nil, err
	}
	tolerance := cfg.RegressionTolerance
	if tolerance == 0 {
		tolerance = 2
	}
	return &tuning.HillClimber{
		Rand:                rand.New(rand.NewSource(cfg.Seed)),
		Evaluator:           cfg.Evaluator,
		Session:             sessionConfig(cfg),
		Policy:              policy,
		TargetTurns:         targetTurns(cfg),
		RegressionTolerance: tolerance,
	}, nil
}

func newGradientDescent(cfg StrategyConfig) (search.Strategy, error) {
	policy, err := tuning.PlaythroughPolicyFromConfig(cfg.PlaythroughPolicy, cfg.PlaythroughParam)
	if err != nil {
		return nil, err
	}
	g := &tuning.GradientDescent{
		Rand:            rand.New(rand.NewSource(cfg.Seed)),
		Evaluator:       cfg.Evaluator,
		Session:         sessionConfig(cfg),
		Policy:          policy,
		TargetTurns:     targetTurns(cfg),
		LearningRate:    2.0,
		MomentumFactor:  0.3,
		Alpha:           0.6,
		ErrorDeadband:   2,
		JumpEvery:       10,
		InitialVariance: 1,
		LeaderboardSize: 10,
	}
	if cfg.LearningRate > 0 {
		g.LearningRate = cfg.LearningRate
	}
	if cfg.MomentumFactor > 0 {
		g.MomentumFactor = cfg.MomentumFactor
	}
	if cfg.Alpha > 0 {
		g.Alpha = cfg.Alpha
	}
	if cfg.JumpEvery > 0 {
		g.JumpEvery = cfg.JumpEvery
	}
	return g, nil
}

func newEvolutionary(cfg StrategyConfig) (search.Strategy, error) {
	return &evo.Evolutionary{
		Rand:         rand.New(rand.NewSource(cfg.Seed)),
		Evaluator:    cfg.Evaluator,
		Children:     cfg.Children,
		MutationRate: cfg.MutationRate,
		Workers:      cfg.Workers,
	}, nil
}

func newFocused(cfg StrategyConfig) (search.Strategy, error) {
	return &evo.Focused{
		Rand:           rand.New(rand.NewSource(cfg.Seed)),
		Evaluator:      cfg.Evaluator,
		TrialsPerRound: cfg.TrialsPerRound,
		MutationRate:   cfg.MutationRate,
	}, nil
}

func newGenerational(cfg StrategyConfig) (search.Strategy, error) {
	selector, err := evo.SelectorFromConfig(cfg.Selector, cfg.TournamentSize)
	if err != nil {
		return nil, err
	}
	return &evo.Generational{
		Rand:         rand.New(rand.NewSource(cfg.Seed)),
		Evaluator:    cfg.Evaluator,
		Selector:     selector,
		PoolSize:     cfg.PoolSize,
		Children:     cfg.Children,
		RestartAfter: cfg.RestartAfter,
		Workers:      cfg.Workers,
	}, nil
}
