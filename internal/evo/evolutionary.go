package evo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/search"
)

const (
	DefaultChildren   = 5
	RecentCapacity    = 100
	defaultMutateRate = 0.3
	evolutionaryLabel = "evolutionary"
)

// Evolutionary is a (1+λ) strategy: every generation mutates Children
// offspring from the current best and greedily keeps any that beat it.
// Mutation strength decays with the generation count down to MinStrength.
type Evolutionary struct {
	Rand         *rand.Rand
	Evaluator    search.Evaluator
	Children     int
	MutationRate float64
	MinStrength  float64
	Workers      int
	mu           sync.Mutex
}

type evolutionaryMemory struct {
	recent []float64
}

func (m *evolutionaryMemory) CloneMemory() search.Memory {
	return &evolutionaryMemory{recent: append([]float64(nil), m.recent...)}
}

func (m *evolutionaryMemory) record(fitness float64) {
	m.recent = append(m.recent, fitness)
	if len(m.recent) > RecentCapacity {
		m.recent = m.recent[len(m.recent)-RecentCapacity:]
	}
}

func (e *Evolutionary) Name() string {
	return evolutionaryLabel
}

func (e *Evolutionary) validate() error {
	if e == nil || e.Rand == nil {
		return errors.New("random source is required")
	}
	if e.Evaluator == nil {
		return errors.New("evaluator is required")
	}
	if e.Children < 0 {
		return errors.New("children must be >= 0")
	}
	if e.MutationRate < 0 || e.MutationRate > 1 {
		return errors.New("mutation rate must be within [0,1]")
	}
	return nil
}

// Strength is the mutation strength used at generation.
func (e *Evolutionary) Strength(generation int) float64 {
	floor := e.MinStrength
	if floor <= 0 {
		floor = search.MinStrength
	}
	return math.Max(floor, 1/(1+float64(generation)/10))
}

// Recent returns the rolling window of evaluated fitness values.
func (e *Evolutionary) Recent(state search.State) []float64 {
	mem, ok := state.Memory.(*evolutionaryMemory)
	if !ok || mem == nil {
		return nil
	}
	return append([]float64(nil), mem.recent...)
}

func (e *Evolutionary) Step(ctx context.Context, state search.State) (search.State, search.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return state, search.Candidate{}, err
	}
	if err := e.validate(); err != nil {
		return state, search.Candidate{}, err
	}

	next := state.Next()
	mem, ok := next.Memory.(*evolutionaryMemory)
	if !ok || mem == nil {
		mem = &evolutionaryMemory{}
	}
	difficulty := next.Difficulty()

	// The seed genome has no score until evaluated once.
	seeded := false
	if next.Evaluations == 0 {
		result := e.Evaluator.Evaluate(next.Best, difficulty)
		seeded = next.Offer(search.Candidate{Genome: next.Best, Fitness: result.Total, Result: result, Label: evolutionaryLabel})
		mem.record(result.Total)
	}

	children := e.Children
	if children == 0 {
		children = DefaultChildren
	}
	rate := e.MutationRate
	if rate == 0 {
		rate = defaultMutateRate
	}
	intensity := genotype.Intensity{Rate: rate, Strength: e.Strength(next.Generation)}

	e.mu.Lock()
	offspring := make([]model.Genome, children)
	for i := range offspring {
		offspring[i] = genotype.Mutate(e.Rand, next.Best, intensity)
	}
	e.mu.Unlock()

	scored, err := evaluateAll(ctx, e.Evaluator, offspring, difficulty, e.Workers)
	if err != nil {
		return state, search.Candidate{}, err
	}
	for _, s := range scored {
		mem.record(s.Fitness)
	}
	improved, candidate := offerAll(&next, scored, evolutionaryLabel)
	next.Settle(improved || seeded)
	next.Memory = mem
	return next, candidate, nil
}

// Reset clears the evaluation window.
func (e *Evolutionary) Reset(state search.State) search.State {
	next := state.Clone()
	next.Memory = nil
	return next
}
