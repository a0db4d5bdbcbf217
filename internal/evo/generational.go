package evo

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/search"
)

const (
	DefaultPoolSize      = 10
	DefaultChampionEvery = 100
	DefaultRestartAfter  = 5000
	generationalLabel    = "generational"
	championLabel        = "champion"
	randomLabel          = "random"
)

// Generational breeds an elite pool. Mutation intensity follows the
// stagnation schedule; the champion is periodically reintroduced as a
// parent and long plateaus inject random genomes. Every RestartAfter
// stagnant generations the pool restarts from the baseline genome.
type Generational struct {
	Rand          *rand.Rand
	Evaluator     search.Evaluator
	Selector      Selector
	PoolSize      int
	Children      int
	ChampionEvery int
	RestartAfter  int
	Workers       int
	mu            sync.Mutex
}

type generationalMemory struct {
	pool     *search.Leaderboard
	restarts int
}

func (m *generationalMemory) CloneMemory() search.Memory {
	return &generationalMemory{pool: m.pool.Clone(), restarts: m.restarts}
}

func (g *Generational) Name() string {
	return generationalLabel
}

func (g *Generational) validate() error {
	if g == nil || g.Rand == nil {
		return errors.New("random source is required")
	}
	if g.Evaluator == nil {
		return errors.New("evaluator is required")
	}
	if g.PoolSize < 0 {
		return errors.New("pool size must be >= 0")
	}
	if g.Children < 0 {
		return errors.New("children must be >= 0")
	}
	if g.RestartAfter < 0 {
		return errors.New("restart threshold must be >= 0")
	}
	return nil
}

// Pool returns the current elite pool, best first.
func (g *Generational) Pool(state search.State) []model.LeaderboardEntry {
	mem, ok := state.Memory.(*generationalMemory)
	if !ok || mem == nil {
		return nil
	}
	return mem.pool.Entries()
}

// Restarts reports how many times the pool restarted from baseline.
func (g *Generational) Restarts(state search.State) int {
	mem, ok := state.Memory.(*generationalMemory)
	if !ok || mem == nil {
		return 0
	}
	return mem.restarts
}

func (g *Generational) Step(ctx context.Context, state search.State) (search.State, search.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return state, search.Candidate{}, err
	}
	if err := g.validate(); err != nil {
		return state, search.Candidate{}, err
	}

	next := state.Next()
	difficulty := next.Difficulty()
	mem, ok := next.Memory.(*generationalMemory)
	if !ok || mem == nil {
		mem = &generationalMemory{pool: search.NewLeaderboard(g.poolSize())}
	}
	seeded := false
	if mem.pool.Len() == 0 {
		seeded = g.seed(&next, mem, next.Best, difficulty)
	}

	offspring, labels, err := g.breed(next, mem)
	if err != nil {
		return state, search.Candidate{}, err
	}
	scored, err := evaluateAll(ctx, g.Evaluator, offspring, difficulty, g.Workers)
	if err != nil {
		return state, search.Candidate{}, err
	}

	improved := false
	var candidate search.Candidate
	for i, s := range scored {
		mem.pool.Add(labels[i], next.Generation, s.Fitness, s.Genome)
		accepted, c := offerAll(&next, scored[i:i+1], labels[i])
		switch {
		case accepted:
			improved = true
			candidate = c
		case !improved && (i == 0 || c.Fitness > candidate.Fitness):
			candidate = c
		}
	}
	next.Settle(improved || seeded)

	restartAfter := g.RestartAfter
	if restartAfter == 0 {
		restartAfter = DefaultRestartAfter
	}
	// Stagnation keeps counting across restarts so plateau resets still see it.
	if next.Stagnation > 0 && next.Stagnation%restartAfter == 0 {
		mem.pool = search.NewLeaderboard(g.poolSize())
		mem.restarts++
		g.seed(&next, mem, genotype.Baseline(), difficulty)
	}

	next.Memory = mem
	return next, candidate, nil
}

// Reset empties the pool; the next step reseeds it from the state's best.
func (g *Generational) Reset(state search.State) search.State {
	next := state.Clone()
	next.Memory = nil
	return next
}

func (g *Generational) poolSize() int {
	if g.PoolSize > 0 {
		return g.PoolSize
	}
	return DefaultPoolSize
}

func (g *Generational) seed(state *search.State, mem *generationalMemory, genome model.Genome, difficulty float64) bool {
	result := g.Evaluator.Evaluate(genome, difficulty)
	mem.pool.Add(generationalLabel, state.Generation, result.Total, genome)
	return state.Offer(search.Candidate{Genome: genome, Fitness: result.Total, Result: result, Label: generationalLabel})
}

// injection returns the label of the parent source forced this generation,
// if any.
func (g *Generational) injection(state search.State) string {
	every := g.ChampionEvery
	if every == 0 {
		every = DefaultChampionEvery
	}
	switch {
	case state.HasChampion() && state.Generation%every == 0:
		return championLabel
	case state.Stagnation > 500 && state.Generation%10 == 0:
		return randomLabel
	case state.Stagnation > 200 && state.Generation%20 == 0:
		return randomLabel
	}
	return ""
}

func (g *Generational) breed(state search.State, mem *generationalMemory) ([]model.Genome, []string, error) {
	children := g.Children
	if children == 0 {
		children = DefaultChildren
	}
	selector := g.Selector
	if selector == nil {
		selector = TournamentSelector{TournamentSize: 3}
	}
	intensity := ScheduleFor(state.Stagnation)
	ranked := scoredFromEntries(mem.pool.Entries())

	g.mu.Lock()
	defer g.mu.Unlock()

	offspring := make([]model.Genome, 0, children)
	labels := make([]string, 0, children)
	for i := 0; i < children; i++ {
		if i == 0 {
			switch g.injection(state) {
			case championLabel:
				offspring = append(offspring, genotype.Mutate(g.Rand, state.Champion, intensity))
				labels = append(labels, championLabel)
				continue
			case randomLabel:
				offspring = append(offspring, genotype.Random(g.Rand))
				labels = append(labels, randomLabel)
				continue
			}
		}
		a, err := selector.PickParent(g.Rand, ranked)
		if err != nil {
			return nil, nil, err
		}
		b, err := selector.PickParent(g.Rand, ranked)
		if err != nil {
			return nil, nil, err
		}
		child := genotype.Mutate(g.Rand, genotype.Crossover(g.Rand, a, b), intensity)
		offspring = append(offspring, child)
		labels = append(labels, generationalLabel)
	}
	return offspring, labels, nil
}
