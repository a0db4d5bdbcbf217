package evo

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/search"
)

const (
	DefaultTrialsPerRound = 20
	DefaultBridgeSteps    = 20
	focusedBoardSize      = 20
	minResultsForFocus    = 10
	bridgeMinTested       = 100
	bridgeFailingBest     = 50.0
	bridgeDonorBest       = 80.0
	masteredBest          = 95.0
	masteredPlacements    = 2
	exhaustedTested       = 200
	exhaustedBest         = 90.0
)

// Archetype is a named region of the parameter space.
type Archetype struct {
	Name   string
	Bounds genotype.Bounds
}

// DefaultArchetypes returns the built-in archetypes. Chaos is unbounded.
func DefaultArchetypes() []Archetype {
	return []Archetype{
		{Name: "GlassCannon", Bounds: genotype.Bounds{
			genotype.ParamBaseHP:  {Min: 15, Max: 22},
			genotype.ParamBaseSTR: {Min: 4, Max: 5},
			genotype.ParamBaseDEF: {Min: 0, Max: 1},
		}},
		{Name: "Swarm", Bounds: genotype.Bounds{
			genotype.ParamEnemyBaseHP:     {Min: 3, Max: 5},
			genotype.ParamEnemyHPScaling:  {Min: 0.5, Max: 1.2},
			genotype.ParamEnemyBaseDamage: {Min: 1, Max: 2},
		}},
		{Name: "Hunter", Bounds: genotype.Bounds{
			genotype.ParamBaseGold:          {Min: 14, Max: 20},
			genotype.ParamGoldScaling:       {Min: 4, Max: 6},
			genotype.ParamEquipmentDropRate: {Min: 25, Max: 40},
		}},
		{Name: "Tank", Bounds: genotype.Bounds{
			genotype.ParamBaseHP:     {Min: 30, Max: 40},
			genotype.ParamHPPerLevel: {Min: 3, Max: 5},
			genotype.ParamBaseSTR:    {Min: 2, Max: 3},
			genotype.ParamBaseDEF:    {Min: 2, Max: 3},
		}},
		{Name: "Chaos", Bounds: genotype.Bounds{}},
	}
}

// ArchetypeStats summarizes the trials run inside one archetype.
type ArchetypeStats struct {
	Name       string
	Tested     int
	Best       float64
	BestGenome model.Genome
	Bridged    bool
}

// Focused spends each round on the weakest archetype: the one with the
// fewest placements in the global top 20. Archetypes that keep failing are
// bridged toward a stronger archetype by linear interpolation.
type Focused struct {
	Rand           *rand.Rand
	Evaluator      search.Evaluator
	Archetypes     []Archetype
	TrialsPerRound int
	BridgeSteps    int
	MutationRate   float64
	mu             sync.Mutex
}

type focusedMemory struct {
	stats   map[string]*ArchetypeStats
	board   *search.Leaderboard
	results int
	rounds  int
}

func (m *focusedMemory) CloneMemory() search.Memory {
	cp := &focusedMemory{
		stats:   make(map[string]*ArchetypeStats, len(m.stats)),
		board:   m.board.Clone(),
		results: m.results,
		rounds:  m.rounds,
	}
	for k, v := range m.stats {
		s := *v
		s.BestGenome = genotype.CloneGenome(v.BestGenome)
		cp.stats[k] = &s
	}
	return cp
}

func (f *Focused) Name() string {
	return "focused"
}

func (f *Focused) validate() error {
	if f == nil || f.Rand == nil {
		return errors.New("random source is required")
	}
	if f.Evaluator == nil {
		return errors.New("evaluator is required")
	}
	if f.TrialsPerRound < 0 {
		return errors.New("trials per round must be >= 0")
	}
	if f.BridgeSteps < 0 {
		return errors.New("bridge steps must be >= 0")
	}
	return nil
}

func (f *Focused) archetypes() []Archetype {
	if len(f.Archetypes) > 0 {
		return f.Archetypes
	}
	return DefaultArchetypes()
}

// Stats returns per-archetype statistics in archetype order.
func (f *Focused) Stats(state search.State) []ArchetypeStats {
	mem, ok := state.Memory.(*focusedMemory)
	if !ok || mem == nil {
		return nil
	}
	out := make([]ArchetypeStats, 0, len(mem.stats))
	for _, a := range f.archetypes() {
		if s, ok := mem.stats[a.Name]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Leaderboard returns the global top entries labelled by archetype.
func (f *Focused) Leaderboard(state search.State) []model.LeaderboardEntry {
	mem, ok := state.Memory.(*focusedMemory)
	if !ok || mem == nil {
		return nil
	}
	return mem.board.Entries()
}

func (f *Focused) Step(ctx context.Context, state search.State) (search.State, search.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return state, search.Candidate{}, err
	}
	if err := f.validate(); err != nil {
		return state, search.Candidate{}, err
	}

	next := state.Next()
	mem, ok := next.Memory.(*focusedMemory)
	if !ok || mem == nil {
		mem = f.newMemory()
	}
	mem.rounds++

	target := f.weakest(mem)
	stats := mem.stats[target.Name]
	trials := f.trials(mem, target, stats, next.Strength)

	scored, err := evaluateAll(ctx, f.Evaluator, trials, next.Difficulty(), 1)
	if err != nil {
		return state, search.Candidate{}, err
	}
	for _, s := range scored {
		mem.results++
		stats.Tested++
		if stats.Tested == 1 || s.Fitness > stats.Best {
			stats.Best = s.Fitness
			stats.BestGenome = genotype.CloneGenome(s.Genome)
		}
		mem.board.Add(target.Name, next.Generation, s.Fitness, s.Genome)
	}

	improved, candidate := offerAll(&next, scored, target.Name)
	next.Settle(improved)
	next.Memory = mem
	return next, candidate, nil
}

// Reset forgets every archetype's history and the global board.
func (f *Focused) Reset(state search.State) search.State {
	next := state.Clone()
	next.Memory = nil
	return next
}

func (f *Focused) newMemory() *focusedMemory {
	mem := &focusedMemory{
		stats: make(map[string]*ArchetypeStats),
		board: search.NewLeaderboard(focusedBoardSize),
	}
	for _, a := range f.archetypes() {
		mem.stats[a.Name] = &ArchetypeStats{Name: a.Name}
	}
	return mem
}

// weakest picks the archetype to focus on this round.
func (f *Focused) weakest(mem *focusedMemory) Archetype {
	archetypes := f.archetypes()
	if mem.results < minResultsForFocus {
		return archetypes[0]
	}

	eligible := make([]Archetype, 0, len(archetypes))
	for _, a := range archetypes {
		if !f.excluded(mem, a) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		least := archetypes[0]
		for _, a := range archetypes[1:] {
			if mem.stats[a.Name].Tested < mem.stats[least.Name].Tested {
				least = a
			}
		}
		return least
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ci := mem.board.CountLabel(eligible[i].Name, focusedBoardSize)
		cj := mem.board.CountLabel(eligible[j].Name, focusedBoardSize)
		if ci != cj {
			return ci < cj
		}
		return mem.stats[eligible[i].Name].Best < mem.stats[eligible[j].Name].Best
	})
	return eligible[0]
}

// excluded reports whether an archetype is mastered or exhausted.
func (f *Focused) excluded(mem *focusedMemory, a Archetype) bool {
	s := mem.stats[a.Name]
	if s.Best > masteredBest && mem.board.CountLabel(a.Name, 10) >= masteredPlacements {
		return true
	}
	return s.Tested > exhaustedTested && s.Best > exhaustedBest
}

// donor returns the best genome of another archetype that clears the
// bridging bar.
func (f *Focused) donor(mem *focusedMemory, exclude string) (model.Genome, bool) {
	var best *ArchetypeStats
	for _, a := range f.archetypes() {
		s := mem.stats[a.Name]
		if a.Name == exclude || s.Tested == 0 || s.Best <= bridgeDonorBest {
			continue
		}
		if best == nil || s.Best > best.Best {
			best = s
		}
	}
	if best == nil {
		return model.Genome{}, false
	}
	return best.BestGenome, true
}

func (f *Focused) trials(mem *focusedMemory, target Archetype, stats *ArchetypeStats, strength float64) []model.Genome {
	if stats.Tested >= bridgeMinTested && stats.Best < bridgeFailingBest && !stats.Bridged {
		if donor, ok := f.donor(mem, target.Name); ok {
			stats.Bridged = true
			steps := f.BridgeSteps
			if steps == 0 {
				steps = DefaultBridgeSteps
			}
			out := make([]model.Genome, 0, steps)
			for b := 1; b <= steps; b++ {
				out = append(out, genotype.Interpolate(stats.BestGenome, donor, float64(b)/float64(steps)))
			}
			return out
		}
	}

	n := f.TrialsPerRound
	if n == 0 {
		n = DefaultTrialsPerRound
	}
	rate := f.MutationRate
	if rate == 0 {
		rate = defaultMutateRate
	}
	if strength <= 0 {
		strength = search.InitialStrength
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Genome, 0, n)
	for i := 0; i < n; i++ {
		var g model.Genome
		if stats.Tested > 0 && f.Rand.Float64() < 0.7 {
			g = genotype.Mutate(f.Rand, stats.BestGenome, genotype.Intensity{Rate: rate, Strength: strength})
			target.Bounds.Clamp(&g)
		} else {
			g = genotype.RandomWithin(f.Rand, target.Bounds)
		}
		out = append(out, g)
	}
	return out
}
