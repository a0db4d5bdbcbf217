package search

import (
	"math"

	"equilibrium/internal/fitness"
	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

type Phase string

const (
	PhaseExploring Phase = "exploring"
	PhaseImproved  Phase = "improved"
	PhaseStagnant  Phase = "stagnant"
	PhaseResetting Phase = "resetting"
)

const (
	MinStrength     = 0.1
	MaxStrength     = 3.0
	StrengthShrink  = 0.9
	StrengthGrowth  = 1.05
	InitialStrength = 1.0
)

// State is the search state a strategy advances. It is a value: strategies
// receive a copy and return a successor.
type State struct {
	Generation  int
	Best        model.Genome
	BestFitness float64
	BestResult  model.FitnessResult
	History     History
	Stagnation  int
	Strength    float64
	Evaluations int
	Phase       Phase

	// Champion and ChampionFitness are read-only for strategies. The
	// champion fitness drives progressive difficulty; an empty champion ID
	// means no champion has been promoted yet.
	Champion        model.Genome
	ChampionFitness float64

	Memory Memory
}

// NewState seeds a state at generation 0 with initial as the best genome.
// Its fitness is unknown (zero) until the first step evaluates it.
func NewState(initial model.Genome) State {
	genotype.EnsureFresh(&initial)
	return State{
		Best:     initial,
		History:  NewHistory(),
		Strength: InitialStrength,
		Phase:    PhaseExploring,
	}
}

// Clone deep-copies the state including strategy memory.
func (s State) Clone() State {
	out := s
	out.Best = genotype.CloneGenome(s.Best)
	out.Champion = genotype.CloneGenome(s.Champion)
	out.History = s.History.clone()
	if s.Memory != nil {
		out.Memory = s.Memory.CloneMemory()
	}
	return out
}

// Next returns a clone advanced by one generation.
func (s State) Next() State {
	out := s.Clone()
	out.Generation++
	return out
}

// Offer records c as the new best when its fitness strictly exceeds the
// current best. It reports whether the best changed.
func (s *State) Offer(c Candidate) bool {
	s.Evaluations++
	if c.Fitness <= s.BestFitness {
		return false
	}
	s.Best = genotype.CloneGenome(c.Genome)
	s.BestFitness = c.Fitness
	s.BestResult = c.Result
	s.History.Add(s.Generation, c.Fitness)
	return true
}

// Settle closes a generation: improvement clears stagnation and tightens the
// exploration strength; otherwise stagnation grows and strength widens.
func (s *State) Settle(improved bool) {
	if s.Strength == 0 {
		s.Strength = InitialStrength
	}
	if improved {
		s.Stagnation = 0
		s.Strength = math.Max(MinStrength, s.Strength*StrengthShrink)
		s.Phase = PhaseImproved
		return
	}
	s.Stagnation++
	s.Strength = math.Min(MaxStrength, s.Strength*StrengthGrowth)
	s.Phase = PhaseStagnant
}

// HasChampion reports whether a champion genome is available.
func (s State) HasChampion() bool {
	return s.Champion.ID != ""
}

// Difficulty is the progressive multiplier derived from the champion.
func (s State) Difficulty() float64 {
	return fitness.Difficulty(s.ChampionFitness)
}
