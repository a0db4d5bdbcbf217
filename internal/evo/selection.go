package evo

import (
	"fmt"
	"math/rand"

	"equilibrium/internal/model"
)

// Selector chooses a parent from genomes ranked best first.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, error)
}

// EliteSelector picks uniformly from the top EliteCount genomes.
type EliteSelector struct {
	EliteCount int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) PickParent(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Genome{}, fmt.Errorf("no genomes to select from")
	}
	n := s.EliteCount
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	return ranked[rng.Intn(n)].Genome, nil
}

// TournamentSelector samples TournamentSize genomes and keeps the fittest.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredGenome) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Genome{}, fmt.Errorf("no genomes to select from")
	}
	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	if size > len(ranked) {
		size = len(ranked)
	}

	best := ranked[rng.Intn(len(ranked))]
	for i := 1; i < size; i++ {
		candidate := ranked[rng.Intn(len(ranked))]
		if candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best.Genome, nil
}

// SelectorFromConfig resolves a selector by name.
func SelectorFromConfig(name string, size int) (Selector, error) {
	switch name {
	case "", "tournament":
		return TournamentSelector{TournamentSize: size}, nil
	case "elite":
		return EliteSelector{EliteCount: size}, nil
	default:
		return nil, fmt.Errorf("unsupported selector: %s", name)
	}
}

func scoredFromEntries(entries []model.LeaderboardEntry) []ScoredGenome {
	out := make([]ScoredGenome, 0, len(entries))
	for _, e := range entries {
		out = append(out, ScoredGenome{Genome: e.Genome, Fitness: e.Fitness})
	}
	return out
}
