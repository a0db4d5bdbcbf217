package genotype

import (
	"math/rand"
	"strings"

	"equilibrium/internal/model"
)

// Crossover mixes two parents. Player and enemy parameters are inherited
// independently; economy, loot and equipment parameters are inherited as
// units so their internal balance survives recombination.
func Crossover(rng *rand.Rand, a, b model.Genome) model.Genome {
	child := CloneGenome(a)
	child.ID = NewID()
	child.ParentID = a.ID

	groups := make(map[string]bool)
	for _, p := range params {
		group := p.Name[:strings.IndexByte(p.Name, '.')]
		switch group {
		case "player", "enemy":
			if rng.Intn(2) == 1 {
				p.Set(&child, p.Get(b))
			}
		default:
			take, ok := groups[group]
			if !ok {
				take = rng.Intn(2) == 1
				groups[group] = take
			}
			if take {
				p.Set(&child, p.Get(b))
			}
		}
	}

	Clamp(&child)
	Regenerate(&child)
	return child
}

// Interpolate moves each parameter linearly from a (alpha 0) to b (alpha 1).
func Interpolate(a, b model.Genome, alpha float64) model.Genome {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	out := CloneGenome(a)
	out.ID = NewID()
	out.ParentID = a.ID
	for _, p := range params {
		p.Set(&out, p.Get(a)*(1-alpha)+p.Get(b)*alpha)
	}
	Clamp(&out)
	Regenerate(&out)
	return out
}
