package genotype

import (
	"errors"
	"math/rand"

	"equilibrium/internal/model"
)

// Intensity controls how many parameters move (Rate, a per-parameter
// probability) and how far scaled parameters move (Strength).
type Intensity struct {
	Rate     float64
	Strength float64
}

func (i Intensity) Validate() error {
	if i.Rate <= 0 {
		return errors.New("mutation rate must be > 0")
	}
	if i.Strength <= 0 {
		return errors.New("mutation strength must be > 0")
	}
	return nil
}

// Mutate derives a child from parent. Each parameter moves with probability
// Rate (scaled per parameter; economy parameters mutate more often). The
// child is clamped and its derived tables regenerated before it is returned.
func Mutate(rng *rand.Rand, parent model.Genome, in Intensity) model.Genome {
	child := CloneGenome(parent)
	child.ID = NewID()
	child.ParentID = parent.ID

	for _, p := range params {
		rate := in.Rate * p.rateFactor
		if rate < 1 && rng.Float64() >= rate {
			continue
		}
		delta := p.delta(rng)
		if p.scaled {
			delta *= in.Strength
		}
		p.Set(&child, p.Get(child)+delta)
	}

	Clamp(&child)
	Regenerate(&child)
	return child
}

// Perturb moves a single named parameter by delta, then clamps and
// regenerates. Unknown names return the genome unchanged.
func Perturb(g model.Genome, name string, delta float64) model.Genome {
	p, ok := Lookup(name)
	if !ok {
		return g
	}
	out := CloneGenome(g)
	p.Set(&out, p.Get(out)+delta)
	Clamp(&out)
	Regenerate(&out)
	return out
}
