package genotype

import (
	"math/rand"

	"github.com/google/uuid"

	"equilibrium/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// NewID returns a fresh genome identifier.
func NewID() string {
	return uuid.NewString()
}

// Baseline returns the fixed starting genome with derived tables populated.
func Baseline() model.Genome {
	g := model.Genome{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "baseline",
	}
	for _, p := range params {
		p.Set(&g, p.Baseline)
	}
	Regenerate(&g)
	return g
}

// Random samples every parameter uniformly within its range.
func Random(rng *rand.Rand) model.Genome {
	return RandomWithin(rng, nil)
}

// Range narrows a parameter for constrained sampling.
type Range struct {
	Min float64
	Max float64
}

// Bounds maps parameter names to narrowed ranges. Missing names use the
// parameter's full range.
type Bounds map[string]Range

// Range returns the effective range for p, intersected with p's own range.
func (b Bounds) Range(p Param) Range {
	r, ok := b[p.Name]
	if !ok {
		return Range{Min: p.Min, Max: p.Max}
	}
	r.Min = p.Clamp(r.Min)
	r.Max = p.Clamp(r.Max)
	if r.Max < r.Min {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

// Clamp confines every bounded parameter of g to its narrowed range, then
// applies the global clamp and regenerates derived data.
func (b Bounds) Clamp(g *model.Genome) {
	for _, p := range params {
		if _, ok := b[p.Name]; !ok {
			continue
		}
		r := b.Range(p)
		v := p.Get(*g)
		if v < r.Min {
			v = r.Min
		}
		if v > r.Max {
			v = r.Max
		}
		p.Set(g, v)
	}
	Clamp(g)
	Regenerate(g)
}

// RandomWithin samples every parameter uniformly within bounds.
func RandomWithin(rng *rand.Rand, bounds Bounds) model.Genome {
	g := model.Genome{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              NewID(),
	}
	for _, p := range params {
		r := bounds.Range(p)
		p.Set(&g, r.Min+rng.Float64()*(r.Max-r.Min))
	}
	Clamp(&g)
	Regenerate(&g)
	return g
}
