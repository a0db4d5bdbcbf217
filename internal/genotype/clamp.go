package genotype

import "equilibrium/internal/model"

// Clamp enforces every parameter range. Derived data is left untouched; call
// Regenerate afterwards.
func Clamp(g *model.Genome) {
	for _, p := range params {
		p.Set(g, p.Clamp(p.Get(*g)))
	}
}

// InRange reports whether every parameter of g lies within its range.
func InRange(g model.Genome) bool {
	for _, p := range params {
		v := p.Get(g)
		if v < p.Min || v > p.Max {
			return false
		}
	}
	return true
}
