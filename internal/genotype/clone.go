package genotype

import "equilibrium/internal/model"

// CloneGenome deep-copies g including its derived tables.
func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.Derived.Weapons = append([]model.EquipmentTier(nil), g.Derived.Weapons...)
	out.Derived.Armor = append([]model.EquipmentTier(nil), g.Derived.Armor...)
	out.Derived.Economy = append([]model.EconomySnapshot(nil), g.Derived.Economy...)
	out.Derived.Builds = append([]model.BuildViability(nil), g.Derived.Builds...)
	return out
}

// Equal reports whether a and b carry identical base parameters.
func Equal(a, b model.Genome) bool {
	for _, p := range params {
		if p.Get(a) != p.Get(b) {
			return false
		}
	}
	return true
}
