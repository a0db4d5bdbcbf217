package evo

import "equilibrium/internal/genotype"

// ScheduleFor maps a stagnation count to a mutation intensity. Fresh
// progress mutates gently; long plateaus mutate aggressively.
func ScheduleFor(stagnation int) genotype.Intensity {
	switch {
	case stagnation < 10:
		return genotype.Intensity{Rate: 0.2, Strength: 0.5}
	case stagnation > 2000:
		return genotype.Intensity{Rate: 1.0, Strength: 2.0}
	case stagnation > 1000:
		return genotype.Intensity{Rate: 1.0, Strength: 1.5}
	case stagnation > 500:
		return genotype.Intensity{Rate: 0.8, Strength: 1.2}
	case stagnation > 100:
		return genotype.Intensity{Rate: 0.7, Strength: 2.0}
	case stagnation > 50:
		return genotype.Intensity{Rate: 0.5, Strength: 1.5}
	default:
		return genotype.Intensity{Rate: 0.3, Strength: 1.0}
	}
}
