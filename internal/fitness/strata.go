package fitness

import (
	"fmt"
	"math"

	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
)

// ProgressionStrata checks that gear tiers feel distinct at level 5: naked
// should win 60-70%, tier 2 gear 75-85% and tier 5 gear 90-95%.
type ProgressionStrata struct{}

func (ProgressionStrata) Evaluate(g model.Genome, _ Context) model.MetricResult {
	result := model.MetricResult{}
	const level = 5

	winRate := func(tier int) float64 {
		return oracle.Spread(oracle.MatchupAt(g, level, tier), oracle.SpreadSize).WinRate
	}
	t0, t2, t5 := winRate(0), winRate(2), winRate(5)

	s0 := bandScore(t0, 0.60, 0.70, 300)
	s2 := bandScore(t2, 0.75, 0.85, 200)
	s5 := bandScore(t5, 0.90, 0.95, 500)
	if t5 >= 0.98 {
		s5 = 0
		result.Warnings = append(result.Warnings, fmt.Sprintf("best gear trivializes combat (%.0f%% wins)", t5*100))
	} else if t5 < 0.85 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("best gear too weak (%.0f%% wins)", t5*100))
	}
	if t0 < 0.50 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("default gear too hard (%.0f%% wins)", t0*100))
	} else if t0 > 0.80 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("default gear too easy (%.0f%% wins)", t0*100))
	}

	total := s0*0.33 + s2*0.33 + s5*0.34
	if t2 <= t0 {
		result.Warnings = append(result.Warnings, "tier 2 not better than tier 0")
		total *= 0.5
	}
	if t5 <= t2+0.05 {
		result.Warnings = append(result.Warnings, "tier 5 barely better than tier 2")
		total *= 0.8
	}

	result.Score = total
	result.Details = append(result.Details,
		fmt.Sprintf("Tier 0: %.0f%% wins (target 60-70%%) -> %.0f/100", t0*100, s0),
		fmt.Sprintf("Tier 2: %.0f%% wins (target 75-85%%) -> %.0f/100", t2*100, s2),
		fmt.Sprintf("Tier 5: %.0f%% wins (target 90-95%%) -> %.0f/100", t5*100, s5),
	)
	return result
}

// bandScore is 100 inside [lo,hi], proportional below lo and penalized by
// slope per unit above hi.
func bandScore(v, lo, hi, slope float64) float64 {
	switch {
	case v >= lo && v <= hi:
		return 100
	case v < lo:
		return math.Max(0, v/lo*100)
	default:
		return math.Max(0, 100-(v-hi)*slope)
	}
}
