package fitness

import (
	"fmt"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

// EconomicHealth checks that each level can afford its recommended tier and
// that gold on hand sits 20-50% above that tier's cost.
type EconomicHealth struct{}

func (EconomicHealth) Evaluate(g model.Genome, _ Context) model.MetricResult {
	result := model.MetricResult{}
	if g.Economy.GoldScaling <= 0.1 || g.Economy.BaseGold <= 0 {
		result.Warnings = append(result.Warnings, "invalid economy parameters")
		return result
	}

	snaps := g.Derived.Economy
	scores := make([]float64, 0, len(snaps))
	affordable := 0
	totalSurplus := 0.0
	for _, s := range snaps {
		levelScore := 0.0
		if s.ProgressHealthy && s.AffordableTier >= s.RecommendedTier {
			levelScore += 50
			affordable++
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Level %d: cannot afford tier %d", s.Level, s.RecommendedTier))
		}

		cost := genotype.TierCost(g, s.RecommendedTier)
		ratio := float64(s.CumulativeGold-cost) / float64(max(1, cost))
		levelScore += surplusScore(ratio)
		totalSurplus += ratio
		scores = append(scores, levelScore)
	}
	if len(snaps) == 0 {
		result.Warnings = append(result.Warnings, "no economy snapshots")
		return result
	}

	result.Score = meanScore(scores)
	result.Details = append(result.Details,
		fmt.Sprintf("%.0f%% of levels can afford progression", float64(affordable)/float64(len(snaps))*100),
		fmt.Sprintf("Avg economic surplus: %.0f%%", totalSurplus/float64(len(snaps))*100),
	)
	return result
}

func surplusScore(ratio float64) float64 {
	switch {
	case ratio >= 0.2 && ratio <= 0.5:
		return 50
	case ratio > 0.5:
		return max(0, 50-(ratio-0.5)*50)
	case ratio >= 0:
		return ratio / 0.2 * 50
	default:
		return 0
	}
}
