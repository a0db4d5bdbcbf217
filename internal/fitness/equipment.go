package fitness

import (
	"fmt"
	"math"

	"equilibrium/internal/model"
)

// EquipmentProgression rewards 15-50% power steps between adjacent tiers and
// a 1.5x-5x cost ratio, for weapons and armor alike.
type EquipmentProgression struct{}

func (EquipmentProgression) Evaluate(g model.Genome, _ Context) model.MetricResult {
	result := model.MetricResult{}
	weapons := tierCurveScore(g.Derived.Weapons, "Weapon", &result)
	armor := tierCurveScore(g.Derived.Armor, "Armor", &result)
	result.Score = (weapons + armor) / 2
	return result
}

func tierCurveScore(tiers []model.EquipmentTier, slot string, result *model.MetricResult) float64 {
	if len(tiers) < 3 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: too few tiers (%d)", slot, len(tiers)))
		return 0
	}

	scores := make([]float64, 0, len(tiers)-1)
	for i := 1; i < len(tiers); i++ {
		prev, cur := tiers[i-1], tiers[i]
		increase := (cur.Bonus - prev.Bonus) / math.Max(1, prev.Bonus)

		score := 100.0
		switch {
		case increase < 0.15:
			score = math.Max(0, 100-(0.15-increase)*200)
			if i == 1 {
				result.Details = append(result.Details, fmt.Sprintf("%s T%d: only %.0f%% upgrade", slot, i, increase*100))
			}
		case increase > 0.5:
			score = math.Max(0, 100-(increase-0.5)*100)
			result.Details = append(result.Details, fmt.Sprintf("%s T%d: %.0f%% upgrade, too powerful", slot, i, increase*100))
		}

		costRatio := float64(cur.Cost) / float64(max(1, prev.Cost))
		if costRatio < 1.5 || costRatio > 5 {
			score *= 0.8
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s T%d: cost ratio %.1fx is extreme", slot, i, costRatio))
		}
		scores = append(scores, score)
	}
	return meanScore(scores)
}
