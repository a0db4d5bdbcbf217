package fitness

import (
	"fmt"
	"math"

	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
)

// DifficultyPacing compares enemy threat to player survivability per level
// and penalizes spikes above 30% between neighbouring levels.
type DifficultyPacing struct{}

func (DifficultyPacing) Evaluate(g model.Genome, _ Context) model.MetricResult {
	result := model.MetricResult{}
	curve := DifficultyCurve(g)

	maxSpike := 0.0
	increases := 0
	for i := 1; i < len(curve); i++ {
		if curve[i-1] > 0 {
			maxSpike = math.Max(maxSpike, math.Abs(curve[i]-curve[i-1])/curve[i-1])
		}
		if curve[i] > curve[i-1] {
			increases++
		}
	}

	smoothness := math.Max(0, 60-maxSpike*200)
	if maxSpike > 0.3 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("difficulty spike: %.0f%% jump between levels", maxSpike*100))
	}
	steps := len(curve) - 1
	trend := float64(increases) / float64(steps) * 40

	result.Score = smoothness + trend
	result.Details = append(result.Details,
		fmt.Sprintf("Difficulty curve: %d/%d levels increase", increases, steps),
		fmt.Sprintf("Max spike: %.0f%%", maxSpike*100),
	)
	return result
}

// DifficultyCurve returns the threat ratio for levels 1 through 10.
func DifficultyCurve(g model.Genome) []float64 {
	curve := make([]float64, 0, 10)
	for level := 1; level <= 10; level++ {
		playerHP := g.Player.BaseHP + level*g.Player.HPPerLevel
		playerPower := g.Player.BaseSTR + level
		enemyHP, enemyPower := oracle.EnemyAt(g, level)
		curve = append(curve, float64(enemyHP*enemyPower)/float64(max(1, playerHP*playerPower)))
	}
	return curve
}
