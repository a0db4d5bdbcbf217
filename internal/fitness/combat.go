package fitness

import (
	"fmt"
	"math"

	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
)

const (
	idealWinRate  = 0.85
	winRateWindow = 0.15
	idealTTK      = 5.0
	ttkWindow     = 1.5
	maxTurnSpread = 6.0
	noWinTurns    = 50
)

// CombatBalance replays every level from 1 to 10 across the encounter spread
// and rewards win rate near 85%, fights near five turns and consistent
// fight length. Tolerances narrow with difficulty.
type CombatBalance struct{}

func (CombatBalance) Evaluate(g model.Genome, ctx Context) model.MetricResult {
	mult := ctx.difficulty()
	result := model.MetricResult{}
	if mult > 1 {
		result.Details = append(result.Details, fmt.Sprintf("Difficulty: %.1fx", mult))
	}

	scores := make([]float64, 0, 10)
	for level := 1; level <= 10; level++ {
		trial := oracle.Spread(oracle.MatchupAt(g, level, oracle.GearTier(level)), oracle.SpreadSize)
		avgTurns := trial.MeanTurns
		if trial.Wins == 0 {
			avgTurns = noWinTurns
		}

		levelScore := winRateScore(trial.WinRate, mult) + ttkScore(avgTurns, mult)
		levelScore += math.Max(0, 20*(1-trial.TurnStdDev/(maxTurnSpread/mult)))
		scores = append(scores, levelScore)

		if level%3 == 1 {
			result.Details = append(result.Details, fmt.Sprintf("L%d: %.0f%% wins, %.1f turns +/-%.1f (%.0f/100)",
				level, trial.WinRate*100, avgTurns, trial.TurnStdDev, levelScore))
		}
		if trial.WinRate < 0.3 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Level %d: only %.0f%% win rate, too hard", level, trial.WinRate*100))
		}
		if avgTurns < 2 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Level %d: %.1f turns, combat too fast", level, avgTurns))
		}
		if avgTurns > 15 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Level %d: %.1f turns, combat too grindy", level, avgTurns))
		}
	}

	result.Score = meanScore(scores)
	return result
}

func winRateScore(winRate, mult float64) float64 {
	window := winRateWindow / mult
	lo, hi := idealWinRate-window, idealWinRate+window
	switch {
	case winRate >= lo && winRate <= hi:
		return 40
	case winRate < lo:
		return winRate / lo * 40
	default:
		return math.Max(0, 40-(winRate-hi)*200*mult)
	}
}

func ttkScore(turns, mult float64) float64 {
	window := ttkWindow / mult
	delta := math.Abs(turns - idealTTK)
	switch {
	case delta <= window:
		return 40 * (1 - delta/window*0.25)
	case delta <= window*2:
		return 30 * (1 - (delta-window)/window)
	default:
		return math.Max(0, 20-(delta-window*2)*5*mult)
	}
}
