package oracle

import (
	"github.com/montanaflynn/stats"
)

// encounterSpread is the fixed set of (enemy HP, enemy damage) offsets a
// matchup is replayed against. It stands in for the variance of real
// encounters while keeping every result reproducible.
var encounterSpread = [][2]int{
	{0, 0}, {-1, 0}, {1, 0}, {-2, 0}, {2, 0},
	{0, 1}, {-1, 1}, {1, 1}, {-2, 1}, {2, 1},
}

// SpreadSize is the number of distinct encounters Spread can replay.
const SpreadSize = 10

type TrialStats struct {
	Trials     int
	Wins       int
	WinRate    float64
	MeanTurns  float64
	TurnStdDev float64
	// WinTurns holds the turn counts of won trials only.
	WinTurns []float64
}

// Spread replays the matchup across the first n encounters of the spread
// (n is clamped to [1, SpreadSize]). Enemy HP never drops below 1 and damage
// never below 0.
func Spread(m Matchup, n int) TrialStats {
	if n < 1 {
		n = 1
	}
	if n > SpreadSize {
		n = SpreadSize
	}

	result := TrialStats{Trials: n}
	for i := 0; i < n; i++ {
		trial := m
		trial.EnemyHP = max(1, m.EnemyHP+encounterSpread[i][0])
		trial.EnemyDamage = max(0, m.EnemyDamage+encounterSpread[i][1])
		outcome := Predict(trial)
		if outcome.Won {
			result.Wins++
			result.WinTurns = append(result.WinTurns, float64(outcome.Turns))
		}
	}
	result.WinRate = float64(result.Wins) / float64(n)
	if len(result.WinTurns) > 0 {
		result.MeanTurns, _ = stats.Mean(result.WinTurns)
		result.TurnStdDev, _ = stats.StandardDeviation(result.WinTurns)
	}
	return result
}
