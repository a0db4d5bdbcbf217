package stats

import (
	mstats "github.com/montanaflynn/stats"

	"equilibrium/internal/fitness"
	"equilibrium/internal/model"
)

// RunSummary condenses an improvement curve.
type RunSummary struct {
	RunID             string  `json:"run_id"`
	Strategy          string  `json:"strategy"`
	Samples           int     `json:"samples"`
	InitialBest       float64 `json:"initial_best"`
	FinalBest         float64 `json:"final_best"`
	BestMean          float64 `json:"best_mean"`
	BestMedian        float64 `json:"best_median"`
	BestStd           float64 `json:"best_std"`
	Improvement       float64 `json:"improvement"`
	TrendPer1000      float64 `json:"trend_per_1000"`
	Goal              float64 `json:"goal,omitempty"`
	GoalReached       bool    `json:"goal_reached"`
	ReachedGeneration int     `json:"reached_generation,omitempty"`
	Quality           string  `json:"quality"`
}

// BuildRunSummary summarizes history. A goal of zero disables goal tracking.
func BuildRunSummary(runID, strategy string, history []model.FitnessSample, goal float64) RunSummary {
	summary := RunSummary{
		RunID:    runID,
		Strategy: strategy,
		Samples:  len(history),
		Goal:     goal,
	}
	if len(history) == 0 {
		summary.Quality = fitness.Quality(0)
		return summary
	}

	values := make(mstats.Float64Data, 0, len(history))
	for _, sample := range history {
		values = append(values, sample.Fitness)
		if goal > 0 && !summary.GoalReached && sample.Fitness >= goal {
			summary.GoalReached = true
			summary.ReachedGeneration = sample.Generation
		}
	}
	first, last := history[0], history[len(history)-1]
	summary.InitialBest = first.Fitness
	summary.FinalBest, _ = values.Max()
	summary.BestMean, _ = values.Mean()
	summary.BestMedian, _ = values.Median()
	summary.BestStd, _ = values.StandardDeviation()
	summary.Improvement = summary.FinalBest - summary.InitialBest
	if span := last.Generation - first.Generation; span > 0 {
		summary.TrendPer1000 = (last.Fitness - first.Fitness) / float64(span) * 1000
	}
	summary.Quality = fitness.Quality(summary.FinalBest)
	return summary
}
