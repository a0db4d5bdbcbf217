// Package fitness scores candidate configurations with a weighted composite
// of independent metrics, each backed by the combat oracle.
package fitness

import (
	"github.com/montanaflynn/stats"

	"equilibrium/internal/model"
)

const (
	MetricCombatBalance        = "Combat Balance"
	MetricEconomicHealth       = "Economic Health"
	MetricEquipmentProgression = "Equipment Progression"
	MetricSkillBalance         = "Skill Balance"
	MetricDifficultyPacing     = "Difficulty Pacing"
	MetricBuildDiversity       = "Build Diversity"
	MetricProgressionStrata    = "Progression Strata"
)

// Context carries evaluation-wide inputs. Difficulty narrows the tolerance
// bands of progressive metrics; values below 1 are treated as 1.
type Context struct {
	Difficulty float64
}

func (c Context) difficulty() float64 {
	if c.Difficulty < 1 {
		return 1
	}
	return c.Difficulty
}

// Metric scores one aspect of a genome in [0,100]. Implementations fill
// Score, Details and Warnings; the evaluator owns weight and criticality.
type Metric interface {
	Evaluate(g model.Genome, ctx Context) model.MetricResult
}

// MetricFunc adapts a function to Metric.
type MetricFunc func(g model.Genome, ctx Context) model.MetricResult

func (f MetricFunc) Evaluate(g model.Genome, ctx Context) model.MetricResult {
	return f(g, ctx)
}

// Difficulty maps the run's champion fitness to the progressive difficulty
// multiplier.
func Difficulty(championFitness float64) float64 {
	switch {
	case championFitness >= 90:
		return 1.5
	case championFitness >= 85:
		return 1.3
	case championFitness >= 75:
		return 1.1
	default:
		return 1.0
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// meanScore is the mean of per-sample scores, 0 when there are none.
func meanScore(scores []float64) float64 {
	mean, err := stats.Mean(scores)
	if err != nil {
		return 0
	}
	return mean
}
