package fitness

import (
	"fmt"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

// CriticalThreshold is the score below which a critical metric zeroes the
// total.
const CriticalThreshold = 50

type Evaluator struct {
	registry *Registry
}

func NewEvaluator(registry *Registry) *Evaluator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Evaluator{registry: registry}
}

// Registry exposes the evaluator's metric set for enabling optional metrics.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// Evaluate scores g at the given difficulty. Stale derived data is
// regenerated first. A panicking metric yields a zero total with Error set;
// it is never propagated.
func (e *Evaluator) Evaluate(g model.Genome, difficulty float64) (result model.FitnessResult) {
	ctx := Context{Difficulty: difficulty}
	result.Difficulty = ctx.difficulty()
	defer func() {
		if r := recover(); r != nil {
			result = model.FitnessResult{
				Difficulty: ctx.difficulty(),
				Error:      fmt.Sprintf("evaluation panic: %v", r),
			}
		}
	}()

	genotype.EnsureFresh(&g)

	for _, spec := range e.registry.Active() {
		m := spec.Metric.Evaluate(g, ctx)
		m.Name = spec.Name
		m.Score = clampScore(m.Score)
		m.Weight = spec.Weight
		m.WeightedScore = m.Score * spec.Weight
		m.Critical = spec.Critical
		result.Metrics = append(result.Metrics, m)
		result.Total += m.WeightedScore
		if spec.Critical && m.Score < CriticalThreshold {
			result.Gated = true
		}
	}
	if result.Gated {
		result.Total = 0
	}
	result.Total = clampScore(result.Total)
	return result
}
