// Package search defines the contract shared by every balance-search
// strategy: the search state a strategy advances, the candidates it proposes
// and the progress events emitted while it runs.
package search

import (
	"context"

	"equilibrium/internal/model"
)

// Evaluator scores a genome at a difficulty multiplier.
type Evaluator interface {
	Evaluate(g model.Genome, difficulty float64) model.FitnessResult
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(g model.Genome, difficulty float64) model.FitnessResult

func (f EvaluatorFunc) Evaluate(g model.Genome, difficulty float64) model.FitnessResult {
	return f(g, difficulty)
}

// Candidate is one proposal of a step. Fitness is the score the strategy
// ranks by; Result is the evaluator's breakdown for the same genome.
type Candidate struct {
	Genome   model.Genome
	Fitness  float64
	Result   model.FitnessResult
	Label    string
	Accepted bool
}

// Strategy advances a search by one cycle. Step must not mutate the input
// state; it returns the successor state and the most relevant candidate of
// the cycle (the accepted one, or the best rejected one).
type Strategy interface {
	Name() string
	Step(ctx context.Context, state State) (State, Candidate, error)
}

// Resetter is implemented by strategies that support a manual force-reset
// distinct from the controller's automatic reset.
type Resetter interface {
	Reset(state State) State
}

// Memory is strategy-private state carried between steps.
type Memory interface {
	CloneMemory() Memory
}
