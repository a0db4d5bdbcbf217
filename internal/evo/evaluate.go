package evo

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"equilibrium/internal/model"
	"equilibrium/internal/search"
)

// ScoredGenome pairs a genome with its evaluation.
type ScoredGenome struct {
	Genome  model.Genome
	Fitness float64
	Result  model.FitnessResult
}

// evaluateAll scores genomes at difficulty. With more than one worker the
// evaluations run on a bounded pool; results keep the input order either way.
func evaluateAll(ctx context.Context, evaluator search.Evaluator, genomes []model.Genome, difficulty float64, workers int) ([]ScoredGenome, error) {
	scored := make([]ScoredGenome, len(genomes))
	score := func(i int) {
		result := evaluator.Evaluate(genomes[i], difficulty)
		scored[i] = ScoredGenome{Genome: genomes[i], Fitness: result.Total, Result: result}
	}

	if workers <= 1 || len(genomes) <= 1 {
		for i := range genomes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			score(i)
		}
		return scored, nil
	}

	p := pool.New().WithMaxGoroutines(min(workers, len(genomes)))
	for i := range genomes {
		i := i
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			score(i)
		})
	}
	p.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scored, nil
}

// offerAll accepts scored children in index order. It returns whether any
// child became the new best and the most relevant candidate: the last
// accepted child, or the best rejected one.
func offerAll(state *search.State, scored []ScoredGenome, label string) (bool, search.Candidate) {
	improved := false
	var pick search.Candidate
	havePick := false
	for _, s := range scored {
		c := search.Candidate{Genome: s.Genome, Fitness: s.Fitness, Result: s.Result, Label: label}
		c.Accepted = state.Offer(c)
		switch {
		case c.Accepted:
			improved = true
			pick = c
			havePick = true
		case !improved && (!havePick || c.Fitness > pick.Fitness):
			pick = c
			havePick = true
		}
	}
	return improved, pick
}
