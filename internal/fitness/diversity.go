package fitness

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

// BuildDiversity rewards several viable stat builds whose viability still
// differs by 10-20 points.
type BuildDiversity struct{}

func (BuildDiversity) Evaluate(g model.Genome, _ Context) model.MetricResult {
	result := model.MetricResult{}
	builds := g.Derived.Builds
	if len(builds) == 0 {
		result.Warnings = append(result.Warnings, "no build viability data")
		return result
	}

	viable := 0
	scores := make([]float64, 0, len(builds))
	labels := make([]string, 0, len(builds))
	for _, b := range builds {
		if b.Score > genotype.ViableScore {
			viable++
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: only %.0f%% viable", b.Name, b.Score))
		}
		scores = append(scores, b.Score)
		labels = append(labels, fmt.Sprintf("%s=%.0f", b.Name, b.Score))
	}

	spread := 0.0
	if len(scores) > 1 {
		spread, _ = stats.StandardDeviationPopulation(scores)
	}

	viability := float64(viable) / float64(len(genotype.BuildArchetypes)) * 50
	var differentiation float64
	switch {
	case spread >= 10 && spread <= 20:
		differentiation = 50
	case spread < 10:
		differentiation = spread / 10 * 50
	default:
		differentiation = math.Max(0, 50-(spread-20)*2)
	}

	result.Score = viability + differentiation
	result.Details = append(result.Details,
		fmt.Sprintf("%d/%d builds viable (>%d%% score)", viable, len(genotype.BuildArchetypes), genotype.ViableScore),
		"Build scores: "+strings.Join(labels, ", "),
		fmt.Sprintf("Spread: %.1f (target: 10-20)", spread),
	)
	return result
}
