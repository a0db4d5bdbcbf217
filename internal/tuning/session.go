package tuning

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
)

// DefaultTargetTurns sits a little above the baseline playthrough length
// under oracle.DefaultSessionConfig.
const (
	DefaultTargetTurns = 480.0
	scorePerTurn       = 2.0
)

// SessionScore maps a mean session length to [0,100]: 100 on target, two
// points lost per turn of deviation.
func SessionScore(meanTurns, target float64) float64 {
	return math.Max(0, 100-math.Abs(meanTurns-target)*scorePerTurn)
}

func sessionLabel(score, meanTurns float64) string {
	return fmt.Sprintf("session=%.1f turns=%.1f", score, meanTurns)
}

// lever is a parameter the session tuners steer. Direction is +1 when raising
// the parameter lengthens sessions; Step is one perturbation; Sensitivity
// scales session error into a gradient.
type lever struct {
	Name        string
	Direction   float64
	Step        float64
	Sensitivity float64
}

var defaultLevers = []lever{
	{Name: genotype.ParamEnemyBaseHP, Direction: 1, Step: 1, Sensitivity: 6},
	{Name: genotype.ParamBaseHP, Direction: 1, Step: 1, Sensitivity: 2},
	{Name: genotype.ParamEnemyBaseDamage, Direction: -1, Step: 1, Sensitivity: 8},
	{Name: genotype.ParamBaseDEF, Direction: 1, Step: 1, Sensitivity: 8},
	{Name: genotype.ParamHPPerLevel, Direction: 1, Step: 1, Sensitivity: 6},
	{Name: genotype.ParamEnemyDamageScaling, Direction: -1, Step: 0.05, Sensitivity: 40},
	{Name: genotype.ParamEnemyHPScaling, Direction: 1, Step: 0.1, Sensitivity: 30},
	{Name: genotype.ParamBaseSTR, Direction: -1, Step: 1, Sensitivity: 8},
}

// Levers lists the parameter names the session tuners steer, in rotation
// order.
func Levers() []string {
	names := make([]string, 0, len(defaultLevers))
	for _, l := range defaultLevers {
		names = append(names, l.Name)
	}
	return names
}

func leverFor(name string) (lever, bool) {
	for _, l := range defaultLevers {
		if l.Name == name {
			return l, true
		}
	}
	p, ok := genotype.Lookup(name)
	if !ok {
		return lever{}, false
	}
	step := 1.0
	if !p.Integer {
		step = p.Span() / 20
	}
	return lever{Name: name, Direction: 1, Step: step, Sensitivity: 10}, true
}

func measureSessions(ctx context.Context, rng *rand.Rand, g model.Genome, cfg oracle.SessionConfig, playthroughs int) (oracle.SessionReport, error) {
	cfg.Playthroughs = playthroughs
	return oracle.SimulateSessions(ctx, rng, g, cfg)
}
