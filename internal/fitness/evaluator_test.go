package fitness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

func fixed(score float64) Metric {
	return MetricFunc(func(model.Genome, Context) model.MetricResult {
		return model.MetricResult{Score: score}
	})
}

func stubRegistry(t *testing.T, economy, combat, other float64) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(MetricSpec{Name: MetricCombatBalance, Metric: fixed(combat), Weight: 0.30, Critical: true, Enabled: true}))
	require.NoError(t, r.Register(MetricSpec{Name: MetricEconomicHealth, Metric: fixed(economy), Weight: 0.25, Critical: true, Enabled: true}))
	require.NoError(t, r.Register(MetricSpec{Name: MetricEquipmentProgression, Metric: fixed(other), Weight: 0.15, Enabled: true}))
	require.NoError(t, r.Register(MetricSpec{Name: MetricSkillBalance, Metric: fixed(other), Weight: 0.20, Enabled: true}))
	require.NoError(t, r.Register(MetricSpec{Name: MetricDifficultyPacing, Metric: fixed(other), Weight: 0.10, Enabled: true}))
	return r
}

func TestCriticalMetricGatesTotal(t *testing.T) {
	g := genotype.Baseline()

	gatedEconomy := NewEvaluator(stubRegistry(t, 0, 100, 100)).Evaluate(g, 1)
	assert.Equal(t, 0.0, gatedEconomy.Total)
	assert.True(t, gatedEconomy.Gated)

	gatedCombat := NewEvaluator(stubRegistry(t, 100, 49.9, 100)).Evaluate(g, 1)
	assert.Equal(t, 0.0, gatedCombat.Total)

	passing := NewEvaluator(stubRegistry(t, 100, 50, 100)).Evaluate(g, 1)
	assert.False(t, passing.Gated)
	assert.InDelta(t, 85.0, passing.Total, 1e-9)
}

func TestNonCriticalMetricDoesNotGate(t *testing.T) {
	result := NewEvaluator(stubRegistry(t, 100, 100, 0)).Evaluate(genotype.Baseline(), 1)
	assert.False(t, result.Gated)
	assert.InDelta(t, 55.0, result.Total, 1e-9)
}

func TestEvaluatorRecoversMetricPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(MetricSpec{
		Name: "Exploding",
		Metric: MetricFunc(func(model.Genome, Context) model.MetricResult {
			panic("division by zero")
		}),
		Weight:  1,
		Enabled: true,
	}))
	result := NewEvaluator(r).Evaluate(genotype.Baseline(), 1)
	assert.Equal(t, 0.0, result.Total)
	assert.Contains(t, result.Error, "division by zero")
}

func TestOptionalMetricsRenormalizeWeights(t *testing.T) {
	r := DefaultRegistry()
	active := r.Active()
	require.Len(t, active, 5)
	sum := 0.0
	for _, spec := range active {
		sum += spec.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	require.NoError(t, r.SetEnabled(MetricBuildDiversity, true))
	active = r.Active()
	require.Len(t, active, 6)
	sum = 0
	for _, spec := range active {
		sum += spec.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, MetricCombatBalance, active[0].Name)
	assert.Equal(t, MetricBuildDiversity, active[5].Name)
}

func TestRegistryErrors(t *testing.T) {
	r := DefaultRegistry()
	err := r.Register(MetricSpec{Name: MetricCombatBalance, Metric: CombatBalance{}, Weight: 0.3})
	assert.True(t, errors.Is(err, ErrMetricExists))
	assert.True(t, errors.Is(r.SetEnabled("missing", true), ErrMetricNotFound))
	assert.True(t, errors.Is(r.SetWeight("missing", 1), ErrMetricNotFound))
	assert.Error(t, r.SetWeight(MetricSkillBalance, 0))
	assert.Error(t, r.Register(MetricSpec{Name: "nil metric", Weight: 1}))
	assert.Len(t, r.List(), 7)
}

func TestEvaluateBaselineProducesBoundedBreakdown(t *testing.T) {
	result := NewEvaluator(nil).Evaluate(genotype.Baseline(), 1)
	require.Empty(t, result.Error)
	require.Len(t, result.Metrics, 5)
	assert.GreaterOrEqual(t, result.Total, 0.0)
	assert.LessOrEqual(t, result.Total, 100.0)
	for _, m := range result.Metrics {
		assert.GreaterOrEqual(t, m.Score, 0.0, m.Name)
		assert.LessOrEqual(t, m.Score, 100.0, m.Name)
		assert.InDelta(t, m.Score*m.Weight, m.WeightedScore, 1e-9, m.Name)
	}
	combat, ok := result.Metric(MetricCombatBalance)
	require.True(t, ok)
	assert.True(t, combat.Critical)
}

func TestEvaluateRegeneratesStaleGenome(t *testing.T) {
	g := genotype.Baseline()
	g.Economy.BaseGold = 20
	ev := NewEvaluator(nil)

	stale := ev.Evaluate(g, 1)
	genotype.Regenerate(&g)
	fresh := ev.Evaluate(g, 1)
	assert.Equal(t, fresh.Total, stale.Total)
}

func TestDifficultyMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, Difficulty(0))
	assert.Equal(t, 1.0, Difficulty(74.9))
	assert.Equal(t, 1.1, Difficulty(75))
	assert.Equal(t, 1.3, Difficulty(85))
	assert.Equal(t, 1.5, Difficulty(90))
}

func TestWinRateBandNarrowsWithDifficulty(t *testing.T) {
	assert.Equal(t, 40.0, winRateScore(0.85, 1))
	assert.Equal(t, 40.0, winRateScore(0.72, 1))
	assert.Less(t, winRateScore(0.72, 1.5), 40.0)
	assert.GreaterOrEqual(t, winRateScore(1.0, 1), winRateScore(1.0, 1.5))
	assert.InDelta(t, 20.0, winRateScore(0.35, 1), 1e-9)
}

func TestTTKScoreBands(t *testing.T) {
	assert.Equal(t, 40.0, ttkScore(5, 1))
	assert.InDelta(t, 30.0, ttkScore(6.5, 1), 1e-9)
	assert.InDelta(t, 0.0, ttkScore(8, 1), 1e-9)
	assert.InDelta(t, 15.0, ttkScore(9, 1), 1e-9)
	assert.Equal(t, 0.0, ttkScore(50, 1))
}

func TestBreakdownMentionsEveryMetric(t *testing.T) {
	result := NewEvaluator(nil).Evaluate(genotype.Baseline(), 1)
	text := Breakdown(result)
	for _, m := range result.Metrics {
		assert.Contains(t, text, m.Name)
	}
	assert.Contains(t, text, "quality="+Quality(result.Total))
}

func TestQualityBands(t *testing.T) {
	cases := map[float64]string{95: "optimal", 85: "excellent", 72: "good", 60: "fair", 55: "poor", 10: "broken"}
	for total, want := range cases {
		assert.Equal(t, want, Quality(total), "total %.0f", total)
	}
}
