package platform

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equilibrium/internal/genotype"
	"equilibrium/internal/search"
	"equilibrium/internal/storage"
)

const slowStrategyName = "test-slow"

var registerSlowOnce sync.Once

// slowStrategy improves by one point per step with a short delay so control
// commands can land mid-run.
type slowStrategy struct{}

func (slowStrategy) Name() string { return slowStrategyName }

func (slowStrategy) Step(ctx context.Context, state search.State) (search.State, search.Candidate, error) {
	select {
	case <-ctx.Done():
		return search.State{}, search.Candidate{}, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	next := state.Next()
	c := search.Candidate{Genome: genotype.Baseline(), Fitness: float64(next.Generation % 90), Label: slowStrategyName}
	c.Accepted = next.Offer(c)
	next.Settle(c.Accepted)
	return next, c, nil
}

func registerSlow(t *testing.T) {
	t.Helper()
	registerSlowOnce.Do(func() {
		require.NoError(t, RegisterStrategy(slowStrategyName, func(StrategyConfig) (search.Strategy, error) {
			return slowStrategy{}, nil
		}))
	})
}

func newTestPolis(t *testing.T) *Polis {
	t.Helper()
	p := NewPolis(Config{Store: storage.NewMemoryStore()})
	require.NoError(t, p.Init(context.Background()))
	return p
}

func startRun(t *testing.T, p *Polis, runID string) <-chan RunResult {
	t.Helper()
	registerSlow(t)
	done := make(chan RunResult, 1)
	go func() {
		result, err := p.RunSearch(context.Background(), RunConfig{
			RunID:    runID,
			Strategy: StrategyConfig{Name: slowStrategyName},
		})
		assert.NoError(t, err)
		done <- result
	}()
	require.Eventually(t, func() bool {
		_, ok := p.Snapshot(runID)
		return ok
	}, time.Second, time.Millisecond)
	return done
}

func TestPolisRequiresInit(t *testing.T) {
	p := NewPolis(Config{Store: storage.NewMemoryStore()})
	_, err := p.RunSearch(context.Background(), RunConfig{Strategy: StrategyConfig{Name: "hillclimb"}})
	require.Error(t, err)

	require.Error(t, NewPolis(Config{}).Init(context.Background()))
}

func TestPolisRunSearchToCompletion(t *testing.T) {
	p := newTestPolis(t)
	rec := &search.Recorder{}
	result, err := p.RunSearch(context.Background(), RunConfig{
		RunID:          "evo",
		Strategy:       StrategyConfig{Name: "evolutionary", Seed: 7, Children: 2},
		Observer:       rec,
		MaxGenerations: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "evo", result.RunID)
	assert.Equal(t, "evolutionary", result.Strategy)
	assert.Equal(t, 5, result.TotalGenerations)
	assert.Greater(t, result.Best.Fitness, 0.0)
	assert.Len(t, rec.Kinds(search.EventGeneration), 5)
	assert.Empty(t, p.ActiveRuns())

	best, ok, err := p.Store().GetBest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.Best.Fitness, best.Fitness)
}

func TestPolisGeneratesRunID(t *testing.T) {
	p := newTestPolis(t)
	result, err := p.RunSearch(context.Background(), RunConfig{
		Strategy:       StrategyConfig{Name: "hillclimb", Playthroughs: 2},
		MaxGenerations: 1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
}

func TestPolisUnknownStrategy(t *testing.T) {
	p := newTestPolis(t)
	_, err := p.RunSearch(context.Background(), RunConfig{Strategy: StrategyConfig{Name: "annealing"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}

func TestPolisRunControl(t *testing.T) {
	p := newTestPolis(t)
	done := startRun(t, p, "slow")
	assert.Equal(t, []string{"slow"}, p.ActiveRuns())

	_, err := p.RunSearch(context.Background(), RunConfig{RunID: "slow", Strategy: StrategyConfig{Name: slowStrategyName}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunActive))

	require.NoError(t, p.PauseRun("slow"))
	require.Eventually(t, func() bool {
		snap, ok := p.Snapshot("slow")
		return ok && snap.Paused
	}, time.Second, time.Millisecond)

	paused, _ := p.Snapshot("slow")
	time.Sleep(10 * time.Millisecond)
	still, _ := p.Snapshot("slow")
	assert.Equal(t, paused.TotalGenerations, still.TotalGenerations)

	require.NoError(t, p.ResetRun("slow"))
	require.Eventually(t, func() bool {
		snap, _ := p.Snapshot("slow")
		return snap.Resets == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, p.ContinueRun("slow"))
	require.Eventually(t, func() bool {
		snap, _ := p.Snapshot("slow")
		return !snap.Paused && snap.TotalGenerations > still.TotalGenerations
	}, time.Second, time.Millisecond)

	champion, ok := p.Champion("slow")
	require.True(t, ok)
	assert.Greater(t, champion.Fitness, 0.0)

	require.NoError(t, p.StopRun("slow"))
	select {
	case result := <-done:
		assert.Equal(t, StopReasonCommand, result.StopReason)
		assert.GreaterOrEqual(t, result.Resets, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Empty(t, p.ActiveRuns())
}

func TestPolisStopStopsEveryRun(t *testing.T) {
	p := newTestPolis(t)
	a := startRun(t, p, "a")
	b := startRun(t, p, "b")
	p.Stop()
	for _, done := range []<-chan RunResult{a, b} {
		select {
		case result := <-done:
			assert.Equal(t, StopReasonCommand, result.StopReason)
		case <-time.After(2 * time.Second):
			t.Fatal("run did not stop")
		}
	}
	assert.False(t, p.Started())
}

func TestPolisCommandErrors(t *testing.T) {
	p := newTestPolis(t)
	require.Error(t, p.StopRun(""))
	err := p.ResetRun("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotActive))
	_, ok := p.Snapshot("missing")
	assert.False(t, ok)
}

func TestStrategyRegistry(t *testing.T) {
	names := Strategies()
	for _, name := range []string{"evolutionary", "focused", "generational", "gradient", "hillclimb"} {
		assert.Contains(t, names, name)
		strategy, err := NewStrategy(StrategyConfig{Name: name, Seed: 1})
		require.NoError(t, err)
		assert.Equal(t, name, strategy.Name())
	}

	err := RegisterStrategy("hillclimb", func(StrategyConfig) (search.Strategy, error) { return nil, nil })
	assert.True(t, errors.Is(err, ErrStrategyExists))
	require.Error(t, RegisterStrategy("", nil))

	_, err = NewStrategy(StrategyConfig{Name: "generational", Selector: "roulette"})
	require.Error(t, err)
}

func TestLogObserverSamplesGenerations(t *testing.T) {
	var buf bytes.Buffer
	obs := LogObserver{Logger: slog.New(slog.NewTextHandler(&buf, nil)), Every: 10}

	obs.Observe(search.Event{Kind: search.EventGeneration, Generation: 3})
	assert.Empty(t, buf.String())

	obs.Observe(search.Event{Kind: search.EventGeneration, Generation: 20, RunID: "r"})
	assert.Contains(t, buf.String(), "generation=20")

	buf.Reset()
	obs.Observe(search.Event{Kind: search.EventReset, Generation: 21, Message: "plateau"})
	assert.Contains(t, buf.String(), "trigger=plateau")

	buf.Reset()
	obs.Observe(search.Event{Kind: search.EventImproved, Generation: 22, Fitness: 71.5})
	assert.Contains(t, buf.String(), "new best")
}

func TestRunResultChampionIsCopy(t *testing.T) {
	store := storage.NewMemoryStore()
	c := newTestController(t, ControllerConfig{
		Strategy:       &scriptStrategy{script: []float64{30}},
		Store:          store,
		MaxGenerations: 1,
	})
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	result.Champion.Genome.Player.BaseHP = 999

	champion, ok := c.Champion()
	require.True(t, ok)
	assert.NotEqual(t, 999, champion.Genome.Player.BaseHP)
}
