package tuning

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
	"equilibrium/internal/search"
)

// HillClimber tunes one live configuration toward a target session length.
// It remembers its last parameter change: an improvement repeats it, a
// significant regression reverses it, anything else advances a round-robin
// perturbation through Rotation.
type HillClimber struct {
	Rand                *rand.Rand
	Evaluator           search.Evaluator
	Session             oracle.SessionConfig
	Policy              PlaythroughPolicy
	TargetTurns         float64
	RegressionTolerance float64
	Rotation            []string
	mu                  sync.Mutex
}

type change struct {
	Param string
	Delta float64
}

type hillMemory struct {
	live       model.Genome
	cycle      int
	lastScore  float64
	lastChange *change
	rotation   int
}

func (m *hillMemory) CloneMemory() search.Memory {
	cp := *m
	cp.live = genotype.CloneGenome(m.live)
	if m.lastChange != nil {
		c := *m.lastChange
		cp.lastChange = &c
	}
	return &cp
}

func (h *HillClimber) Name() string {
	return "hillclimb"
}

func (h *HillClimber) validate() error {
	if h == nil || h.Rand == nil {
		return errors.New("random source is required")
	}
	if h.Evaluator == nil {
		return errors.New("evaluator is required")
	}
	if h.TargetTurns <= 0 {
		return errors.New("target turns must be > 0")
	}
	if h.RegressionTolerance < 0 {
		return errors.New("regression tolerance must be >= 0")
	}
	return nil
}

func (h *HillClimber) Step(ctx context.Context, state search.State) (search.State, search.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return state, search.Candidate{}, err
	}
	if err := h.validate(); err != nil {
		return state, search.Candidate{}, err
	}

	next := state.Next()
	mem, ok := next.Memory.(*hillMemory)
	if !ok || mem == nil {
		mem = &hillMemory{live: genotype.CloneGenome(next.Best)}
	}
	mem.cycle++

	policy := h.Policy
	if policy == nil {
		policy = FixedPlaythroughPolicy{}
	}
	session := h.sessionConfig()
	playthroughs := policy.Playthroughs(session.Playthroughs, mem.cycle, next.Stagnation)

	h.mu.Lock()
	report, err := measureSessions(ctx, h.Rand, mem.live, session, playthroughs)
	h.mu.Unlock()
	if err != nil {
		return state, search.Candidate{}, err
	}

	// The session score steers the climb; ranking and persistence use the
	// evaluator total like every other strategy.
	score := SessionScore(report.MeanTurns, h.TargetTurns)
	result := h.Evaluator.Evaluate(mem.live, next.Difficulty())
	candidate := search.Candidate{
		Genome:  genotype.CloneGenome(mem.live),
		Fitness: result.Total,
		Result:  result,
		Label:   sessionLabel(score, report.MeanTurns),
	}
	candidate.Accepted = next.Offer(candidate)
	next.Settle(candidate.Accepted)

	if mem.cycle > 1 {
		h.adjust(mem, score, report.MeanTurns)
	}
	mem.lastScore = score
	next.Memory = mem
	return next, candidate, nil
}

// Reset discards the live configuration and directional memory.
func (h *HillClimber) Reset(state search.State) search.State {
	next := state.Clone()
	next.Memory = nil
	return next
}

func (h *HillClimber) adjust(mem *hillMemory, score, meanTurns float64) {
	switch {
	case mem.lastChange != nil && score > mem.lastScore:
		h.apply(mem, *mem.lastChange)
	case mem.lastChange != nil && score < mem.lastScore-h.RegressionTolerance:
		h.apply(mem, change{Param: mem.lastChange.Param, Delta: -mem.lastChange.Delta})
	default:
		rotation := h.Rotation
		if len(rotation) == 0 {
			rotation = Levers()
		}
		name := rotation[mem.rotation%len(rotation)]
		mem.rotation++
		l, ok := leverFor(name)
		if !ok {
			mem.lastChange = nil
			return
		}
		h.apply(mem, change{Param: name, Delta: h.perturbation(l, meanTurns)})
	}
}

// perturbation steps a lever toward the target length; on target it picks a
// random direction.
func (h *HillClimber) perturbation(l lever, meanTurns float64) float64 {
	switch {
	case meanTurns > h.TargetTurns:
		return -l.Direction * l.Step
	case meanTurns < h.TargetTurns:
		return l.Direction * l.Step
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Rand.Intn(2) == 0 {
		return -l.Step
	}
	return l.Step
}

func (h *HillClimber) apply(mem *hillMemory, c change) {
	mem.live = genotype.Perturb(mem.live, c.Param, c.Delta)
	mem.lastChange = &c
}

func (h *HillClimber) sessionConfig() oracle.SessionConfig {
	cfg := h.Session
	if cfg.Playthroughs == 0 {
		cfg = oracle.DefaultSessionConfig()
	}
	return cfg
}
