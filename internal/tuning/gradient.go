package tuning

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
	"equilibrium/internal/search"
)

const (
	minJumpVariance = 0.1
	maxJumpVariance = 5.0
)

// GradientDescent steers session length with a momentum-smoothed gradient
// estimated from the signed session error. Every JumpEvery cycles it takes a
// normally distributed jump whose spread inflates while stagnant and
// deflates on improvement.
type GradientDescent struct {
	Rand            *rand.Rand
	Evaluator       search.Evaluator
	Session         oracle.SessionConfig
	Policy          PlaythroughPolicy
	TargetTurns     float64
	LearningRate    float64
	MomentumFactor  float64
	Alpha           float64
	ErrorDeadband   float64
	JumpEvery       int
	InitialVariance float64
	LeaderboardSize int
	Levers          []string
	mu              sync.Mutex
}

type gradientMemory struct {
	live        model.Genome
	position    map[string]float64
	gradients   map[string]float64
	momentum    map[string]float64
	cycle       int
	variance    float64
	bestScore   float64
	leaderboard *search.Leaderboard
}

func (m *gradientMemory) CloneMemory() search.Memory {
	cp := *m
	cp.live = genotype.CloneGenome(m.live)
	cp.position = cloneFloats(m.position)
	cp.gradients = cloneFloats(m.gradients)
	cp.momentum = cloneFloats(m.momentum)
	cp.leaderboard = m.leaderboard.Clone()
	return &cp
}

func cloneFloats(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (g *GradientDescent) Name() string {
	return "gradient"
}

func (g *GradientDescent) validate() error {
	if g == nil || g.Rand == nil {
		return errors.New("random source is required")
	}
	if g.Evaluator == nil {
		return errors.New("evaluator is required")
	}
	if g.TargetTurns <= 0 {
		return errors.New("target turns must be > 0")
	}
	if g.LearningRate <= 0 {
		return errors.New("learning rate must be > 0")
	}
	if g.MomentumFactor < 0 || g.MomentumFactor >= 1 {
		return errors.New("momentum factor must be within [0,1)")
	}
	if g.Alpha <= 0 || g.Alpha > 1 {
		return errors.New("alpha must be within (0,1]")
	}
	if g.JumpEvery < 0 {
		return errors.New("jump interval must be >= 0")
	}
	return nil
}

// Leaderboard returns the top configurations recorded in state, if state was
// produced by this strategy.
func (g *GradientDescent) Leaderboard(state search.State) []model.LeaderboardEntry {
	mem, ok := state.Memory.(*gradientMemory)
	if !ok || mem == nil {
		return nil
	}
	return mem.leaderboard.Entries()
}

func (g *GradientDescent) Step(ctx context.Context, state search.State) (search.State, search.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return state, search.Candidate{}, err
	}
	if err := g.validate(); err != nil {
		return state, search.Candidate{}, err
	}

	next := state.Next()
	mem, ok := next.Memory.(*gradientMemory)
	if !ok || mem == nil {
		mem = g.newMemory(next.Best)
	}
	mem.cycle++

	session := g.Session
	if session.Playthroughs == 0 {
		session = oracle.DefaultSessionConfig()
	}
	policy := g.Policy
	if policy == nil {
		policy = FixedPlaythroughPolicy{}
	}

	g.mu.Lock()
	report, err := measureSessions(ctx, g.Rand, mem.live, session, policy.Playthroughs(session.Playthroughs, mem.cycle, next.Stagnation))
	g.mu.Unlock()
	if err != nil {
		return state, search.Candidate{}, err
	}

	sessionError := report.MeanTurns - g.TargetTurns
	score := SessionScore(report.MeanTurns, g.TargetTurns)
	result := g.Evaluator.Evaluate(mem.live, next.Difficulty())
	candidate := search.Candidate{
		Genome:  genotype.CloneGenome(mem.live),
		Fitness: result.Total,
		Result:  result,
		Label:   sessionLabel(score, report.MeanTurns),
	}
	candidate.Accepted = next.Offer(candidate)
	next.Settle(candidate.Accepted)
	mem.leaderboard.Add(candidate.Label, next.Generation, candidate.Fitness, mem.live)

	if score > mem.bestScore {
		mem.bestScore = score
		mem.variance = math.Max(minJumpVariance, mem.variance*0.8)
	} else {
		mem.variance = math.Min(maxJumpVariance, mem.variance*1.2)
	}

	if mem.cycle > 1 {
		g.estimate(mem, sessionError)
	}
	switch {
	case g.JumpEvery > 0 && mem.cycle%g.JumpEvery == 0:
		g.jump(mem)
	case mem.cycle > 2:
		g.descend(mem, sessionError)
	}

	next.Memory = mem
	return next, candidate, nil
}

// Reset discards gradients, momentum and the live configuration.
func (g *GradientDescent) Reset(state search.State) search.State {
	next := state.Clone()
	next.Memory = nil
	return next
}

func (g *GradientDescent) newMemory(start model.Genome) *gradientMemory {
	mem := &gradientMemory{
		live:        genotype.CloneGenome(start),
		position:    make(map[string]float64),
		gradients:   make(map[string]float64),
		momentum:    make(map[string]float64),
		variance:    g.InitialVariance,
		leaderboard: search.NewLeaderboard(g.LeaderboardSize),
	}
	if mem.variance <= 0 {
		mem.variance = 1
	}
	for _, name := range g.levers() {
		if p, ok := genotype.Lookup(name); ok {
			mem.position[name] = p.Get(start)
		}
	}
	return mem
}

func (g *GradientDescent) levers() []string {
	if len(g.Levers) > 0 {
		return g.Levers
	}
	return Levers()
}

// estimate folds the signed error into each lever's gradient with an
// exponential moving average. Errors inside the deadband are ignored.
func (g *GradientDescent) estimate(mem *gradientMemory, sessionError float64) {
	if math.Abs(sessionError) <= g.ErrorDeadband {
		return
	}
	for _, name := range g.levers() {
		l, ok := leverFor(name)
		if !ok {
			continue
		}
		observed := -l.Direction * sessionError / l.Sensitivity
		mem.gradients[name] = g.Alpha*observed + (1-g.Alpha)*mem.gradients[name]
	}
}

func (g *GradientDescent) descend(mem *gradientMemory, sessionError float64) {
	lr := g.LearningRate * math.Min(1, math.Abs(sessionError)/10)
	for _, name := range g.levers() {
		update := g.MomentumFactor*mem.momentum[name] + (1-g.MomentumFactor)*mem.gradients[name]
		mem.momentum[name] = update
		g.move(mem, name, lr*update)
	}
}

func (g *GradientDescent) jump(mem *gradientMemory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, name := range g.levers() {
		l, ok := leverFor(name)
		if !ok {
			continue
		}
		dist := distuv.Normal{Mu: 0, Sigma: mem.variance * l.Step}
		p := math.Min(math.Max(g.Rand.Float64(), 1e-9), 1-1e-9)
		g.move(mem, name, dist.Quantile(p))
	}
}

// move shifts a lever's continuous position and writes the clamped value
// back into the live configuration.
func (g *GradientDescent) move(mem *gradientMemory, name string, delta float64) {
	p, ok := genotype.Lookup(name)
	if !ok {
		return
	}
	pos := p.Clamp(mem.position[name] + delta)
	mem.position[name] = pos
	live := genotype.CloneGenome(mem.live)
	p.Set(&live, pos)
	genotype.Clamp(&live)
	genotype.Regenerate(&live)
	mem.live = live
}
