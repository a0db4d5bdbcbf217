package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/montanaflynn/stats"

	"equilibrium/internal/model"
)

// SessionConfig shapes simulated playthroughs. Session length is measured in
// game turns: travel between encounters plus combat rounds.
type SessionConfig struct {
	Playthroughs    int
	MaxTurns        int
	TravelTurns     int
	CombatsPerLevel int
	MaxLevel        int
	// RestHealPercent of max HP is recovered between encounters.
	RestHealPercent int
}

// DefaultSessionConfig fits a full ten-level baseline playthrough (about 460
// turns) well inside MaxTurns, so session length stays measurable.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Playthroughs:    20,
		MaxTurns:        1000,
		TravelTurns:     4,
		CombatsPerLevel: 7,
		MaxLevel:        10,
		RestHealPercent: 20,
	}
}

func (c SessionConfig) Validate() error {
	if c.Playthroughs <= 0 {
		return errors.New("playthroughs must be > 0")
	}
	if c.MaxTurns <= 0 {
		return errors.New("max turns must be > 0")
	}
	if c.TravelTurns < 0 {
		return errors.New("travel turns must be >= 0")
	}
	if c.CombatsPerLevel <= 0 {
		return errors.New("combats per level must be > 0")
	}
	if c.MaxLevel <= 0 {
		return errors.New("max level must be > 0")
	}
	if c.RestHealPercent < 0 || c.RestHealPercent > 100 {
		return fmt.Errorf("rest heal percent must be within [0,100]: %d", c.RestHealPercent)
	}
	return nil
}

type Playthrough struct {
	Turns      int
	Encounters int
	Level      int
	Died       bool
	Completed  bool
}

type SessionReport struct {
	Playthroughs []Playthrough
	MeanTurns    float64
	MedianTurns  float64
	StdDevTurns  float64
	DeathRate    float64
	MeanLevel    float64
}

// SimulateSessions runs cfg.Playthroughs independent playthroughs. The rng
// drives travel length and enemy HP jitter only; combat itself stays
// deterministic.
func SimulateSessions(ctx context.Context, rng *rand.Rand, g model.Genome, cfg SessionConfig) (SessionReport, error) {
	if rng == nil {
		return SessionReport{}, errors.New("rng is required")
	}
	if err := cfg.Validate(); err != nil {
		return SessionReport{}, err
	}

	report := SessionReport{Playthroughs: make([]Playthrough, 0, cfg.Playthroughs)}
	turns := make([]float64, 0, cfg.Playthroughs)
	levels := make([]float64, 0, cfg.Playthroughs)
	deaths := 0
	for i := 0; i < cfg.Playthroughs; i++ {
		if err := ctx.Err(); err != nil {
			return SessionReport{}, err
		}
		p := simulatePlaythrough(rng, g, cfg)
		report.Playthroughs = append(report.Playthroughs, p)
		turns = append(turns, float64(p.Turns))
		levels = append(levels, float64(p.Level))
		if p.Died {
			deaths++
		}
	}

	report.MeanTurns, _ = stats.Mean(turns)
	report.MedianTurns, _ = stats.Median(turns)
	report.StdDevTurns, _ = stats.StandardDeviation(turns)
	report.MeanLevel, _ = stats.Mean(levels)
	report.DeathRate = float64(deaths) / float64(cfg.Playthroughs)
	return report, nil
}

func simulatePlaythrough(rng *rand.Rand, g model.Genome, cfg SessionConfig) Playthrough {
	level := 1
	wins := 0
	maxHP, _, _ := PlayerAt(g, level, GearTier(level))
	hp := maxHP
	p := Playthrough{Level: level}

	for p.Turns < cfg.MaxTurns {
		if cfg.TravelTurns > 0 {
			p.Turns += 1 + rng.Intn(cfg.TravelTurns*2)
		}
		m := MatchupAt(g, level, GearTier(level))
		m.PlayerHP = hp
		m.EnemyHP = max(1, m.EnemyHP+rng.Intn(3)-1)
		outcome := Predict(m)
		p.Turns += outcome.Turns
		p.Encounters++
		if !outcome.Won {
			p.Died = true
			break
		}

		hp = min(maxHP, outcome.PlayerHPLeft+maxHP*cfg.RestHealPercent/100)
		wins++
		if wins%cfg.CombatsPerLevel == 0 {
			if level == cfg.MaxLevel {
				p.Completed = true
				break
			}
			level++
			maxHP, _, _ = PlayerAt(g, level, GearTier(level))
			hp = maxHP
		}
	}
	if p.Turns > cfg.MaxTurns {
		p.Turns = cfg.MaxTurns
	}
	p.Level = level
	return p
}
