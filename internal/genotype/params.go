package genotype

import (
	"math"

	"equilibrium/internal/model"
)

const (
	ParamBaseHP             = "player.base_hp"
	ParamHPPerLevel         = "player.hp_per_level"
	ParamBaseSTR            = "player.base_str"
	ParamBaseDEF            = "player.base_def"
	ParamStatPointsPerLevel = "player.stat_points_per_level"
	ParamEnemyBaseHP        = "enemy.base_hp"
	ParamEnemyHPScaling     = "enemy.hp_scaling"
	ParamEnemyBaseDamage    = "enemy.base_damage"
	ParamEnemyDamageScaling = "enemy.damage_scaling"
	ParamBaseGold           = "economy.base_gold"
	ParamGoldScaling        = "economy.gold_scaling"
	ParamBaseTreasure       = "loot.base_treasure"
	ParamTreasurePerDepth   = "loot.treasure_per_depth"
	ParamEquipmentDropRate  = "loot.equipment_drop_rate"
	ParamTierPowerGrowth    = "equipment.power_growth"
	ParamTierCostFactor     = "equipment.cost_factor"
)

// Param describes one searchable scalar of the genome.
type Param struct {
	Name     string
	Min      float64
	Max      float64
	Baseline float64
	Integer  bool

	get func(*model.Genome) float64
	set func(*model.Genome, float64)

	// delta draws an unscaled mutation step.
	delta func(rng randSource) float64
	// scaled steps are multiplied by the mutation strength.
	scaled bool
	// rateFactor multiplies the mutation probability.
	rateFactor float64
}

type randSource interface {
	Intn(n int) int
	Float64() float64
}

// Get reads the parameter from g.
func (p Param) Get(g model.Genome) float64 {
	return p.get(&g)
}

// Set writes v into g, rounding integer parameters. It does not clamp.
func (p Param) Set(g *model.Genome, v float64) {
	if p.Integer {
		v = math.Round(v)
	}
	p.set(g, v)
}

// Clamp bounds v to the parameter range.
func (p Param) Clamp(v float64) float64 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// Span is the width of the parameter range.
func (p Param) Span() float64 {
	return p.Max - p.Min
}

func uniformInt(lo, hi int) func(randSource) float64 {
	return func(rng randSource) float64 {
		return float64(lo + rng.Intn(hi-lo+1))
	}
}

func plusMinus(step float64) func(randSource) float64 {
	return func(rng randSource) float64 {
		if rng.Intn(2) == 0 {
			return -step
		}
		return step
	}
}

func centered(width float64) func(randSource) float64 {
	return func(rng randSource) float64 {
		return (rng.Float64() - 0.5) * width
	}
}

func intField(f func(*model.Genome) *int) (func(*model.Genome) float64, func(*model.Genome, float64)) {
	return func(g *model.Genome) float64 { return float64(*f(g)) },
		func(g *model.Genome, v float64) { *f(g) = int(v) }
}

func floatField(f func(*model.Genome) *float64) (func(*model.Genome) float64, func(*model.Genome, float64)) {
	return func(g *model.Genome) float64 { return *f(g) },
		func(g *model.Genome, v float64) { *f(g) = v }
}

func intParam(name string, lo, hi, base int, delta func(randSource) float64, scaled bool, rateFactor float64, f func(*model.Genome) *int) Param {
	get, set := intField(f)
	return Param{
		Name: name, Min: float64(lo), Max: float64(hi), Baseline: float64(base), Integer: true,
		get: get, set: set, delta: delta, scaled: scaled, rateFactor: rateFactor,
	}
}

func floatParam(name string, lo, hi, base float64, delta func(randSource) float64, rateFactor float64, f func(*model.Genome) *float64) Param {
	get, set := floatField(f)
	return Param{
		Name: name, Min: lo, Max: hi, Baseline: base,
		get: get, set: set, delta: delta, scaled: true, rateFactor: rateFactor,
	}
}

var params = []Param{
	intParam(ParamBaseHP, 15, 40, 20, uniformInt(-3, 3), true, 1, func(g *model.Genome) *int { return &g.Player.BaseHP }),
	intParam(ParamHPPerLevel, 1, 5, 3, plusMinus(1), false, 1, func(g *model.Genome) *int { return &g.Player.HPPerLevel }),
	intParam(ParamBaseSTR, 2, 5, 3, plusMinus(1), false, 1, func(g *model.Genome) *int { return &g.Player.BaseSTR }),
	intParam(ParamBaseDEF, 0, 3, 1, plusMinus(1), false, 1, func(g *model.Genome) *int { return &g.Player.BaseDEF }),
	intParam(ParamStatPointsPerLevel, 1, 3, 2, plusMinus(1), false, 1, func(g *model.Genome) *int { return &g.Player.StatPointsPerLevel }),
	intParam(ParamEnemyBaseHP, 3, 12, 5, uniformInt(-2, 2), true, 1, func(g *model.Genome) *int { return &g.Enemy.BaseHP }),
	floatParam(ParamEnemyHPScaling, 0.5, 3.0, 1.5, centered(0.5), 1, func(g *model.Genome) *float64 { return &g.Enemy.HPScaling }),
	intParam(ParamEnemyBaseDamage, 1, 5, 2, uniformInt(-1, 1), true, 1, func(g *model.Genome) *int { return &g.Enemy.BaseDamage }),
	floatParam(ParamEnemyDamageScaling, 0.1, 1.0, 0.4, centered(0.3), 1, func(g *model.Genome) *float64 { return &g.Enemy.DamageScaling }),
	intParam(ParamBaseGold, 8, 20, 10, uniformInt(-3, 3), true, 1.5, func(g *model.Genome) *int { return &g.Economy.BaseGold }),
	floatParam(ParamGoldScaling, 2.0, 6.0, 3.5, centered(2), 1.5, func(g *model.Genome) *float64 { return &g.Economy.GoldScaling }),
	intParam(ParamBaseTreasure, 10, 50, 20, plusMinus(10), true, 1, func(g *model.Genome) *int { return &g.Loot.BaseTreasure }),
	intParam(ParamTreasurePerDepth, 15, 60, 30, plusMinus(10), true, 1, func(g *model.Genome) *int { return &g.Loot.TreasurePerDepth }),
	intParam(ParamEquipmentDropRate, 10, 40, 20, plusMinus(5), false, 1, func(g *model.Genome) *int { return &g.Loot.EquipmentDropRate }),
	floatParam(ParamTierPowerGrowth, 1.0, 1.6, 1.0, centered(0.2), 1, func(g *model.Genome) *float64 { return &g.Equipment.PowerGrowth }),
	intParam(ParamTierCostFactor, 15, 35, 25, uniformInt(-3, 3), true, 1, func(g *model.Genome) *int { return &g.Equipment.CostFactor }),
}

// Params returns the parameter table in declaration order.
func Params() []Param {
	return append([]Param(nil), params...)
}

// Lookup returns the parameter with the given name.
func Lookup(name string) (Param, bool) {
	for _, p := range params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ParamNames lists every parameter name in declaration order.
func ParamNames() []string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	return names
}
