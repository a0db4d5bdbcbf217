package oracle

import (
	"math"

	"equilibrium/internal/model"
)

// MaxTier is the highest equipment tier.
const MaxTier = 5

// TierBonus is the integer stat bonus granted by an equipment tier.
func TierBonus(g model.Genome, tier int) int {
	if tier <= 0 {
		return 0
	}
	if tier > MaxTier {
		tier = MaxTier
	}
	return int(math.Round(math.Pow(float64(tier), g.Equipment.PowerGrowth)))
}

// PlayerAt derives the player stat line at a level. Earned stat points are
// split 60/40 between strength and defense and the tier bonus applies to both.
func PlayerAt(g model.Genome, level, tier int) (hp, attack, defense int) {
	hp = g.Player.BaseHP + level*g.Player.HPPerLevel
	points := (level - 1) * g.Player.StatPointsPerLevel
	if points < 0 {
		points = 0
	}
	strPoints := int(float64(points) * 0.6)
	bonus := TierBonus(g, tier)
	attack = g.Player.BaseSTR + strPoints + bonus
	defense = g.Player.BaseDEF + (points - strPoints) + bonus
	return hp, attack, defense
}

// EnemyAt derives the enemy stat line faced at a player level.
func EnemyAt(g model.Genome, level int) (hp, damage int) {
	hp = g.Enemy.BaseHP + int(float64(level)*g.Enemy.HPScaling)
	damage = g.Enemy.BaseDamage + int(float64(level)*g.Enemy.DamageScaling)
	return hp, damage
}

// GearTier is the mid-game equipment tier assumed at a level.
func GearTier(level int) int {
	return min(MaxTier, level/3)
}

// MatchupAt pairs the player and enemy stat lines for a level.
func MatchupAt(g model.Genome, level, tier int) Matchup {
	hp, attack, defense := PlayerAt(g, level, tier)
	enemyHP, enemyDamage := EnemyAt(g, level)
	return Matchup{
		PlayerHP:      hp,
		PlayerAttack:  attack,
		PlayerDefense: defense,
		EnemyHP:       enemyHP,
		EnemyDamage:   enemyDamage,
	}
}
