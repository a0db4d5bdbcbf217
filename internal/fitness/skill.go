package fitness

import (
	"fmt"
	"math"

	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
)

const startingStamina = 12

// SkillBalance checks power strike, stun, berserk and stamina at levels 1, 5
// and 10. Each check contributes up to 25 points per level.
type SkillBalance struct{}

func (SkillBalance) Evaluate(g model.Genome, _ Context) model.MetricResult {
	result := model.MetricResult{}
	scores := make([]float64, 0, 3)
	for _, level := range []int{1, 5, 10} {
		hp := g.Player.BaseHP + level*g.Player.HPPerLevel
		str := g.Player.BaseSTR + level
		def := g.Player.BaseDEF + level
		enemyHP, enemyDamage := oracle.EnemyAt(g, level)
		base := oracle.Matchup{PlayerHP: hp, PlayerAttack: str, PlayerDefense: def, EnemyHP: enemyHP, EnemyDamage: enemyDamage}

		levelScore := 0.0

		strike := powerStrikeBenefit(base)
		switch {
		case strike > 0.1 && strike < 0.4:
			levelScore += 25
		case strike > 0.4:
			result.Warnings = append(result.Warnings, fmt.Sprintf("L%d: power strike too strong (%.0f%% advantage)", level, strike*100))
			levelScore += 10
		default:
			levelScore += 5
		}

		stun := stunBenefit(base)
		switch {
		case stun > 0.05 && stun < 0.30:
			levelScore += 25
		case stun > 0.30:
			result.Warnings = append(result.Warnings, fmt.Sprintf("L%d: stun-lock possible (%.0f%% advantage)", level, stun*100))
			levelScore += 10
		default:
			levelScore += 15
		}

		rage := berserkBenefit(base)
		switch {
		case rage > -0.1 && rage < 0.3:
			levelScore += 25
		case rage < -0.1:
			result.Details = append(result.Details, fmt.Sprintf("L%d: berserk too risky (%.0f%%)", level, rage*100))
			levelScore += 5
		default:
			levelScore += 15
		}

		if staminaCoverage(str, enemyHP) > 0.7 {
			levelScore += 25
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("L%d: skill stamina too limited", level))
			levelScore += 10
		}

		scores = append(scores, levelScore)
	}

	result.Score = meanScore(scores)
	result.Details = append(result.Details, fmt.Sprintf("Average skill balance: %.0f/100", result.Score))
	return result
}

// powerStrikeBenefit is the win-rate gain from striking at 1.5x strength.
func powerStrikeBenefit(m oracle.Matchup) float64 {
	normal := oracle.Spread(m, oracle.SpreadSize).WinRate
	boosted := m
	boosted.PlayerAttack = int(float64(m.PlayerAttack) * 1.5)
	return oracle.Spread(boosted, oracle.SpreadSize).WinRate - normal
}

// stunBenefit is the share of HP saved when stuns cancel ~15% of incoming
// damage.
func stunBenefit(m oracle.Matchup) float64 {
	if m.PlayerAttack <= 0 || m.PlayerHP <= 0 {
		return 0
	}
	turns := m.EnemyHP/m.PlayerAttack + 1
	taken := turns * max(1, m.EnemyDamage-m.PlayerDefense)
	stunned := int(float64(taken) * 0.85)
	return float64(taken-stunned) / float64(m.PlayerHP)
}

// berserkBenefit compares damage taken with up to three turns of rage
// (double damage dealt, 1.5x taken) against a normal fight, as a share of HP.
func berserkBenefit(m oracle.Matchup) float64 {
	if m.PlayerAttack <= 0 || m.PlayerHP <= 0 {
		return 0
	}
	hit := max(1, m.EnemyDamage-m.PlayerDefense)
	rageTurns := min(3, m.EnemyHP/(m.PlayerAttack*2)+1)
	normalTurns := int(math.Ceil(float64(m.EnemyHP) / float64(m.PlayerAttack)))
	remaining := max(0, normalTurns-rageTurns)
	rageTaken := rageTurns*int(float64(hit)*1.5) + remaining*hit
	return float64(normalTurns*hit-rageTaken) / float64(m.PlayerHP)
}

// staminaCoverage is the fraction of a power-strike fight the starting
// stamina pool can pay for.
func staminaCoverage(str, enemyHP int) float64 {
	if str <= 0 {
		return 0
	}
	turns := int(math.Ceil(float64(enemyHP) / (float64(str) * 1.5)))
	if turns <= 0 {
		return 1
	}
	return math.Min(1, float64(startingStamina)/float64(turns*5))
}
