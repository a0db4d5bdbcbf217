// Package oracle predicts combat outcomes for stat matchups without running
// the interactive game. Every function here is pure and safe to call from
// concurrent evaluators.
package oracle

// MaxRounds caps a predicted fight.
const MaxRounds = 50

// Matchup is one player-versus-enemy stat line.
type Matchup struct {
	PlayerHP      int
	PlayerAttack  int
	PlayerDefense int
	EnemyHP       int
	EnemyDamage   int
}

type Outcome struct {
	Won          bool
	Turns        int
	PlayerHPLeft int
}

// Predict resolves a matchup deterministically: the player strikes first, the
// enemy retaliates for max(1, damage-defense) while it survives. A fight that
// reaches MaxRounds with the player standing counts as a win.
func Predict(m Matchup) Outcome {
	playerHP := m.PlayerHP
	enemyHP := m.EnemyHP
	hit := m.EnemyDamage - m.PlayerDefense
	if hit < 1 {
		hit = 1
	}

	turns := 0
	for playerHP > 0 && enemyHP > 0 && turns < MaxRounds {
		turns++
		enemyHP -= m.PlayerAttack
		if enemyHP <= 0 {
			break
		}
		playerHP -= hit
	}

	left := playerHP
	if left < 0 {
		left = 0
	}
	return Outcome{Won: playerHP > 0, Turns: turns, PlayerHPLeft: left}
}

// Win reports only the win flag of Predict.
func Win(m Matchup) bool {
	return Predict(m).Won
}
