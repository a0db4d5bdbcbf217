package oracle

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"equilibrium/internal/model"
)

func baselineGenome() model.Genome {
	return model.Genome{
		Player:    model.PlayerParams{BaseHP: 20, HPPerLevel: 3, BaseSTR: 3, BaseDEF: 1, StatPointsPerLevel: 2},
		Enemy:     model.EnemyParams{BaseHP: 5, HPScaling: 1.5, BaseDamage: 2, DamageScaling: 0.4},
		Economy:   model.EconomyParams{BaseGold: 10, GoldScaling: 3.5},
		Loot:      model.LootParams{BaseTreasure: 20, TreasurePerDepth: 30, EquipmentDropRate: 20},
		Equipment: model.EquipmentParams{PowerGrowth: 1.0, CostFactor: 25},
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	m := Matchup{PlayerHP: 30, PlayerAttack: 4, PlayerDefense: 1, EnemyHP: 17, EnemyDamage: 5}
	first := Predict(m)
	for i := 0; i < 100; i++ {
		if got := Predict(m); got != first {
			t.Fatalf("predict changed on repeat %d: %+v != %+v", i, got, first)
		}
	}
}

func TestPredictBaselineLevelFiveWinsQuickly(t *testing.T) {
	g := baselineGenome()
	enemyHP, enemyDamage := EnemyAt(g, 5)
	if enemyHP != 12 || enemyDamage != 4 {
		t.Fatalf("unexpected level 5 enemy: hp=%d dmg=%d", enemyHP, enemyDamage)
	}

	outcome := Predict(Matchup{PlayerHP: 35, PlayerAttack: 5, PlayerDefense: 1, EnemyHP: enemyHP, EnemyDamage: enemyDamage})
	if !outcome.Won {
		t.Fatalf("expected player win, got %+v", outcome)
	}
	if outcome.Turns != 3 || outcome.PlayerHPLeft != 29 {
		t.Fatalf("expected 3 turns with 29 hp left, got %+v", outcome)
	}
	if outcome.Turns >= 10 {
		t.Fatalf("expected resolution inside 10 rounds, got %d", outcome.Turns)
	}
}

func TestPredictMinimumDamageIsOne(t *testing.T) {
	outcome := Predict(Matchup{PlayerHP: 2, PlayerAttack: 1, PlayerDefense: 10, EnemyHP: 3, EnemyDamage: 1})
	if outcome.Won {
		t.Fatalf("expected loss from chip damage, got %+v", outcome)
	}
	if outcome.Turns != 2 {
		t.Fatalf("expected 2 turns, got %d", outcome.Turns)
	}
}

func TestPredictRoundCap(t *testing.T) {
	outcome := Predict(Matchup{PlayerHP: 100, PlayerAttack: 0, PlayerDefense: 0, EnemyHP: 10, EnemyDamage: 1})
	if outcome.Turns != MaxRounds {
		t.Fatalf("expected round cap %d, got %d", MaxRounds, outcome.Turns)
	}
	if !outcome.Won || outcome.PlayerHPLeft != 50 {
		t.Fatalf("expected capped survival to count as win with 50 hp, got %+v", outcome)
	}
}

func TestPlayerAtAppliesSplitAndGear(t *testing.T) {
	g := baselineGenome()
	hp, attack, defense := PlayerAt(g, 5, GearTier(5))
	if hp != 35 {
		t.Fatalf("expected hp 35, got %d", hp)
	}
	// 8 points: 4 str, 4 def, tier 1 gear on both.
	if attack != 8 || defense != 6 {
		t.Fatalf("expected attack=8 defense=6, got attack=%d defense=%d", attack, defense)
	}
}

func TestTierBonusFollowsPowerGrowth(t *testing.T) {
	g := baselineGenome()
	for tier := 0; tier <= MaxTier; tier++ {
		if got := TierBonus(g, tier); got != tier {
			t.Fatalf("linear growth tier %d: expected %d, got %d", tier, tier, got)
		}
	}
	g.Equipment.PowerGrowth = 1.5
	if got := TierBonus(g, 4); got != 8 {
		t.Fatalf("expected 4^1.5=8, got %d", got)
	}
}

func TestSpreadStats(t *testing.T) {
	easy := Spread(Matchup{PlayerHP: 100, PlayerAttack: 20, PlayerDefense: 5, EnemyHP: 10, EnemyDamage: 2}, SpreadSize)
	if easy.Trials != SpreadSize || easy.WinRate != 1 {
		t.Fatalf("expected all wins, got %+v", easy)
	}
	if easy.MeanTurns != 1 || easy.TurnStdDev != 0 {
		t.Fatalf("expected one-turn kills, got mean=%f sd=%f", easy.MeanTurns, easy.TurnStdDev)
	}

	hopeless := Spread(Matchup{PlayerHP: 1, PlayerAttack: 1, PlayerDefense: 0, EnemyHP: 30, EnemyDamage: 5}, 3)
	if hopeless.Trials != 3 || hopeless.Wins != 0 || hopeless.MeanTurns != 0 {
		t.Fatalf("expected no wins, got %+v", hopeless)
	}

	clamped := Spread(Matchup{PlayerHP: 10, PlayerAttack: 1, EnemyHP: 1, EnemyDamage: 0}, 0)
	if clamped.Trials != 1 {
		t.Fatalf("expected trial count clamped to 1, got %d", clamped.Trials)
	}
}

func TestSimulateSessionsDeterministicForSeed(t *testing.T) {
	g := baselineGenome()
	cfg := DefaultSessionConfig()

	a, err := SimulateSessions(context.Background(), rand.New(rand.NewSource(7)), g, cfg)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	b, err := SimulateSessions(context.Background(), rand.New(rand.NewSource(7)), g, cfg)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if a.MeanTurns != b.MeanTurns || a.DeathRate != b.DeathRate {
		t.Fatalf("expected identical reports for one seed: %+v vs %+v", a, b)
	}
	if len(a.Playthroughs) != cfg.Playthroughs {
		t.Fatalf("expected %d playthroughs, got %d", cfg.Playthroughs, len(a.Playthroughs))
	}
	for _, p := range a.Playthroughs {
		if p.Turns <= 0 || p.Turns > cfg.MaxTurns {
			t.Fatalf("playthrough turns out of range: %+v", p)
		}
		if !p.Completed || p.Turns >= cfg.MaxTurns {
			t.Fatalf("baseline playthrough should finish inside the turn cap: %+v", p)
		}
	}
}

func TestSimulateSessionsValidation(t *testing.T) {
	g := baselineGenome()
	cfg := DefaultSessionConfig()
	cfg.Playthroughs = 0
	if _, err := SimulateSessions(context.Background(), rand.New(rand.NewSource(1)), g, cfg); err == nil {
		t.Fatal("expected playthrough validation error")
	}
	if _, err := SimulateSessions(context.Background(), nil, g, DefaultSessionConfig()); err == nil {
		t.Fatal("expected rng validation error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SimulateSessions(ctx, rand.New(rand.NewSource(1)), g, DefaultSessionConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestStrongerEnemiesShortenSessions(t *testing.T) {
	g := baselineGenome()
	hard := g
	hard.Enemy.BaseDamage = 5
	hard.Enemy.DamageScaling = 1.0
	hard.Player.BaseHP = 15

	cfg := DefaultSessionConfig()
	easyReport, err := SimulateSessions(context.Background(), rand.New(rand.NewSource(3)), g, cfg)
	if err != nil {
		t.Fatalf("simulate easy: %v", err)
	}
	hardReport, err := SimulateSessions(context.Background(), rand.New(rand.NewSource(3)), hard, cfg)
	if err != nil {
		t.Fatalf("simulate hard: %v", err)
	}
	if hardReport.DeathRate < easyReport.DeathRate {
		t.Fatalf("expected harder config to kill at least as often: easy=%f hard=%f", easyReport.DeathRate, hardReport.DeathRate)
	}
}
