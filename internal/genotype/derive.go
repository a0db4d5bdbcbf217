package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"equilibrium/internal/model"
	"equilibrium/internal/oracle"
)

const (
	EconomyLevels   = 10
	CombatsPerLevel = 7
	StartingGold    = 50
	BuildTestLevel  = 5
	BuildTrials     = 3
	ViableScore     = 60
)

var tierNames = []string{"Starter", "Common", "Uncommon", "Rare", "Epic", "Legendary"}

// BuildArchetypes are the fixed stat-allocation archetypes scored for
// viability: strength share and defense share of earned stat points.
var BuildArchetypes = []struct {
	Name     string
	Strength float64
	Defense  float64
}{
	{Name: "GlassCannon", Strength: 1.0, Defense: 0.0},
	{Name: "Balanced", Strength: 0.6, Defense: 0.4},
	{Name: "Tank", Strength: 0.2, Defense: 0.8},
}

// Regenerate recomputes every derived table of g from its base parameters.
func Regenerate(g *model.Genome) {
	g.Derived.Weapons = equipmentTiers(*g, "Weapon")
	g.Derived.Armor = equipmentTiers(*g, "Armor")
	g.Derived.Economy = economySnapshots(*g)
	g.Derived.Builds = buildViability(*g)
	g.Derived.Fingerprint = Fingerprint(*g)
}

// Stale reports whether g's derived tables were computed from different base
// parameters than it now carries.
func Stale(g model.Genome) bool {
	return g.Derived.Fingerprint == "" || g.Derived.Fingerprint != Fingerprint(g)
}

// EnsureFresh regenerates g when its derived data is stale.
func EnsureFresh(g *model.Genome) {
	if Stale(*g) {
		Regenerate(g)
	}
}

// Fingerprint hashes the base parameters.
func Fingerprint(g model.Genome) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p.Get(g), 'g', -1, 64))
		b.WriteByte(';')
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// TierCost is the recommended price of an equipment tier.
func TierCost(g model.Genome, tier int) int {
	return tier*tier*g.Equipment.CostFactor + 5
}

func equipmentTiers(g model.Genome, slot string) []model.EquipmentTier {
	tiers := make([]model.EquipmentTier, 0, oracle.MaxTier+1)
	prev := 0.0
	for t := 0; t <= oracle.MaxTier; t++ {
		bonus := 0.0
		if t > 0 {
			bonus = math.Pow(float64(t), g.Equipment.PowerGrowth)
		}
		increase := 0.0
		switch {
		case prev == 0 && bonus > 0:
			increase = 100
		case prev > 0:
			increase = (bonus - prev) / prev * 100
		}
		tiers = append(tiers, model.EquipmentTier{
			Tier:          t,
			Name:          fmt.Sprintf("%s %s", tierNames[t], slot),
			Bonus:         bonus,
			BonusGain:     bonus - prev,
			Cost:          TierCost(g, t),
			UnlockLevel:   t * 2,
			PowerIncrease: increase,
		})
		prev = bonus
	}
	return tiers
}

// economySnapshots walks the ten-level gold curve. Combat drops arrive at
// EquipmentDropRate percent per fight; a dropped piece is one tier behind the
// recommendation and is equipped when it beats owned gear, otherwise sold for
// half its price.
func economySnapshots(g model.Genome) []model.EconomySnapshot {
	snapshots := make([]model.EconomySnapshot, 0, EconomyLevels)
	gold := StartingGold
	owned := 0
	dropChance := 0
	for level := 1; level <= EconomyLevels; level++ {
		perCombat := g.Economy.BaseGold + int(float64(level)*g.Economy.GoldScaling)
		earned := CombatsPerLevel * perCombat
		if level%3 == 0 {
			earned += g.Loot.BaseTreasure + (level/3)*g.Loot.TreasurePerDepth
		}

		recommended := min(oracle.MaxTier, level/2)
		dropChance += CombatsPerLevel * max(0, g.Loot.EquipmentDropRate)
		dropped := dropChance / 100
		dropChance %= 100
		dropTier := max(0, recommended-1)
		for range dropped {
			if dropTier > owned {
				owned = dropTier
				continue
			}
			earned += TierCost(g, dropTier) / 2
		}
		gold += earned

		affordable := 0
		for t := 0; t <= oracle.MaxTier; t++ {
			if gold >= TierCost(g, t) {
				affordable = t
			}
		}

		snap := model.EconomySnapshot{
			Level:           level,
			GoldEarned:      earned,
			CumulativeGold:  gold,
			AffordableTier:  affordable,
			RecommendedTier: recommended,
			PurchasedTier:   owned,
			ItemsDropped:    dropped,
			ProgressHealthy: affordable >= recommended || recommended == 0,
		}
		if recommended > 0 && recommended > owned && affordable >= recommended {
			gold -= TierCost(g, recommended)
			owned = recommended
			snap.PurchasedTier = owned
		}
		snap.GoldAfterSpend = gold
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

func buildViability(g model.Genome) []model.BuildViability {
	hp := g.Player.BaseHP + BuildTestLevel*g.Player.HPPerLevel
	points := (BuildTestLevel - 1) * g.Player.StatPointsPerLevel
	bonus := oracle.TierBonus(g, oracle.GearTier(BuildTestLevel))
	enemyHP, enemyDamage := oracle.EnemyAt(g, BuildTestLevel)

	builds := make([]model.BuildViability, 0, len(BuildArchetypes))
	for _, arch := range BuildArchetypes {
		strPoints := int(float64(points) * arch.Strength)
		trial := oracle.Spread(oracle.Matchup{
			PlayerHP:      hp,
			PlayerAttack:  g.Player.BaseSTR + strPoints + bonus,
			PlayerDefense: g.Player.BaseDEF + (points - strPoints) + bonus,
			EnemyHP:       enemyHP,
			EnemyDamage:   enemyDamage,
		}, BuildTrials)
		score := float64(trial.Wins) / float64(BuildTrials) * 100
		builds = append(builds, model.BuildViability{
			Name:          arch.Name,
			StrengthRatio: arch.Strength,
			DefenseRatio:  arch.Defense,
			Score:         score,
			Viable:        score > ViableScore,
		})
	}
	return builds
}
