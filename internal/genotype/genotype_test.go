package genotype

import (
	"math"
	"math/rand"
	"testing"

	"equilibrium/internal/model"
)

func TestBaselineMatchesDeclaredDefaults(t *testing.T) {
	g := Baseline()
	if g.Player.BaseHP != 20 || g.Player.HPPerLevel != 3 || g.Player.BaseSTR != 3 || g.Player.BaseDEF != 1 {
		t.Fatalf("unexpected player baseline: %+v", g.Player)
	}
	if g.Enemy.BaseHP != 5 || g.Enemy.HPScaling != 1.5 || g.Enemy.BaseDamage != 2 || g.Enemy.DamageScaling != 0.4 {
		t.Fatalf("unexpected enemy baseline: %+v", g.Enemy)
	}
	if g.Economy.BaseGold != 10 || g.Economy.GoldScaling != 3.5 {
		t.Fatalf("unexpected economy baseline: %+v", g.Economy)
	}
	if g.Equipment.PowerGrowth != 1.0 || g.Equipment.CostFactor != 25 {
		t.Fatalf("unexpected equipment baseline: %+v", g.Equipment)
	}
	if Stale(g) {
		t.Fatal("expected baseline derived data to be fresh")
	}
	if !InRange(g) {
		t.Fatal("expected baseline inside every range")
	}
}

func TestParamTableCoversGenome(t *testing.T) {
	if got := len(Params()); got != 16 {
		t.Fatalf("expected 16 parameters, got %d", got)
	}
	seen := map[string]bool{}
	for _, name := range ParamNames() {
		if seen[name] {
			t.Fatalf("duplicate parameter %s", name)
		}
		seen[name] = true
		if _, ok := Lookup(name); !ok {
			t.Fatalf("lookup failed for %s", name)
		}
	}
}

func TestMutateClampsUnderExtremeIntensity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g := Baseline()
	for i := 0; i < 2000; i++ {
		g = Mutate(rng, g, Intensity{Rate: 1, Strength: 50})
		if !InRange(g) {
			t.Fatalf("mutation %d escaped ranges: %+v", i, g)
		}
		if Stale(g) {
			t.Fatalf("mutation %d left stale derived data", i)
		}
	}
}

func TestClampPinsEveryParameter(t *testing.T) {
	for _, p := range Params() {
		g := Baseline()
		p.Set(&g, p.Max+1000)
		Clamp(&g)
		if got := p.Get(g); got != p.Max {
			t.Fatalf("%s: expected clamp to max %f, got %f", p.Name, p.Max, got)
		}
		p.Set(&g, p.Min-1000)
		Clamp(&g)
		if got := p.Get(g); got != p.Min {
			t.Fatalf("%s: expected clamp to min %f, got %f", p.Name, p.Min, got)
		}
	}
}

func TestMutateIsReproducibleForSeed(t *testing.T) {
	a := Mutate(rand.New(rand.NewSource(42)), Baseline(), Intensity{Rate: 0.5, Strength: 1})
	b := Mutate(rand.New(rand.NewSource(42)), Baseline(), Intensity{Rate: 0.5, Strength: 1})
	if !Equal(a, b) {
		t.Fatalf("expected equal children for one seed: %+v vs %+v", a, b)
	}
	if a.ParentID != "baseline" || a.ID == "" || a.ID == b.ID {
		t.Fatalf("unexpected lineage ids: id=%q parent=%q other=%q", a.ID, a.ParentID, b.ID)
	}
}

func TestMutateDoesNotShareDerivedSlices(t *testing.T) {
	parent := Baseline()
	child := Mutate(rand.New(rand.NewSource(3)), parent, Intensity{Rate: 1, Strength: 1})
	child.Derived.Weapons[0].Cost = -1
	if parent.Derived.Weapons[0].Cost == -1 {
		t.Fatal("child derived data aliases parent")
	}
}

func TestIntensityValidate(t *testing.T) {
	if err := (Intensity{Rate: 0, Strength: 1}).Validate(); err == nil {
		t.Fatal("expected rate validation error")
	}
	if err := (Intensity{Rate: 1, Strength: 0}).Validate(); err == nil {
		t.Fatal("expected strength validation error")
	}
	if err := (Intensity{Rate: 0.3, Strength: 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDerivedTierGainNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 500; i++ {
		g := Random(rng)
		for _, tiers := range [][]model.EquipmentTier{g.Derived.Weapons, g.Derived.Armor} {
			if len(tiers) != 6 {
				t.Fatalf("expected 6 tiers, got %d", len(tiers))
			}
			for k := 1; k < len(tiers); k++ {
				if tiers[k].Bonus < tiers[k-1].Bonus {
					t.Fatalf("bonus decreased at tier %d: %+v", k, tiers)
				}
				if k > 1 && tiers[k].BonusGain+1e-9 < tiers[k-1].BonusGain {
					t.Fatalf("bonus gain decreased at tier %d (growth %f): %+v", k, g.Equipment.PowerGrowth, tiers)
				}
				if tiers[k].Cost <= tiers[k-1].Cost {
					t.Fatalf("cost not increasing at tier %d", k)
				}
			}
		}
	}
}

func TestDerivedEconomyRunningTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		g := Random(rng)
		snaps := g.Derived.Economy
		if len(snaps) != EconomyLevels {
			t.Fatalf("expected %d snapshots, got %d", EconomyLevels, len(snaps))
		}
		prevAfter := StartingGold
		for _, s := range snaps {
			if s.GoldEarned <= 0 {
				t.Fatalf("level %d earned nothing: %+v", s.Level, s)
			}
			if s.CumulativeGold != prevAfter+s.GoldEarned {
				t.Fatalf("level %d: cumulative %d != %d + %d", s.Level, s.CumulativeGold, prevAfter, s.GoldEarned)
			}
			if s.GoldAfterSpend < 0 || s.GoldAfterSpend > s.CumulativeGold {
				t.Fatalf("level %d: spend underflow %+v", s.Level, s)
			}
			prevAfter = s.GoldAfterSpend
		}
	}
}

func TestBaselineEconomyPurchasesRecommendedTier(t *testing.T) {
	snaps := Baseline().Derived.Economy
	first := snaps[0]
	// 91 from combat plus 2 for a sold starter drop.
	if first.GoldEarned != 93 || first.CumulativeGold != 143 || first.ItemsDropped != 1 || first.RecommendedTier != 0 || !first.ProgressHealthy {
		t.Fatalf("unexpected level 1 snapshot: %+v", first)
	}
	second := snaps[1]
	if second.RecommendedTier != 1 || second.PurchasedTier != 1 || second.GoldAfterSpend != 234 {
		t.Fatalf("unexpected level 2 snapshot: %+v", second)
	}
}

func TestEquipmentDropRateShapesEconomy(t *testing.T) {
	none := Baseline()
	none.Loot.EquipmentDropRate = 0
	Regenerate(&none)
	for _, s := range none.Derived.Economy {
		if s.ItemsDropped != 0 {
			t.Fatalf("level %d: expected no drops at rate 0, got %d", s.Level, s.ItemsDropped)
		}
	}

	rich := Baseline()
	rich.Loot.EquipmentDropRate = 40
	Regenerate(&rich)
	drops := 0
	for _, s := range rich.Derived.Economy {
		drops += s.ItemsDropped
	}
	// 7 fights at 40% over ten levels.
	if drops != 28 {
		t.Fatalf("expected 28 drops, got %d", drops)
	}

	last := len(none.Derived.Economy) - 1
	if rich.Derived.Economy[last].CumulativeGold <= none.Derived.Economy[last].CumulativeGold {
		t.Fatalf("expected drops to add gold: rate 40 %+v, rate 0 %+v", rich.Derived.Economy[last], none.Derived.Economy[last])
	}
	if Fingerprint(rich) == Fingerprint(none) {
		t.Fatal("expected drop rate to change the fingerprint")
	}
}

func TestBuildViabilityScores(t *testing.T) {
	g := Baseline()
	if len(g.Derived.Builds) != len(BuildArchetypes) {
		t.Fatalf("expected %d builds, got %d", len(BuildArchetypes), len(g.Derived.Builds))
	}
	for _, b := range g.Derived.Builds {
		if b.Score < 0 || b.Score > 100 {
			t.Fatalf("build %s score out of range: %f", b.Name, b.Score)
		}
		if b.Viable != (b.Score > ViableScore) {
			t.Fatalf("build %s viability flag mismatch", b.Name)
		}
	}
}

func TestStaleDetectsUnregeneratedEdit(t *testing.T) {
	g := Baseline()
	g.Player.BaseHP = 30
	if !Stale(g) {
		t.Fatal("expected stale after base edit")
	}
	EnsureFresh(&g)
	if Stale(g) {
		t.Fatal("expected fresh after EnsureFresh")
	}
}

func TestCrossoverInheritsEconomyAsUnit(t *testing.T) {
	a := Baseline()
	b := Baseline()
	b.Economy = model.EconomyParams{BaseGold: 20, GoldScaling: 6}
	b.Loot = model.LootParams{BaseTreasure: 50, TreasurePerDepth: 60, EquipmentDropRate: 40}
	Regenerate(&b)

	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		child := Crossover(rng, a, b)
		fromA := child.Economy == a.Economy
		fromB := child.Economy == b.Economy
		if !fromA && !fromB {
			t.Fatalf("economy split across parents: %+v", child.Economy)
		}
		if child.Loot != a.Loot && child.Loot != b.Loot {
			t.Fatalf("loot split across parents: %+v", child.Loot)
		}
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	a := Baseline()
	b := Random(rand.New(rand.NewSource(2)))
	if got := Interpolate(a, b, 0); !Equal(got, a) {
		t.Fatalf("alpha 0 should equal a: %+v", got)
	}
	if got := Interpolate(a, b, 1); !Equal(got, b) {
		t.Fatalf("alpha 1 should equal b: %+v", got)
	}
	mid := Interpolate(a, b, 0.5)
	p, _ := Lookup(ParamEnemyHPScaling)
	want := (p.Get(a) + p.Get(b)) / 2
	if math.Abs(p.Get(mid)-want) > 1e-9 {
		t.Fatalf("expected midpoint %f, got %f", want, p.Get(mid))
	}
}

func TestBoundsClampAndSample(t *testing.T) {
	bounds := Bounds{
		ParamBaseHP:  {Min: 15, Max: 18},
		ParamBaseSTR: {Min: 4, Max: 99},
	}
	rng := rand.New(rand.NewSource(8))
	for i := 0; i < 200; i++ {
		g := RandomWithin(rng, bounds)
		if g.Player.BaseHP < 15 || g.Player.BaseHP > 18 {
			t.Fatalf("base hp escaped bounds: %d", g.Player.BaseHP)
		}
		if g.Player.BaseSTR < 4 || g.Player.BaseSTR > 5 {
			t.Fatalf("base str escaped bounds: %d", g.Player.BaseSTR)
		}
	}

	g := Baseline()
	g.Player.BaseHP = 40
	bounds.Clamp(&g)
	if g.Player.BaseHP != 18 || Stale(g) {
		t.Fatalf("expected bounds clamp to 18 with fresh data, got %d", g.Player.BaseHP)
	}
}

func TestPerturbUnknownParam(t *testing.T) {
	g := Baseline()
	if out := Perturb(g, "nope", 5); !Equal(out, g) {
		t.Fatal("unknown parameter should leave genome unchanged")
	}
	out := Perturb(g, ParamBaseHP, 100)
	if out.Player.BaseHP != 40 {
		t.Fatalf("expected clamped perturb to 40, got %d", out.Player.BaseHP)
	}
}
