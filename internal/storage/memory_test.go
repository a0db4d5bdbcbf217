package storage

import (
	"context"
	"errors"
	"testing"

	"equilibrium/internal/model"
)

func TestMemoryStoreBestAndChampionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, ok, err := store.GetBest(ctx); err != nil || ok {
		t.Fatalf("expected empty best, ok=%v err=%v", ok, err)
	}
	input := sampleBest(72.5)
	if err := store.SaveBest(ctx, input); err != nil {
		t.Fatalf("save best: %v", err)
	}
	input.Genome.Player.BaseHP = 1
	best, ok, err := store.GetBest(ctx)
	if err != nil || !ok {
		t.Fatalf("get best: ok=%v err=%v", ok, err)
	}
	if best.Fitness != 72.5 || best.Genome.Player.BaseHP == 1 {
		t.Fatalf("unexpected or aliased best: %+v", best)
	}

	if err := store.SaveChampion(ctx, sampleChampion(120)); !errors.Is(err, ErrInvalidChampion) {
		t.Fatalf("expected invalid champion, got %v", err)
	}
	if err := store.SaveChampion(ctx, sampleChampion(88)); err != nil {
		t.Fatalf("save champion: %v", err)
	}
	champion, ok, err := store.GetChampion(ctx)
	if err != nil || !ok || champion.Fitness != 88 {
		t.Fatalf("unexpected champion: %+v ok=%v err=%v", champion, ok, err)
	}
}

func TestMemoryStoreArchive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, f := range []float64{60, 70} {
		if err := store.ArchiveChampion(ctx, sampleChampion(f)); err != nil {
			t.Fatalf("archive: %v", err)
		}
	}
	archived, err := store.ListArchivedChampions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(archived) != 2 || archived[0].Fitness != 60 || archived[1].Fitness != 70 {
		t.Fatalf("unexpected archive: %+v", archived)
	}
}

func TestMemoryStoreFitnessHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.FitnessSample{{Generation: 1, Fitness: 10}, {Generation: 5, Fitness: 20}, {Generation: 9, Fitness: 30}}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted fitness history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}
}

func TestMemoryStoreLeaderboardRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	input := []model.LeaderboardEntry{{VersionedRecord: Versioned(), Rank: 1, Label: "Tank", Fitness: 91}}
	if err := store.SaveLeaderboard(ctx, "run-1", input); err != nil {
		t.Fatalf("save leaderboard: %v", err)
	}
	output, ok, err := store.GetLeaderboard(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get leaderboard: ok=%v err=%v", ok, err)
	}
	if len(output) != 1 || output[0].Label != "Tank" {
		t.Fatalf("unexpected leaderboard: %+v", output)
	}
	if _, ok, _ := store.GetLeaderboard(ctx, "missing"); ok {
		t.Fatal("expected missing leaderboard")
	}
}

func TestMemoryStoreUsableWithoutInit(t *testing.T) {
	ctx := context.Background()
	var zero MemoryStore
	for _, store := range []*MemoryStore{NewMemoryStore(), &zero} {
		if err := store.SaveFitnessHistory(ctx, "run-1", []model.FitnessSample{{Generation: 1, Fitness: 5}}); err != nil {
			t.Fatalf("save history: %v", err)
		}
		if err := store.SaveLeaderboard(ctx, "run-1", []model.LeaderboardEntry{{VersionedRecord: Versioned(), Rank: 1, Fitness: 5}}); err != nil {
			t.Fatalf("save leaderboard: %v", err)
		}
		if _, ok, _ := store.GetFitnessHistory(ctx, "run-1"); !ok {
			t.Fatal("expected history saved without init")
		}
	}
}

func TestMemoryStoreInitKeepsRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SaveBest(ctx, model.BestRecord{VersionedRecord: Versioned(), RunID: "r", Fitness: 70}); err != nil {
		t.Fatalf("save best: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	best, ok, err := store.GetBest(ctx)
	if err != nil || !ok || best.Fitness != 70 {
		t.Fatalf("expected best kept across init: ok=%v err=%v best=%+v", ok, err, best)
	}
}
