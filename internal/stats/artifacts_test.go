package stats

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"equilibrium/internal/fitness"
	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	g := genotype.Baseline()
	result := fitness.NewEvaluator(nil).Evaluate(g, 1)
	champion := model.Champion{RunID: runID, Fitness: result.Total, Genome: g}
	return RunArtifacts{
		Config:      RunConfig{RunID: runID, Strategy: "evolutionary", Seed: 7, MaxGenerations: 50},
		StopReason:  "max_generations",
		Generations: 50,
		History: []model.FitnessSample{
			{Generation: 1, Fitness: 40},
			{Generation: 5, Fitness: 52.5},
			{Generation: 21, Fitness: 60},
		},
		Leaderboard: []model.LeaderboardEntry{{Rank: 1, Fitness: result.Total, Genome: g}},
		Best:        model.BestRecord{RunID: runID, Fitness: result.Total, Result: result, Genome: g},
		Champion:    &champion,
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	base := t.TempDir()
	runDir, err := WriteRunArtifacts(base, sampleArtifacts("run-a"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, name := range []string{configFile, historyFile, seriesFile, leaderboardFile, bestFile, championFile, summaryFile, reportTextFile, reportCSVFile} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}

	cfg, ok, err := ReadRunConfig(base, "run-a")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Strategy != "evolutionary" || cfg.Seed != 7 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	series, ok, err := ReadFitnessSeries(base, "run-a")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[1] != (model.FitnessSample{Generation: 5, Fitness: 52.5}) {
		t.Fatalf("unexpected series: %+v", series)
	}

	board, ok, err := ReadLeaderboard(base, "run-a")
	if err != nil || !ok || len(board) != 1 {
		t.Fatalf("read leaderboard: ok=%t err=%v board=%v", ok, err, board)
	}

	out := t.TempDir()
	exported, err := ExportRunArtifacts(base, "run-a", out)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported, championFile)); err != nil {
		t.Fatalf("expected exported champion: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported, reportTextFile)); err != nil {
		t.Fatalf("expected exported report: %v", err)
	}
}

func TestExportWithoutChampion(t *testing.T) {
	base := t.TempDir()
	artifacts := sampleArtifacts("no-champ")
	artifacts.Champion = nil
	if _, err := WriteRunArtifacts(base, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	dst, err := ExportRunArtifacts(base, "no-champ", t.TempDir())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, championFile)); !os.IsNotExist(err) {
		t.Fatalf("expected no champion file, got err=%v", err)
	}
	if _, err := ExportRunArtifacts(base, "missing", t.TempDir()); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestRunIndexNewestFirstAndReplace(t *testing.T) {
	base := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", FinalBestFitness: 50, CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", FinalBestFitness: 60, CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "a", FinalBestFitness: 70, CreatedAtUTC: "2026-01-03T00:00:00Z"},
	}
	for _, e := range entries {
		if err := AppendRunIndex(base, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	index, err := ListRunIndex(base)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(index))
	}
	if index[0].RunID != "a" || index[0].FinalBestFitness != 70 {
		t.Fatalf("expected replaced run a first, got %+v", index[0])
	}
	if err := AppendRunIndex(base, RunIndexEntry{}); err == nil {
		t.Fatal("expected run id error")
	}

	empty, err := ListRunIndex(t.TempDir())
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty index, got %v err=%v", empty, err)
	}
}

func TestBuildRunSummary(t *testing.T) {
	history := []model.FitnessSample{
		{Generation: 0, Fitness: 40},
		{Generation: 500, Fitness: 60},
		{Generation: 1000, Fitness: 80},
	}
	summary := BuildRunSummary("r", "hillclimb", history, 75)
	if summary.InitialBest != 40 || summary.FinalBest != 80 {
		t.Fatalf("unexpected bests: %+v", summary)
	}
	if summary.BestMean != 60 || summary.BestMedian != 60 {
		t.Fatalf("unexpected mean/median: %+v", summary)
	}
	if math.Abs(summary.TrendPer1000-40) > 1e-9 {
		t.Fatalf("expected trend 40, got %f", summary.TrendPer1000)
	}
	if !summary.GoalReached || summary.ReachedGeneration != 1000 {
		t.Fatalf("expected goal reached at 1000, got %+v", summary)
	}
	if summary.Quality != "excellent" {
		t.Fatalf("expected excellent, got %s", summary.Quality)
	}

	empty := BuildRunSummary("r", "hillclimb", nil, 0)
	if empty.Samples != 0 || empty.Quality != "broken" {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestProgressionReportText(t *testing.T) {
	g := genotype.Baseline()
	result := fitness.NewEvaluator(nil).Evaluate(g, 1)
	report := BuildProgressionReport(g, result)
	report.History = []model.FitnessSample{{Generation: 1, Fitness: 10}, {Generation: 2, Fitness: 20}}

	var buf bytes.Buffer
	if err := report.WriteText(&buf); err != nil {
		t.Fatalf("write text: %v", err)
	}
	text := buf.String()
	for _, want := range []string{"## Economy", "## Weapons", "## Armor", "## Builds", "## Fitness breakdown", "Viable builds:", "quality=" + fitness.Quality(result.Total), genotype.ParamBaseHP} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q", want)
		}
	}
	if !strings.Contains(text, "▁█") {
		t.Fatalf("expected sparkline in report")
	}
}

func TestProgressionReportCSV(t *testing.T) {
	g := genotype.Baseline()
	report := BuildProgressionReport(g, fitness.NewEvaluator(nil).Evaluate(g, 1))

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	counts := map[string]int{}
	for _, row := range rows[1:] {
		counts[row[0]]++
	}
	if counts["parameter"] != len(genotype.Params()) {
		t.Fatalf("expected %d parameter rows, got %d", len(genotype.Params()), counts["parameter"])
	}
	if counts["economy"] != len(report.Genome.Derived.Economy) || counts["weapon"] != len(report.Genome.Derived.Weapons) {
		t.Fatalf("unexpected table rows: %v", counts)
	}
	if counts["metric"] == 0 {
		t.Fatal("expected metric rows")
	}
}

func TestSparkline(t *testing.T) {
	if Sparkline(nil) != "" {
		t.Fatal("expected empty sparkline")
	}
	flat := Sparkline([]model.FitnessSample{{Fitness: 5}, {Fitness: 5}})
	if flat != "██" {
		t.Fatalf("expected flat bars, got %q", flat)
	}
	history := make([]model.FitnessSample, 30)
	for i := range history {
		history[i] = model.FitnessSample{Generation: i, Fitness: float64(i)}
	}
	line := []rune(Sparkline(history))
	if len(line) != sparklineSamples || line[0] != '▁' || line[len(line)-1] != '█' {
		t.Fatalf("unexpected sparkline %q", string(line))
	}
}
