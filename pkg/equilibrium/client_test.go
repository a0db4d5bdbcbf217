package equilibrium

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"equilibrium/internal/config"
)

func newTestClient(t *testing.T, kind string) *Client {
	t.Helper()
	base := t.TempDir()
	storePath := ""
	if kind == "file" {
		storePath = filepath.Join(base, "data")
	}
	client, err := New(Options{
		StoreKind:     kind,
		StorePath:     storePath,
		BackupDir:     filepath.Join(base, "backup"),
		BenchmarksDir: filepath.Join(base, "benchmarks"),
		ExportsDir:    filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientRunWritesArtifactsAndIndex(t *testing.T) {
	client := newTestClient(t, "memory")
	ctx := context.Background()

	run := config.DefaultRun()
	run.RunID = "client-run"
	run.MaxGenerations = 4
	run.Seed = 9
	summary, err := client.Run(ctx, RunRequest{Run: run})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "client-run" || summary.Generations != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.StopReason != "max_generations" {
		t.Fatalf("unexpected stop reason: %s", summary.StopReason)
	}
	if summary.FinalBestFitness <= 0 {
		t.Fatalf("expected a positive best fitness, got %f", summary.FinalBestFitness)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "best.json")); err != nil {
		t.Fatalf("expected best artifact: %v", err)
	}

	entries, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "client-run" {
		t.Fatalf("unexpected run index: %+v", entries)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != "client-run" {
		t.Fatalf("unexpected export: %+v", exported)
	}

	best, ok, err := client.Best(ctx)
	if err != nil || !ok {
		t.Fatalf("best: ok=%t err=%v", ok, err)
	}
	if best.RunID != "client-run" || best.Fitness != summary.FinalBestFitness {
		t.Fatalf("best record does not match run: %+v", best)
	}

	history, ok, err := client.FitnessHistory(ctx, "client-run")
	if err != nil || !ok || len(history) == 0 {
		t.Fatalf("fitness history: ok=%t len=%d err=%v", ok, len(history), err)
	}
}

func TestClientRunValidatesRequest(t *testing.T) {
	client := newTestClient(t, "memory")

	run := config.DefaultRun()
	run.MaxGenerations = -1
	if _, err := client.Run(context.Background(), RunRequest{Run: run}); err == nil {
		t.Fatal("expected validation error")
	}

	run = config.DefaultRun()
	enabled := true
	run.Metrics = []config.Metric{{Name: "no_such_metric", Enabled: &enabled}}
	if _, err := client.Run(context.Background(), RunRequest{Run: run}); err == nil {
		t.Fatal("expected unknown metric error")
	}
}

func TestClientEvaluateSources(t *testing.T) {
	client := newTestClient(t, "memory")
	ctx := context.Background()

	summary, err := client.Evaluate(ctx, EvaluateRequest{})
	if err != nil {
		t.Fatalf("evaluate baseline: %v", err)
	}
	if summary.Source != SourceBaseline {
		t.Fatalf("expected baseline default, got %s", summary.Source)
	}
	if summary.Result.Total < 0 || summary.Result.Total > 100 {
		t.Fatalf("fitness out of range: %f", summary.Result.Total)
	}
	if summary.Quality == "" || summary.Breakdown == "" {
		t.Fatalf("expected quality and breakdown: %+v", summary)
	}

	for _, source := range []Source{SourceBest, SourceChampion, "nope"} {
		if _, err := client.Evaluate(ctx, EvaluateRequest{Source: source}); err == nil {
			t.Fatalf("expected error for source %s", source)
		}
	}
}

func TestClientReportWritesFiles(t *testing.T) {
	client := newTestClient(t, "file")
	ctx := context.Background()

	outDir := t.TempDir()
	summary, err := client.Report(ctx, ReportRequest{Source: SourceBaseline, OutDir: outDir})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.HasPrefix(summary.Directory, filepath.Clean(outDir)) {
		t.Fatalf("report written outside out dir: %s", summary.Directory)
	}
	entries, err := os.ReadDir(summary.Directory)
	if err != nil {
		t.Fatalf("read report dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected report files")
	}
}

func TestClientExportRequiresSelection(t *testing.T) {
	client := newTestClient(t, "memory")
	ctx := context.Background()

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected error without run id or latest")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "a", Latest: true}); err == nil {
		t.Fatal("expected error with both run id and latest")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected error with empty run index")
	}
}

func TestClientControlUnknownRun(t *testing.T) {
	client := newTestClient(t, "memory")
	ctx := context.Background()

	if err := client.StopRun(ctx, "missing"); err == nil {
		t.Fatal("expected stop error for unknown run")
	}
	if err := client.ResetRun(ctx, "missing"); err == nil {
		t.Fatal("expected reset error for unknown run")
	}
}

func TestRunIDFormat(t *testing.T) {
	at := time.Unix(1700000000, 0)
	if got := RunID("focused", 3, at); got != "focused-3-1700000000" {
		t.Fatalf("unexpected run id: %s", got)
	}
}
