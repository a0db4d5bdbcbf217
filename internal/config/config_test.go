package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("EQUILIBRIUM_STORE", "")
	os.Unsetenv("EQUILIBRIUM_STORE")
	cfg, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if cfg.Store != "file" || cfg.DataDir != "data" || cfg.LogEvery != 100 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StorePath() != "data" {
		t.Fatalf("expected data dir store path, got %s", cfg.StorePath())
	}
	if cfg.BackupDir != "." {
		t.Fatalf("expected working directory backup dir, got %s", cfg.BackupDir)
	}
}

func TestLoadEnvFromDotenv(t *testing.T) {
	t.Setenv("EQUILIBRIUM_LOG_LEVEL", "debug")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "EQUILIBRIUM_STORE=sqlite\nEQUILIBRIUM_DB_PATH=/tmp/eq.db\nEQUILIBRIUM_LOG_LEVEL=error\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("EQUILIBRIUM_STORE")
		os.Unsetenv("EQUILIBRIUM_DB_PATH")
	})

	cfg, err := LoadEnv(path)
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if cfg.Store != "sqlite" || cfg.StorePath() != "/tmp/eq.db" {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected existing variable to win, got %s", cfg.LogLevel)
	}
	if cfg.Logger() == nil {
		t.Fatal("expected logger")
	}
}

func TestEnvValidate(t *testing.T) {
	base := Env{Store: "memory", LogFormat: "json", LogLevel: "warn"}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid env: %v", err)
	}
	cases := []Env{
		{Store: "redis", LogFormat: "text", LogLevel: "info"},
		{Store: "file", LogFormat: "xml", LogLevel: "info"},
		{Store: "file", LogFormat: "text", LogLevel: "loud"},
		{Store: "file", LogFormat: "text", LogLevel: "info", LogEvery: -1},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestLoadRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	content := `
strategy = "generational"
seed = 7
max_generations = 500

[lifecycle]
high_fitness = 80.0
checkpoint_every = 25

[generational]
pool_size = 12
selection = "elite"

[[metrics]]
name = "Build Diversity"
enabled = true
weight = 0.05
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write run file: %v", err)
	}
	run, err := LoadRun(path)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.Strategy != "generational" || run.Seed != 7 || run.MaxGenerations != 500 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Lifecycle.HighFitness != 80 || run.Lifecycle.CheckpointEvery != 25 {
		t.Fatalf("unexpected lifecycle: %+v", run.Lifecycle)
	}
	if run.Generational.PoolSize != 12 || run.Generational.Selection != "elite" {
		t.Fatalf("unexpected generational: %+v", run.Generational)
	}
	if len(run.Metrics) != 1 || run.Metrics[0].Enabled == nil || !*run.Metrics[0].Enabled || *run.Metrics[0].Weight != 0.05 {
		t.Fatalf("unexpected metrics: %+v", run.Metrics)
	}
}

func TestLoadRunRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte("strategy = \"hillclimb\"\npopulation = 5\n"), 0o644); err != nil {
		t.Fatalf("write run file: %v", err)
	}
	if _, err := LoadRun(path); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestWriteRunRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	run := DefaultRun()
	run.MaxGenerations = 42
	run.Tuning.Playthroughs = 8
	if err := WriteRun(path, run); err != nil {
		t.Fatalf("write run: %v", err)
	}
	got, err := LoadRun(path)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if got.MaxGenerations != 42 || got.Tuning.Playthroughs != 8 || got.Strategy != "evolutionary" {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestRunValidate(t *testing.T) {
	if err := (Run{}).Validate(); err == nil {
		t.Fatal("expected strategy error")
	}
	negative := -1.0
	run := Run{Strategy: "hillclimb", Metrics: []Metric{{Name: "Combat Balance", Weight: &negative}}}
	if err := run.Validate(); err == nil {
		t.Fatal("expected weight error")
	}
}
