package main

import (
	"flag"
	"fmt"

	"equilibrium/internal/config"
	eqapi "equilibrium/pkg/equilibrium"
)

// runFlags are the run-shaping flags shared by run and serve. Flags that are
// explicitly set override the loaded config file.
type runFlags struct {
	configPath *string
	runID      *string
	strategy   *string
	seed       *int64
	gens       *int
	workers    *int
	resume     *bool
	enable     *string

	children     *int
	mutationRate *float64
	poolSize     *int
	selection    *string
	checkpoint   *int
}

func bindRunFlags(fs *flag.FlagSet) runFlags {
	def := config.DefaultRun()
	return runFlags{
		configPath:   fs.String("config", "", "path to a run config TOML file"),
		runID:        fs.String("run-id", "", "run id (generated when empty)"),
		strategy:     fs.String("strategy", def.Strategy, "search strategy name"),
		seed:         fs.Int64("seed", def.Seed, "rng seed"),
		gens:         fs.Int("gens", def.MaxGenerations, "generation cap (0 runs until stopped)"),
		workers:      fs.Int("workers", def.Workers, "parallel candidate evaluations"),
		resume:       fs.Bool("resume", def.Resume, "seed the run from the stored best configuration"),
		enable:       fs.String("enable-metrics", "", "comma-separated optional metrics to enable"),
		children:     fs.Int("children", 0, "evolutionary: children per generation"),
		mutationRate: fs.Float64("mutation-rate", 0, "evolutionary: base mutation rate"),
		poolSize:     fs.Int("pool-size", 0, "generational: population size"),
		selection:    fs.String("selection", "", "generational: elite|tournament"),
		checkpoint:   fs.Int("checkpoint-every", 0, "generations between best-record checkpoints"),
	}
}

// request builds the run request from --config (or the default run) and the
// flags the caller set explicitly.
func (f runFlags) request(fs *flag.FlagSet) (eqapi.RunRequest, error) {
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})

	run := config.DefaultRun()
	if *f.configPath != "" {
		loaded, err := config.LoadRun(*f.configPath)
		if err != nil {
			return eqapi.RunRequest{}, err
		}
		run = loaded
	}

	if set["run-id"] {
		run.RunID = *f.runID
	}
	if set["strategy"] {
		run.Strategy = *f.strategy
	}
	if set["seed"] {
		run.Seed = *f.seed
	}
	if set["gens"] {
		run.MaxGenerations = *f.gens
	}
	if set["workers"] {
		run.Workers = *f.workers
	}
	if set["resume"] {
		run.Resume = *f.resume
	}
	if set["enable-metrics"] {
		run.Metrics = append(run.Metrics, enabledMetrics(*f.enable)...)
	}
	if set["children"] {
		run.Evolutionary.Children = *f.children
	}
	if set["mutation-rate"] {
		run.Evolutionary.MutationRate = *f.mutationRate
	}
	if set["pool-size"] {
		run.Generational.PoolSize = *f.poolSize
	}
	if set["selection"] {
		run.Generational.Selection = *f.selection
	}
	if set["checkpoint-every"] {
		run.Lifecycle.CheckpointEvery = *f.checkpoint
	}

	if err := run.Validate(); err != nil {
		return eqapi.RunRequest{}, fmt.Errorf("invalid run: %w", err)
	}
	return eqapi.RunRequest{Run: run}, nil
}
