package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"equilibrium/internal/config"
	"equilibrium/internal/fitness"
	"equilibrium/internal/genotype"
	"equilibrium/internal/platform"
	"equilibrium/internal/statusapi"
	"equilibrium/internal/telemetry"
	eqapi "equilibrium/pkg/equilibrium"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	env, err := config.LoadEnv(".env")
	if err != nil {
		return err
	}
	logger := env.Logger()
	slog.SetDefault(logger)

	shutdown, err := telemetry.Setup(ctx, env.ServiceName, env.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
	}
	defer func() {
		_ = shutdown(context.WithoutCancel(ctx))
	}()

	cmd := command{env: env, logger: logger, out: out}
	switch args[0] {
	case "init":
		return cmd.init(ctx, args[1:])
	case "run":
		return cmd.run(ctx, args[1:])
	case "serve":
		return cmd.serve(ctx, args[1:])
	case "evaluate":
		return cmd.evaluate(ctx, args[1:])
	case "report":
		return cmd.report(ctx, args[1:])
	case "runs":
		return cmd.runs(ctx, args[1:])
	case "export":
		return cmd.export(ctx, args[1:])
	case "champion":
		return cmd.champion(ctx, args[1:])
	case "best":
		return cmd.best(ctx, args[1:])
	case "strategies":
		return cmd.strategies()
	case "params":
		return cmd.params()
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type command struct {
	env    config.Env
	logger *slog.Logger
	out    io.Writer
}

// storeFlags binds the backend flags shared by every command that touches
// persisted state. Defaults come from the environment.
type storeFlags struct {
	kind *string
	path *string
}

func (c command) bindStore(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind: fs.String("store", c.env.Store, "store backend: memory|file|sqlite"),
		path: fs.String("store-path", c.env.StorePath(), "sqlite database file or file-store data directory"),
	}
}

func (c command) client(sf storeFlags) (*eqapi.Client, error) {
	return eqapi.New(eqapi.Options{
		StoreKind:     *sf.kind,
		StorePath:     *sf.path,
		BackupDir:     c.env.BackupDir,
		BenchmarksDir: c.env.BenchmarksDir,
		ExportsDir:    c.env.ExportsDir,
		Logger:        c.logger,
		LogEvery:      c.env.LogEvery,
	})
}

func (c command) init(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := c.bindStore(fs)
	writeConfig := fs.String("write-config", "", "also write a default run config TOML to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.client(sf)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Init(ctx); err != nil {
		return err
	}
	if *writeConfig != "" {
		if err := config.WriteRun(*writeConfig, config.DefaultRun()); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "wrote config=%s\n", *writeConfig)
	}
	fmt.Fprintf(c.out, "initialized store=%s path=%s\n", *sf.kind, *sf.path)
	return nil
}

func (c command) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := c.bindStore(fs)
	rf := bindRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := rf.request(fs)
	if err != nil {
		return err
	}

	client, err := c.client(sf)
	if err != nil {
		return err
	}
	defer client.Close()

	if req.RunID == "" {
		req.RunID = eqapi.RunID(req.Strategy, req.Seed, time.Now())
	}
	stopResets := c.forwardResets(ctx, client, req.RunID)
	defer stopResets()

	summary, err := client.Run(ctx, req)
	if summary.RunID != "" {
		c.printRunSummary(summary)
	}
	return err
}

func (c command) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	sf := c.bindStore(fs)
	rf := bindRunFlags(fs)
	addr := fs.String("addr", c.env.StatusAddr, "status api listen address")
	maxRestarts := fs.Int("max-restarts", 5, "restarts allowed after a failed run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := rf.request(fs)
	if err != nil {
		return err
	}

	client, err := c.client(sf)
	if err != nil {
		return err
	}
	defer client.Close()
	polis, err := client.Polis(ctx)
	if err != nil {
		return err
	}

	if req.RunID == "" {
		req.RunID = eqapi.RunID(req.Strategy, req.Seed, time.Now())
	}
	stopResets := c.forwardResets(ctx, client, req.RunID)
	defer stopResets()

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	serveErr := make(chan error, 1)
	summary, err := client.Supervise(ctx, req, platform.SupervisorPolicy{MaxRestarts: *maxRestarts}, func(s *platform.Supervisor) {
		server := statusapi.New(polis, client.Store(), s, c.logger)
		go func() {
			serveErr <- server.ListenAndServe(serveCtx, *addr)
		}()
	})
	cancelServe()
	if summary.RunID != "" {
		c.printRunSummary(summary)
	}
	select {
	case srvErr := <-serveErr:
		if srvErr != nil {
			err = errors.Join(err, srvErr)
		}
	case <-time.After(10 * time.Second):
	}
	return err
}

// forwardResets turns SIGHUP into a manual force-reset of the run. The
// returned function stops forwarding.
func (c command) forwardResets(ctx context.Context, client *eqapi.Client, runID string) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-signals:
				if err := client.ResetRun(ctx, runID); err != nil {
					c.logger.Warn("force reset failed", "run_id", runID, "err", err)
					continue
				}
				c.logger.Info("force reset requested", "run_id", runID)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
	}
}

func (c command) printRunSummary(s eqapi.RunSummary) {
	fmt.Fprintf(c.out, "run_id=%s strategy=%s stop=%s generations=%s resets=%d best=%.2f champion=%.2f quality=%s duration=%s artifacts=%s\n",
		s.RunID,
		s.Strategy,
		s.StopReason,
		humanize.Comma(int64(s.Generations)),
		s.Resets,
		s.FinalBestFitness,
		s.ChampionFitness,
		fitness.Quality(s.FinalBestFitness),
		s.Duration.Round(time.Millisecond),
		s.ArtifactsDir,
	)
}

func (c command) evaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	sf := c.bindStore(fs)
	source := fs.String("source", string(eqapi.SourceBaseline), "configuration: baseline|best|champion")
	difficulty := fs.Float64("difficulty", 0, "difficulty multiplier (0 derives it from the stored champion)")
	enable := fs.String("enable-metrics", "", "comma-separated optional metrics to enable")
	jsonOut := fs.Bool("json", false, "emit the fitness result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.client(sf)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Evaluate(ctx, eqapi.EvaluateRequest{
		Source:     eqapi.Source(*source),
		Difficulty: *difficulty,
		Metrics:    enabledMetrics(*enable),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary.Result)
	}
	fmt.Fprintf(c.out, "source=%s fitness=%.2f quality=%s\n", summary.Source, summary.Result.Total, summary.Quality)
	_, err = io.WriteString(c.out, summary.Breakdown)
	return err
}

func (c command) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	sf := c.bindStore(fs)
	source := fs.String("source", string(eqapi.SourceBest), "configuration: baseline|best|champion")
	outDir := fs.String("out", c.env.ExportsDir, "report output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.client(sf)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Report(ctx, eqapi.ReportRequest{Source: eqapi.Source(*source), OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "report source=%s fitness=%.2f quality=%s to=%s\n", summary.Source, summary.Fitness, summary.Quality, summary.Directory)
	return nil
}

func (c command) runs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := eqapi.New(eqapi.Options{StoreKind: "memory", BenchmarksDir: c.env.BenchmarksDir, Logger: c.logger})
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := client.Runs(ctx, eqapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no runs found")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "run_id=%s created_at=%s strategy=%s seed=%d generations=%s resets=%d stop=%s final_best_fitness=%.2f champion_fitness=%.2f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Strategy,
			e.Seed,
			humanize.Comma(int64(e.Generations)),
			e.Resets,
			e.StopReason,
			e.FinalBestFitness,
			e.ChampionFitness,
		)
	}
	return nil
}

func (c command) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", c.env.ExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := eqapi.New(eqapi.Options{StoreKind: "memory", BenchmarksDir: c.env.BenchmarksDir, ExportsDir: c.env.ExportsDir, Logger: c.logger})
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Export(ctx, eqapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "exported run_id=%s to=%s\n", summary.RunID, summary.Directory)
	return nil
}

func (c command) champion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	sf := c.bindStore(fs)
	archived := fs.Bool("archived", false, "list archived champions instead of the current one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.client(sf)
	if err != nil {
		return err
	}
	defer client.Close()

	if *archived {
		champions, err := client.ArchivedChampions(ctx)
		if err != nil {
			return err
		}
		if len(champions) == 0 {
			fmt.Fprintln(c.out, "no archived champions")
			return nil
		}
		for _, ch := range champions {
			fmt.Fprintf(c.out, "run_id=%s fitness=%.2f generation=%d resets=%d promoted_at=%s\n",
				ch.RunID, ch.Fitness, ch.Generation, ch.Resets, ch.PromotedAtUTC)
		}
		return nil
	}

	ch, ok, err := client.Champion(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(c.out, "no champion stored")
		return nil
	}
	fmt.Fprintf(c.out, "run_id=%s fitness=%.2f quality=%s generation=%d resets=%d promoted_at=%s\n",
		ch.RunID, ch.Fitness, fitness.Quality(ch.Fitness), ch.Generation, ch.Resets, ch.PromotedAtUTC)
	return nil
}

func (c command) best(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	sf := c.bindStore(fs)
	jsonOut := fs.Bool("json", false, "emit the best record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.client(sf)
	if err != nil {
		return err
	}
	defer client.Close()

	best, ok, err := client.Best(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(c.out, "no best configuration stored")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(best)
	}
	fmt.Fprintf(c.out, "run_id=%s strategy=%s generation=%s fitness=%.2f quality=%s saved_at=%s\n",
		best.RunID, best.Strategy, humanize.Comma(int64(best.Generation)), best.Fitness, fitness.Quality(best.Fitness), best.SavedAtUTC)
	for _, p := range genotype.Params() {
		fmt.Fprintf(c.out, "  %s=%g\n", p.Name, p.Get(best.Genome))
	}
	return nil
}

func (c command) strategies() error {
	for _, name := range platform.Strategies() {
		fmt.Fprintln(c.out, name)
	}
	return nil
}

func (c command) params() error {
	for _, p := range genotype.Params() {
		kind := "float"
		if p.Integer {
			kind = "int"
		}
		fmt.Fprintf(c.out, "%s kind=%s min=%g max=%g baseline=%g\n", p.Name, kind, p.Min, p.Max, p.Baseline)
	}
	return nil
}

func enabledMetrics(csv string) []config.Metric {
	var out []config.Metric
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		enabled := true
		out = append(out, config.Metric{Name: name, Enabled: &enabled})
	}
	return out
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: equilibriumctl <init|run|serve|evaluate|report|runs|export|champion|best|strategies|params> [flags]", msg)
}
