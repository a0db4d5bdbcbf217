package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"equilibrium/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	historyFile     = "fitness_history.json"
	seriesFile      = "fitness_series.csv"
	leaderboardFile = "leaderboard.json"
	bestFile        = "best.json"
	championFile    = "champion.json"
	summaryFile     = "summary.json"
	reportTextFile  = "progression_report.md"
	reportCSVFile   = "progression_report.csv"
)

// RunConfig records the parameters a run was started with.
type RunConfig struct {
	RunID               string  `json:"run_id"`
	Strategy            string  `json:"strategy"`
	Seed                int64   `json:"seed"`
	Workers             int     `json:"workers"`
	MaxGenerations      int     `json:"max_generations"`
	Resume              bool    `json:"resume"`
	TargetTurns         float64 `json:"target_turns,omitempty"`
	Playthroughs        int     `json:"playthroughs,omitempty"`
	PlaythroughPolicy   string  `json:"playthrough_policy,omitempty"`
	PlaythroughParam    float64 `json:"playthrough_param,omitempty"`
	RegressionTolerance float64 `json:"regression_tolerance,omitempty"`
	LearningRate        float64 `json:"learning_rate,omitempty"`
	MomentumFactor      float64 `json:"momentum_factor,omitempty"`
	Children            int     `json:"children,omitempty"`
	MutationRate        float64 `json:"mutation_rate,omitempty"`
	TrialsPerRound      int     `json:"trials_per_round,omitempty"`
	PoolSize            int     `json:"pool_size,omitempty"`
	Selection           string  `json:"selection,omitempty"`
	RestartAfter        int     `json:"restart_after,omitempty"`
	HighFitness         float64 `json:"high_fitness,omitempty"`
	HighStagnation      int     `json:"high_stagnation,omitempty"`
	PlateauStagnation   int     `json:"plateau_stagnation,omitempty"`
	CheckpointEvery     int     `json:"checkpoint_every,omitempty"`
}

// RunArtifacts is everything written for a finished run.
type RunArtifacts struct {
	Config      RunConfig                `json:"config"`
	StopReason  string                   `json:"stop_reason"`
	Generations int                      `json:"generations"`
	Resets      int                      `json:"resets"`
	History     []model.FitnessSample    `json:"history"`
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	Best        model.BestRecord         `json:"best"`
	Champion    *model.Champion          `json:"champion,omitempty"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Strategy         string  `json:"strategy"`
	Seed             int64   `json:"seed"`
	Generations      int     `json:"generations"`
	Resets           int     `json:"resets"`
	StopReason       string  `json:"stop_reason"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	ChampionFitness  float64 `json:"champion_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes the run directory under baseDir: configuration,
// improvement history (JSON and CSV), leaderboard, best and champion records,
// summary and the progression report of the best configuration.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	history := artifacts.History
	if history == nil {
		history = []model.FitnessSample{}
	}
	if err := writeJSON(filepath.Join(runDir, historyFile), map[string]any{
		"history":            history,
		"final_best_fitness": artifacts.Best.Fitness,
		"generations":        artifacts.Generations,
		"resets":             artifacts.Resets,
		"stop_reason":        artifacts.StopReason,
	}); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, history); err != nil {
		return "", err
	}
	board := artifacts.Leaderboard
	if board == nil {
		board = []model.LeaderboardEntry{}
	}
	if err := writeJSON(filepath.Join(runDir, leaderboardFile), board); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, bestFile), artifacts.Best); err != nil {
		return "", err
	}
	if artifacts.Champion != nil {
		if err := writeJSON(filepath.Join(runDir, championFile), artifacts.Champion); err != nil {
			return "", err
		}
	}

	summary := BuildRunSummary(artifacts.Config.RunID, artifacts.Config.Strategy, history, 0)
	if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	report := BuildProgressionReport(artifacts.Best.Genome, artifacts.Best.Result)
	report.History = history
	if err := WriteProgressionReportFiles(runDir, report); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory to outDir. Optional files
// (champion record) are copied when present.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{configFile, historyFile, seriesFile, leaderboardFile, bestFile, summaryFile, reportTextFile, reportCSVFile}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	championPath := filepath.Join(src, championFile)
	if _, err := os.Stat(championPath); err == nil {
		if err := copyFile(championPath, filepath.Join(dst, championFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadLeaderboard(baseDir, runID string) ([]model.LeaderboardEntry, bool, error) {
	var board []model.LeaderboardEntry
	ok, err := readJSON(filepath.Join(baseDir, runID, leaderboardFile), &board)
	return board, ok, err
}

func ReadBest(baseDir, runID string) (model.BestRecord, bool, error) {
	var best model.BestRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, bestFile), &best)
	return best, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

// WriteFitnessSeries writes the improvement curve as generation,best_fitness
// rows.
func WriteFitnessSeries(runDir string, history []model.FitnessSample) error {
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for _, sample := range history {
		if err := writer.Write([]string{
			strconv.Itoa(sample.Generation),
			strconv.FormatFloat(sample.Fitness, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]model.FitnessSample, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.FitnessSample{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]model.FitnessSample, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		generation, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, model.FitnessSample{Generation: generation, Fitness: value})
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
