// Package config loads process configuration from the environment and run
// parameters from TOML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env is the process-level configuration.
type Env struct {
	Store         string `env:"EQUILIBRIUM_STORE" envDefault:"file"`
	DBPath        string `env:"EQUILIBRIUM_DB_PATH" envDefault:"equilibrium.db"`
	DataDir       string `env:"EQUILIBRIUM_DATA_DIR" envDefault:"data"`
	BackupDir     string `env:"EQUILIBRIUM_BACKUP_DIR" envDefault:"."`
	BenchmarksDir string `env:"EQUILIBRIUM_BENCHMARKS_DIR" envDefault:"benchmarks"`
	ExportsDir    string `env:"EQUILIBRIUM_EXPORTS_DIR" envDefault:"exports"`
	LogFormat     string `env:"EQUILIBRIUM_LOG_FORMAT" envDefault:"text"`
	LogLevel      string `env:"EQUILIBRIUM_LOG_LEVEL" envDefault:"info"`
	LogEvery      int    `env:"EQUILIBRIUM_LOG_EVERY" envDefault:"100"`
	StatusAddr    string `env:"EQUILIBRIUM_STATUS_ADDR" envDefault:":8080"`
	OTelEndpoint  string `env:"EQUILIBRIUM_OTEL_ENDPOINT"`
	ServiceName   string `env:"EQUILIBRIUM_SERVICE_NAME" envDefault:"equilibrium"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv reads dotenv files (missing files are ignored; existing variables
// win) and then parses Env.
func LoadEnv(dotenvFiles ...string) (Env, error) {
	for _, path := range dotenvFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, err
	}
	return cfg, cfg.Validate()
}

func (e Env) Validate() error {
	switch e.Store {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unsupported store: %s", e.Store)
	}
	switch e.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", e.LogFormat)
	}
	if _, err := parseLevel(e.LogLevel); err != nil {
		return err
	}
	if e.LogEvery < 0 {
		return errors.New("log every must be >= 0")
	}
	return nil
}

// StorePath is the path argument for storage.NewStore: the database file for
// sqlite, the data directory for the file store.
func (e Env) StorePath() string {
	if e.Store == "sqlite" {
		return e.DBPath
	}
	return e.DataDir
}

// Logger builds the process logger.
func (e Env) Logger() *slog.Logger {
	level, err := parseLevel(e.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if e.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("unsupported log level: %s", s)
	}
	return level, nil
}
