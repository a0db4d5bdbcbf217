package platform

import (
	"log/slog"

	"equilibrium/internal/search"
)

// LogObserver logs progress events. Generation events are sampled every
// Every generations; lifecycle events are always logged.
type LogObserver struct {
	Logger *slog.Logger
	Every  int
}

func (o LogObserver) Observe(e search.Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"run_id", e.RunID,
		"strategy", e.Strategy,
		"generation", e.Generation,
		"best", e.BestFitness,
		"champion", e.ChampionFitness,
		"stagnation", e.Stagnation,
		"phase", string(e.Phase),
	}

	switch e.Kind {
	case search.EventGeneration:
		every := o.Every
		if every <= 0 {
			every = 100
		}
		if e.Generation%every != 0 {
			return
		}
		logger.Info("generation", append(attrs, "strength", e.Strength, "trend", e.Trend)...)
	case search.EventImproved:
		logger.Info("new best", append(attrs, "fitness", e.Fitness, "label", e.Label)...)
	case search.EventChampion:
		logger.Info("champion promoted", attrs...)
	case search.EventReset:
		logger.Warn("search reset", append(attrs, "trigger", e.Message, "resets", e.Resets)...)
	case search.EventCheckpoint:
		logger.Debug("checkpoint", attrs...)
	case search.EventStepFailed, search.EventPersistFail:
		logger.Error(string(e.Kind), append(attrs, "err", e.Message)...)
	case search.EventStopped:
		logger.Info("stopped", append(attrs, "reason", e.Message)...)
	}
}
