package storage

import (
	"context"

	"equilibrium/internal/model"
)

// Store persists the balance search outputs: the best configuration, the
// champion that survives resets, and per-run fitness curves and leaderboards.
type Store interface {
	Init(ctx context.Context) error
	SaveBest(ctx context.Context, best model.BestRecord) error
	GetBest(ctx context.Context) (model.BestRecord, bool, error)
	SaveChampion(ctx context.Context, champion model.Champion) error
	GetChampion(ctx context.Context) (model.Champion, bool, error)
	ArchiveChampion(ctx context.Context, champion model.Champion) error
	ListArchivedChampions(ctx context.Context) ([]model.Champion, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []model.FitnessSample) error
	GetFitnessHistory(ctx context.Context, runID string) ([]model.FitnessSample, bool, error)
	SaveLeaderboard(ctx context.Context, runID string, entries []model.LeaderboardEntry) error
	GetLeaderboard(ctx context.Context, runID string) ([]model.LeaderboardEntry, bool, error)
}
