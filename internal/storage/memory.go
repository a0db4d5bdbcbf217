package storage

import (
	"context"
	"sync"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	best        *model.BestRecord
	champion    *model.Champion
	archive     []model.Champion
	history     map[string][]model.FitnessSample
	leaderboard map[string][]model.LeaderboardEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history:     make(map[string][]model.FitnessSample),
		leaderboard: make(map[string][]model.LeaderboardEntry),
	}
}

// Init is idempotent and keeps stored records; a MemoryStore is usable
// without it.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history == nil {
		s.history = make(map[string][]model.FitnessSample)
	}
	if s.leaderboard == nil {
		s.leaderboard = make(map[string][]model.LeaderboardEntry)
	}
	return nil
}

func (s *MemoryStore) SaveBest(_ context.Context, best model.BestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	best.Genome = genotype.CloneGenome(best.Genome)
	s.best = &best
	return nil
}

func (s *MemoryStore) GetBest(_ context.Context) (model.BestRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.best == nil {
		return model.BestRecord{}, false, nil
	}
	best := *s.best
	best.Genome = genotype.CloneGenome(best.Genome)
	return best, true, nil
}

func (s *MemoryStore) SaveChampion(_ context.Context, champion model.Champion) error {
	if err := ValidateChampion(champion); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	champion.Genome = genotype.CloneGenome(champion.Genome)
	s.champion = &champion
	return nil
}

func (s *MemoryStore) GetChampion(_ context.Context) (model.Champion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.champion == nil {
		return model.Champion{}, false, nil
	}
	champion := *s.champion
	champion.Genome = genotype.CloneGenome(champion.Genome)
	return champion, true, nil
}

func (s *MemoryStore) ArchiveChampion(_ context.Context, champion model.Champion) error {
	if err := ValidateChampion(champion); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	champion.Genome = genotype.CloneGenome(champion.Genome)
	s.archive = append(s.archive, champion)
	return nil
}

func (s *MemoryStore) ListArchivedChampions(_ context.Context) ([]model.Champion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Champion, len(s.archive))
	copy(out, s.archive)
	return out, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []model.FitnessSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history == nil {
		s.history = make(map[string][]model.FitnessSample)
	}
	s.history[runID] = append([]model.FitnessSample(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]model.FitnessSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.FitnessSample(nil), history...), true, nil
}

func (s *MemoryStore) SaveLeaderboard(_ context.Context, runID string, entries []model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.LeaderboardEntry, len(entries))
	copy(copied, entries)
	if s.leaderboard == nil {
		s.leaderboard = make(map[string][]model.LeaderboardEntry)
	}
	s.leaderboard[runID] = copied
	return nil
}

func (s *MemoryStore) GetLeaderboard(_ context.Context, runID string) ([]model.LeaderboardEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.leaderboard[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.LeaderboardEntry, len(entries))
	copy(copied, entries)
	return copied, true, nil
}
