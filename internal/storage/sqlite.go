//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"equilibrium/internal/model"

	_ "modernc.org/sqlite"
)

const singletonKey = "current"

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveBest(ctx context.Context, best model.BestRecord) error {
	payload, err := EncodeBest(best)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "best", singletonKey, payload)
}

func (s *SQLiteStore) GetBest(ctx context.Context) (model.BestRecord, bool, error) {
	payload, ok, err := s.lookup(ctx, "best", singletonKey)
	if err != nil || !ok {
		return model.BestRecord{}, false, err
	}
	best, err := DecodeBest(payload)
	if err != nil {
		return model.BestRecord{}, false, fmt.Errorf("decode best: %w", err)
	}
	return best, true, nil
}

func (s *SQLiteStore) SaveChampion(ctx context.Context, champion model.Champion) error {
	payload, err := EncodeChampion(champion)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "champions", singletonKey, payload)
}

func (s *SQLiteStore) GetChampion(ctx context.Context) (model.Champion, bool, error) {
	payload, ok, err := s.lookup(ctx, "champions", singletonKey)
	if err != nil || !ok {
		return model.Champion{}, false, err
	}
	champion, err := DecodeChampion(payload)
	if err != nil {
		return model.Champion{}, false, fmt.Errorf("decode champion: %w", err)
	}
	return champion, true, nil
}

func (s *SQLiteStore) ArchiveChampion(ctx context.Context, champion model.Champion) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	payload, err := EncodeChampion(champion)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO champion_archive (promoted_at_utc, payload)
		VALUES (?, ?)
	`, champion.PromotedAtUTC, payload)
	return err
}

func (s *SQLiteStore) ListArchivedChampions(ctx context.Context) ([]model.Champion, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM champion_archive ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Champion
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		champion, err := DecodeChampion(payload)
		if err != nil {
			return nil, fmt.Errorf("decode archived champion: %w", err)
		}
		out = append(out, champion)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveFitnessHistory(ctx context.Context, runID string, history []model.FitnessSample) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "fitness_history", runID, payload)
}

func (s *SQLiteStore) GetFitnessHistory(ctx context.Context, runID string) ([]model.FitnessSample, bool, error) {
	payload, ok, err := s.lookup(ctx, "fitness_history", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveLeaderboard(ctx context.Context, runID string, entries []model.LeaderboardEntry) error {
	payload, err := EncodeLeaderboard(entries)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "leaderboards", runID, payload)
}

func (s *SQLiteStore) GetLeaderboard(ctx context.Context, runID string) ([]model.LeaderboardEntry, bool, error) {
	payload, ok, err := s.lookup(ctx, "leaderboards", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	entries, err := DecodeLeaderboard(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode leaderboard %s: %w", runID, err)
	}
	return entries, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// upsert writes payload under key in one of the key/payload tables. Table
// names are package constants, never user input.
func (s *SQLiteStore) upsert(ctx context.Context, table, key string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, payload)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload
	`, key, payload)
	return err
}

func (s *SQLiteStore) lookup(ctx context.Context, table, key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE id = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS best (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS champions (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS champion_archive (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			promoted_at_utc TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fitness_history (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS leaderboards (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
