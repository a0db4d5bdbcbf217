package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"equilibrium/internal/model"
)

const (
	BestFileName       = "progression_framework.json"
	BackupFileName     = "progression_framework_backup.json"
	ChampionFileName   = "progression_champion.json"
	archivePrefix      = "champion_"
	historyPrefix      = "fitness_history_"
	leaderboardPrefix  = "leaderboard_"
	archiveStampLayout = "20060102T150405.000000000Z"
	writeAttempts      = 3
)

// DefaultBackupDir receives the best record when the data directory cannot
// be written.
const DefaultBackupDir = "."

// FileStore keeps JSON documents in a directory. Writes go through a temp
// file and rename. A failed primary write of the best record falls back to
// the backup file in a separate directory; reads consider both and keep the
// stronger record.
type FileStore struct {
	dir       string
	backupDir string

	mu      sync.Mutex
	backoff time.Duration
	now     func() time.Time
}

type FileStoreOption func(*FileStore)

// WithBackupDir sets the fallback directory for the best record. An empty
// dir keeps DefaultBackupDir.
func WithBackupDir(dir string) FileStoreOption {
	return func(s *FileStore) {
		if dir != "" {
			s.backupDir = dir
		}
	}
}

func NewFileStore(dir string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{dir: dir, backupDir: DefaultBackupDir, backoff: 25 * time.Millisecond, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BackupDir returns the fallback directory of the best record.
func (s *FileStore) BackupDir() string {
	return s.backupDir
}

func (s *FileStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("data directory is required")
	}
	return os.MkdirAll(s.dir, 0o755)
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) SaveBest(_ context.Context, best model.BestRecord) error {
	payload, err := EncodeBest(best)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	primaryErr := s.writeAtomic(filepath.Join(s.dir, BestFileName), payload)
	if primaryErr == nil {
		return nil
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("save best: primary: %v; backup: %w", primaryErr, err)
	}
	if err := s.writeAtomic(s.backupPath(), payload); err != nil {
		return fmt.Errorf("save best: primary: %v; backup: %w", primaryErr, err)
	}
	return nil
}

func (s *FileStore) backupPath() string {
	return filepath.Join(s.backupDir, BackupFileName)
}

// GetBest loads the primary and backup documents and returns the one with
// higher fitness, the newer one on a tie. Documents written without a
// version header are imported through the legacy reader.
func (s *FileStore) GetBest(_ context.Context) (model.BestRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best  model.BestRecord
		found bool
		errs  []error
	)
	for _, path := range []string{filepath.Join(s.dir, BestFileName), s.backupPath()} {
		record, ok, err := readBestDocument(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if ok && (!found || strongerBest(record, best)) {
			best, found = record, true
		}
	}
	if found {
		return best, true, nil
	}
	if len(errs) > 0 {
		return model.BestRecord{}, false, errors.Join(errs...)
	}
	return model.BestRecord{}, false, nil
}

func readBestDocument(path string) (model.BestRecord, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.BestRecord{}, false, nil
	}
	if err != nil {
		return model.BestRecord{}, false, err
	}
	best, err := DecodeBest(data)
	if err == nil {
		return best, true, nil
	}
	if IsLegacyDocument(data) {
		legacy, lerr := ImportLegacy(data)
		if lerr == nil {
			return legacy, true, nil
		}
		err = lerr
	}
	return model.BestRecord{}, false, err
}

// strongerBest orders by fitness, then by save time. RFC 3339 UTC stamps
// compare lexically.
func strongerBest(a, b model.BestRecord) bool {
	if a.Fitness != b.Fitness {
		return a.Fitness > b.Fitness
	}
	return a.SavedAtUTC > b.SavedAtUTC
}

func (s *FileStore) SaveChampion(_ context.Context, champion model.Champion) error {
	payload, err := EncodeChampion(champion)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(filepath.Join(s.dir, ChampionFileName), payload)
}

func (s *FileStore) GetChampion(_ context.Context) (model.Champion, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, ChampionFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Champion{}, false, nil
	}
	if err != nil {
		return model.Champion{}, false, err
	}
	champion, err := DecodeChampion(data)
	if err != nil {
		return model.Champion{}, false, fmt.Errorf("decode champion: %w", err)
	}
	return champion, true, nil
}

func (s *FileStore) ArchiveChampion(_ context.Context, champion model.Champion) error {
	payload, err := EncodeChampion(champion)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	name := archivePrefix + s.now().UTC().Format(archiveStampLayout) + ".json"
	return s.writeAtomic(filepath.Join(s.dir, name), payload)
}

// ListArchivedChampions returns archived champions oldest first.
func (s *FileStore) ListArchivedChampions(_ context.Context) ([]model.Champion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, archivePrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]model.Champion, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		champion, err := DecodeChampion(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		out = append(out, champion)
	}
	return out, nil
}

func (s *FileStore) SaveFitnessHistory(_ context.Context, runID string, history []model.FitnessSample) error {
	path, err := s.runPath(historyPrefix, runID)
	if err != nil {
		return err
	}
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(path, payload)
}

func (s *FileStore) GetFitnessHistory(_ context.Context, runID string) ([]model.FitnessSample, bool, error) {
	path, err := s.runPath(historyPrefix, runID)
	if err != nil {
		return nil, false, err
	}
	data, ok, err := s.read(path)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeFitnessHistory(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *FileStore) SaveLeaderboard(_ context.Context, runID string, entries []model.LeaderboardEntry) error {
	path, err := s.runPath(leaderboardPrefix, runID)
	if err != nil {
		return err
	}
	payload, err := EncodeLeaderboard(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(path, payload)
}

func (s *FileStore) GetLeaderboard(_ context.Context, runID string) ([]model.LeaderboardEntry, bool, error) {
	path, err := s.runPath(leaderboardPrefix, runID)
	if err != nil {
		return nil, false, err
	}
	data, ok, err := s.read(path)
	if err != nil || !ok {
		return nil, false, err
	}
	entries, err := DecodeLeaderboard(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode leaderboard %s: %w", runID, err)
	}
	return entries, true, nil
}

func (s *FileStore) runPath(prefix, runID string) (string, error) {
	if runID == "" {
		return "", errors.New("run id is required")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id: %q", runID)
	}
	return filepath.Join(s.dir, prefix+runID+".json"), nil
}

func (s *FileStore) read(path string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// writeAtomic retries a temp-file-and-rename write a few times with linear
// backoff.
func (s *FileStore) writeAtomic(path string, payload []byte) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err = writeFileAtomic(path, payload); err == nil {
			return nil
		}
		if attempt < writeAttempts {
			time.Sleep(time.Duration(attempt) * s.backoff)
		}
	}
	return fmt.Errorf("write %s: %w", filepath.Base(path), err)
}

func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
