package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"equilibrium/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	ErrVersionMismatch = errors.New("record version mismatch")
	ErrInvalidChampion = errors.New("invalid champion")
)

// Versioned returns the record header for newly written records.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeGenome(g model.Genome) ([]byte, error) {
	return json.Marshal(g)
}

func DecodeGenome(data []byte) (model.Genome, error) {
	var genome model.Genome
	if err := json.Unmarshal(data, &genome); err != nil {
		return model.Genome{}, err
	}
	if err := checkVersion(genome.VersionedRecord); err != nil {
		return model.Genome{}, err
	}
	return genome, nil
}

func EncodeBest(b model.BestRecord) ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

func DecodeBest(data []byte) (model.BestRecord, error) {
	var best model.BestRecord
	if err := json.Unmarshal(data, &best); err != nil {
		return model.BestRecord{}, err
	}
	if err := checkVersion(best.VersionedRecord); err != nil {
		return model.BestRecord{}, err
	}
	if err := checkVersion(best.Genome.VersionedRecord); err != nil {
		return model.BestRecord{}, err
	}
	return best, nil
}

func EncodeChampion(c model.Champion) ([]byte, error) {
	if err := ValidateChampion(c); err != nil {
		return nil, err
	}
	return json.MarshalIndent(c, "", "  ")
}

func DecodeChampion(data []byte) (model.Champion, error) {
	var champion model.Champion
	if err := json.Unmarshal(data, &champion); err != nil {
		return model.Champion{}, err
	}
	if err := checkVersion(champion.VersionedRecord); err != nil {
		return model.Champion{}, err
	}
	if err := ValidateChampion(champion); err != nil {
		return model.Champion{}, err
	}
	return champion, nil
}

// ValidateChampion rejects champions whose fitness lies outside [0,100].
func ValidateChampion(c model.Champion) error {
	if c.Fitness < 0 || c.Fitness > 100 {
		return fmt.Errorf("%w: fitness %.2f outside [0,100]", ErrInvalidChampion, c.Fitness)
	}
	return nil
}

func EncodeFitnessHistory(history []model.FitnessSample) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]model.FitnessSample, error) {
	var history []model.FitnessSample
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeLeaderboard(entries []model.LeaderboardEntry) ([]byte, error) {
	return json.Marshal(entries)
}

func DecodeLeaderboard(data []byte) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := checkVersion(entry.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
