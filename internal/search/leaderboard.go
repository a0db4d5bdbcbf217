package search

import (
	"sort"

	"equilibrium/internal/genotype"
	"equilibrium/internal/model"
)

// Leaderboard keeps the top entries by fitness, highest first. Ties keep
// insertion order.
type Leaderboard struct {
	capacity int
	entries  []model.LeaderboardEntry
}

func NewLeaderboard(capacity int) *Leaderboard {
	if capacity <= 0 {
		capacity = 10
	}
	return &Leaderboard{capacity: capacity}
}

// Add inserts an entry and reports whether it made the board.
func (l *Leaderboard) Add(label string, generation int, fitness float64, g model.Genome) bool {
	if len(l.entries) >= l.capacity && fitness <= l.entries[len(l.entries)-1].Fitness {
		return false
	}
	l.entries = append(l.entries, model.LeaderboardEntry{
		VersionedRecord: model.VersionedRecord{SchemaVersion: genotype.CurrentSchemaVersion, CodecVersion: genotype.CurrentCodecVersion},
		Label:           label,
		Fitness:         fitness,
		Generation:      generation,
		Genome:          genotype.CloneGenome(g),
	})
	sort.SliceStable(l.entries, func(i, j int) bool { return l.entries[i].Fitness > l.entries[j].Fitness })
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	for i := range l.entries {
		l.entries[i].Rank = i + 1
	}
	return true
}

func (l *Leaderboard) Len() int {
	return len(l.entries)
}

func (l *Leaderboard) Capacity() int {
	return l.capacity
}

// Entries returns a copy of the board, best first.
func (l *Leaderboard) Entries() []model.LeaderboardEntry {
	return append([]model.LeaderboardEntry(nil), l.entries...)
}

// Top returns up to n best entries.
func (l *Leaderboard) Top(n int) []model.LeaderboardEntry {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]model.LeaderboardEntry(nil), l.entries[:n]...)
}

// Contains reports whether a genome with fingerprint is on the board.
func (l *Leaderboard) Contains(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	for _, e := range l.entries {
		if e.Genome.Derived.Fingerprint == fingerprint {
			return true
		}
	}
	return false
}

// CountLabel counts entries with label among the top n.
func (l *Leaderboard) CountLabel(label string, n int) int {
	count := 0
	for i, e := range l.entries {
		if i >= n {
			break
		}
		if e.Label == label {
			count++
		}
	}
	return count
}

func (l *Leaderboard) Clone() *Leaderboard {
	if l == nil {
		return nil
	}
	out := &Leaderboard{capacity: l.capacity, entries: make([]model.LeaderboardEntry, len(l.entries))}
	copy(out.entries, l.entries)
	return out
}
