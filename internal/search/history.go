package search

import "equilibrium/internal/model"

const (
	// HistoryCapacity bounds the improvement history ring.
	HistoryCapacity = 100
	// MinTrendSamples is the sample count below which Trend is optimistic.
	MinTrendSamples = 10
	// OptimisticTrend is reported while too few samples exist.
	OptimisticTrend = 10.0
)

// History is a bounded ring of (generation, fitness) improvement samples.
type History struct {
	samples []model.FitnessSample
	start   int
	size    int
}

func NewHistory() History {
	return History{samples: make([]model.FitnessSample, HistoryCapacity)}
}

func (h *History) Add(generation int, fitness float64) {
	if len(h.samples) == 0 {
		h.samples = make([]model.FitnessSample, HistoryCapacity)
	}
	idx := (h.start + h.size) % len(h.samples)
	h.samples[idx] = model.FitnessSample{Generation: generation, Fitness: fitness}
	if h.size < len(h.samples) {
		h.size++
		return
	}
	h.start = (h.start + 1) % len(h.samples)
}

func (h History) Len() int {
	return h.size
}

// Samples returns the samples oldest first.
func (h History) Samples() []model.FitnessSample {
	out := make([]model.FitnessSample, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.samples[(h.start+i)%len(h.samples)])
	}
	return out
}

// Trend estimates fitness gained per 1000 generations between the oldest and
// newest samples.
func (h History) Trend() float64 {
	if h.size < MinTrendSamples {
		return OptimisticTrend
	}
	oldest := h.samples[h.start]
	newest := h.samples[(h.start+h.size-1)%len(h.samples)]
	delta := newest.Generation - oldest.Generation
	if delta <= 0 {
		return 0
	}
	return (newest.Fitness - oldest.Fitness) / float64(delta) * 1000
}

func (h History) clone() History {
	out := h
	out.samples = append([]model.FitnessSample(nil), h.samples...)
	return out
}

// HistoryFrom rebuilds a ring from persisted samples, keeping the newest.
func HistoryFrom(samples []model.FitnessSample) History {
	h := NewHistory()
	for _, s := range samples {
		h.Add(s.Generation, s.Fitness)
	}
	return h
}
