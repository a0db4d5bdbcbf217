package fitness

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrMetricExists   = errors.New("metric already registered")
	ErrMetricNotFound = errors.New("metric not found")
)

type MetricSpec struct {
	Name     string
	Metric   Metric
	Weight   float64
	Critical bool
	Enabled  bool
}

type registeredMetric struct {
	spec  MetricSpec
	order int
}

// Registry holds the metrics an evaluator may run. It is safe for concurrent
// use; evaluators snapshot the active set on every call.
type Registry struct {
	mu sync.RWMutex
	m  map[string]registeredMetric
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]registeredMetric)}
}

// DefaultRegistry returns a registry with every built-in metric. Build
// Diversity and Progression Strata are registered disabled.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, spec := range DefaultMetrics() {
		// Built-in names are unique.
		_ = r.Register(spec)
	}
	return r
}

// DefaultMetrics lists the built-in metrics with their default weights.
func DefaultMetrics() []MetricSpec {
	return []MetricSpec{
		{Name: MetricCombatBalance, Metric: CombatBalance{}, Weight: 0.30, Critical: true, Enabled: true},
		{Name: MetricEconomicHealth, Metric: EconomicHealth{}, Weight: 0.25, Critical: true, Enabled: true},
		{Name: MetricEquipmentProgression, Metric: EquipmentProgression{}, Weight: 0.15, Enabled: true},
		{Name: MetricSkillBalance, Metric: SkillBalance{}, Weight: 0.20, Enabled: true},
		{Name: MetricDifficultyPacing, Metric: DifficultyPacing{}, Weight: 0.10, Enabled: true},
		{Name: MetricBuildDiversity, Metric: BuildDiversity{}, Weight: 0.15},
		{Name: MetricProgressionStrata, Metric: ProgressionStrata{}, Weight: 0.15},
	}
}

func (r *Registry) Register(spec MetricSpec) error {
	if spec.Name == "" {
		return errors.New("metric name is required")
	}
	if spec.Metric == nil {
		return errors.New("metric is required")
	}
	if spec.Weight <= 0 {
		return fmt.Errorf("metric weight must be > 0: %s", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrMetricExists, spec.Name)
	}
	r.m[spec.Name] = registeredMetric{spec: spec, order: len(r.m)}
	return nil
}

func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.m[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMetricNotFound, name)
	}
	entry.spec.Enabled = enabled
	r.m[name] = entry
	return nil
}

func (r *Registry) SetWeight(name string, weight float64) error {
	if weight <= 0 {
		return fmt.Errorf("metric weight must be > 0: %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.m[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMetricNotFound, name)
	}
	entry.spec.Weight = weight
	r.m[name] = entry
	return nil
}

// Active returns the enabled metrics in registration order with weights
// renormalized to sum to 1.
func (r *Registry) Active() []MetricSpec {
	r.mu.RLock()
	entries := make([]registeredMetric, 0, len(r.m))
	for _, entry := range r.m {
		if entry.spec.Enabled {
			entries = append(entries, entry)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	total := 0.0
	for _, entry := range entries {
		total += entry.spec.Weight
	}
	out := make([]MetricSpec, 0, len(entries))
	for _, entry := range entries {
		spec := entry.spec
		spec.Weight /= total
		out = append(out, spec)
	}
	return out
}

// List returns every registered metric name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
