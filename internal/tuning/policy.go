package tuning

import (
	"fmt"
	"math"
	"strings"
)

// PlaythroughPolicy decides how many simulated playthroughs back one
// session-length measurement.
type PlaythroughPolicy interface {
	Name() string
	Playthroughs(base, cycle, stagnation int) int
}

type FixedPlaythroughPolicy struct{}

func (FixedPlaythroughPolicy) Name() string { return "fixed" }

func (FixedPlaythroughPolicy) Playthroughs(base, _cycle, _stagnation int) int {
	if base < 1 {
		return 1
	}
	return base
}

// StagnationScaledPlaythroughPolicy widens the batch as the search stalls so
// small differences are not lost in noise.
type StagnationScaledPlaythroughPolicy struct {
	Scale float64
	Max   int
}

func (StagnationScaledPlaythroughPolicy) Name() string { return "stagnation_scaled" }

func (p StagnationScaledPlaythroughPolicy) Playthroughs(base, _cycle, stagnation int) int {
	if base < 1 {
		base = 1
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 0.1
	}
	n := int(math.Round(float64(base) * (1 + scale*float64(stagnation))))
	if p.Max > 0 && n > p.Max {
		n = p.Max
	}
	return n
}

// WarmupPlaythroughPolicy uses a small batch for the first cycles and the
// full batch afterwards.
type WarmupPlaythroughPolicy struct {
	WarmupCycles int
}

func (WarmupPlaythroughPolicy) Name() string { return "warmup" }

func (p WarmupPlaythroughPolicy) Playthroughs(base, cycle, _stagnation int) int {
	if base < 1 {
		base = 1
	}
	if cycle <= p.WarmupCycles {
		return max(1, base/4)
	}
	return base
}

func PlaythroughPolicyFromConfig(name string, param float64) (PlaythroughPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fixed":
		return FixedPlaythroughPolicy{}, nil
	case "stagnation_scaled":
		return StagnationScaledPlaythroughPolicy{Scale: param, Max: 200}, nil
	case "warmup":
		return WarmupPlaythroughPolicy{WarmupCycles: int(param)}, nil
	default:
		return nil, fmt.Errorf("unsupported playthrough policy: %s", name)
	}
}
