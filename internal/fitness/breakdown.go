package fitness

import (
	"fmt"
	"strings"

	"equilibrium/internal/model"
)

// Quality names the band a total fitness falls in.
func Quality(total float64) string {
	switch {
	case total >= 90:
		return "optimal"
	case total >= 80:
		return "excellent"
	case total >= 70:
		return "good"
	case total >= 60:
		return "fair"
	case total >= 50:
		return "poor"
	default:
		return "broken"
	}
}

// Breakdown renders a per-metric explanation of result.
func Breakdown(result model.FitnessResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "total=%.2f quality=%s difficulty=%.1f", result.Total, Quality(result.Total), result.Difficulty)
	if result.Gated {
		b.WriteString(" gated=true")
	}
	b.WriteByte('\n')
	if result.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", result.Error)
	}
	for _, m := range result.Metrics {
		flag := ""
		if m.Critical {
			flag = " [critical]"
			if m.Score < CriticalThreshold {
				flag = " [critical FAILED]"
			}
		}
		fmt.Fprintf(&b, "%-22s %6.1f x %.3f = %6.2f%s\n", m.Name, m.Score, m.Weight, m.WeightedScore, flag)
		for _, d := range m.Details {
			fmt.Fprintf(&b, "    %s\n", d)
		}
		for _, w := range m.Warnings {
			fmt.Fprintf(&b, "    ! %s\n", w)
		}
	}
	return b.String()
}
