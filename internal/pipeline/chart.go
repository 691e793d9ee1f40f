package pipeline

import (
	"math"
	"strconv"

	"bizdash/internal/core"
)

// ChartSeries is the label/value arrays consumed by the chart surface.
type ChartSeries struct {
	Labels      []string  `json:"labels"`
	Counts      []int     `json:"counts"`
	Totals      []float64 `json:"totals"`
	TotalLabels []string  `json:"totalLabels"`
}

// ToChartSeries keeps the insertion order of stats.
func ToChartSeries(stats GroupStats) ChartSeries {
	s := ChartSeries{
		Labels:      make([]string, len(stats)),
		Counts:      make([]int, len(stats)),
		Totals:      make([]float64, len(stats)),
		TotalLabels: make([]string, len(stats)),
	}
	for i, g := range stats {
		s.Labels[i] = g.Label
		s.Counts[i] = g.Count
		s.Totals[i] = g.TotalAmount
		s.TotalLabels[i] = FormatCompact(g.TotalAmount)
	}
	return s
}

// FormatCompact renders v for display: billions above 1e9, millions above 1e6,
// plain grouped amounts otherwise.
func FormatCompact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs > 1e9:
		return strconv.FormatFloat(v/1e9, 'f', 2, 64) + " B"
	case abs > 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 2, 64) + " M"
	default:
		return core.FormatAmount(v)
	}
}
