package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToChartSeriesKeepsOrderAndValues(t *testing.T) {
	stats := GroupStats{
		{Label: "Mar", Count: 1, TotalAmount: 2_500_000_000},
		{Label: "Jan", Count: 4, TotalAmount: 12_300_000},
		{Label: "Feb", Count: 0, TotalAmount: 0},
	}
	s := ToChartSeries(stats)
	assert.Equal(t, []string{"Mar", "Jan", "Feb"}, s.Labels)
	assert.Equal(t, []int{1, 4, 0}, s.Counts)
	assert.Equal(t, []float64{2_500_000_000, 12_300_000, 0}, s.Totals)
	assert.Equal(t, []string{"2.50 B", "12.30 M", "0.00"}, s.TotalLabels)
}

func TestFormatCompact(t *testing.T) {
	cases := map[float64]string{
		1_000_000_000: "1000.00 M",
		1_000_000_001: "1.00 B",
		1_000_000:     "1,000,000.00",
		1_500_000:     "1.50 M",
		-3_000_000:    "-3.00 M",
		950:           "950.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCompact(in), "FormatCompact(%v)", in)
	}
}

func TestEmptySeries(t *testing.T) {
	s := ToChartSeries(nil)
	assert.Empty(t, s.Labels)
	assert.NotNil(t, s.Labels)
}
