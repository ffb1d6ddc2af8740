package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		name   string
		grades []float64
		want   string
	}{
		{"strictly increasing", []float64{60, 70, 80, 90}, TrendImproving},
		{"strictly decreasing", []float64{95, 85, 72}, TrendDeclining},
		{"constant", []float64{80, 80, 80, 80}, TrendStable},
		{"small wobble", []float64{80, 80.4, 79.8, 80.2}, TrendStable},
		{"two points", []float64{50, 90}, TrendInsufficientData},
		{"empty", nil, TrendInsufficientData},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyTrend(tc.grades))
		})
	}
}

func TestSlopeOfLine(t *testing.T) {
	require.InDelta(t, 2.0, Slope([]float64{1, 3, 5, 7}), 1e-9)
	require.InDelta(t, 0, Slope([]float64{4}), 1e-9)
}

func TestDistributionCountsAndPercentages(t *testing.T) {
	scores := []float64{95, 91, 85, 72, 72, 64, 12}
	buckets := Distribution(scores)
	require.Len(t, buckets, 5)

	var count int
	var percent float64
	for _, b := range buckets {
		count += b.Count
		percent += b.Percentage
	}
	require.Equal(t, len(scores), count)
	require.InDelta(t, 100, percent, 0.5)

	require.Equal(t, "A (90-100)", buckets[0].Label)
	require.Equal(t, 2, buckets[0].Count)
	require.Equal(t, 1, buckets[1].Count)
	require.Equal(t, 2, buckets[2].Count)
	require.Equal(t, 1, buckets[3].Count)
	require.Equal(t, 1, buckets[4].Count)
}

func TestDistributionThirdsStayWithinTolerance(t *testing.T) {
	buckets := Distribution([]float64{95, 85, 75})
	var percent float64
	for _, b := range buckets {
		percent += b.Percentage
	}
	require.InDelta(t, 100, percent, 0.5)
}

func TestDistributionEmpty(t *testing.T) {
	for _, b := range Distribution(nil) {
		require.Zero(t, b.Count)
		require.Zero(t, b.Percentage)
	}
}

func TestLetterGrade(t *testing.T) {
	require.Equal(t, "A", LetterGrade(90))
	require.Equal(t, "B", LetterGrade(89.99))
	require.Equal(t, "C", LetterGrade(70))
	require.Equal(t, "D", LetterGrade(60))
	require.Equal(t, "F", LetterGrade(59.9))
}

func TestDescriptiveStatistics(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	require.InDelta(t, 5, Mean(values), 1e-9)
	require.InDelta(t, 4.5, Median(values), 1e-9)
	require.InDelta(t, 2.138, StdDev(values), 1e-3)

	lo, hi := MinMax(values)
	require.Equal(t, 2.0, lo)
	require.Equal(t, 9.0, hi)

	require.Equal(t, 0.0, StdDev([]float64{3}))
	require.Equal(t, 12.35, Round(12.346, 2))
}
