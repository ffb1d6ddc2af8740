// Package stats holds the small numeric helpers used by grading and analytics aggregates.
package stats

import (
	"math"
	"sort"
)

// Trend classifications for a sequence of grades.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

const trendSlopeThreshold = 0.5

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value (mean of the two middle values for even lengths).
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// StdDev returns the sample standard deviation, 0 when fewer than two values exist.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var squares float64
	for _, v := range values {
		squares += (v - mean) * (v - mean)
	}
	return math.Sqrt(squares / float64(len(values)-1))
}

// MinMax returns the smallest and largest value.
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Slope fits an ordinary least squares line of values against their index and returns its slope.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denominator
}

// ClassifyTrend labels grades ordered oldest first.
func ClassifyTrend(grades []float64) string {
	if len(grades) < 3 {
		return TrendInsufficientData
	}
	slope := Slope(grades)
	switch {
	case slope > trendSlopeThreshold:
		return TrendImproving
	case slope < -trendSlopeThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// LetterGrade maps a percentage onto the fixed A-F scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

// Bucket is one band of a grade distribution.
type Bucket struct {
	Label      string  `json:"label"`
	Letter     string  `json:"letter"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

var bucketLabels = []struct {
	letter string
	label  string
}{
	{"A", "A (90-100)"},
	{"B", "B (80-89)"},
	{"C", "C (70-79)"},
	{"D", "D (60-69)"},
	{"F", "F (0-59)"},
}

// Distribution buckets percentages into the five letter bands. Bucket percentages are
// rounded to one decimal; for a non-empty input they sum to 100 within rounding.
func Distribution(percentages []float64) []Bucket {
	buckets := make([]Bucket, len(bucketLabels))
	index := make(map[string]int, len(bucketLabels))
	for i, l := range bucketLabels {
		buckets[i] = Bucket{Label: l.label, Letter: l.letter}
		index[l.letter] = i
	}

	for _, p := range percentages {
		buckets[index[LetterGrade(p)]].Count++
	}

	if total := len(percentages); total > 0 {
		for i := range buckets {
			buckets[i].Percentage = Round(float64(buckets[i].Count)/float64(total)*100, 1)
		}
	}
	return buckets
}
