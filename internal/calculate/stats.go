package calculate

import (
	"errors"
	"math"

	"github.com/Alias1177/SanityCheck/internal/model"
)

// ErrEmptySeries is returned when statistics are requested for no values
var ErrEmptySeries = errors.New("cannot describe an empty series")

// calculateAverage calculates simple average
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, value := range values {
		sum += value
	}

	return sum / float64(len(values))
}

// Describe calculates mean, sample standard deviation, min, max and count.
// A single value or a constant series yields a zero standard deviation.
func Describe(values []float64) (model.DescriptiveStats, error) {
	if len(values) == 0 {
		return model.DescriptiveStats{}, ErrEmptySeries
	}

	mean := calculateAverage(values)
	minValue, maxValue := values[0], values[0]
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
		minValue = math.Min(minValue, v)
		maxValue = math.Max(maxValue, v)
	}

	stdDev := 0.0
	if len(values) > 1 {
		stdDev = math.Sqrt(variance / float64(len(values)-1))
	}
	// float rounding can leave a tiny residue for equal values
	if minValue == maxValue {
		stdDev = 0
	}

	return model.DescriptiveStats{
		Mean:   mean,
		StdDev: stdDev,
		Min:    minValue,
		Max:    maxValue,
		Count:  len(values),
	}, nil
}

// CoefficientOfVariation returns stdDev / mean of the values.
// ok is false when the series is empty or its mean is zero.
func CoefficientOfVariation(values []float64) (cv float64, ok bool) {
	stats, err := Describe(values)
	if err != nil || stats.Mean == 0 {
		return 0, false
	}
	return stats.StdDev / stats.Mean, true
}
