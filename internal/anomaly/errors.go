package anomaly

import (
	"errors"
	"fmt"

	"github.com/Alias1177/SanityCheck/internal/model"
)

// MinHistoricalRecords is the fewest historical epochs a check accepts
const MinHistoricalRecords = 3

var (
	// ErrInsufficientHistory means fewer than MinHistoricalRecords epochs were supplied
	ErrInsufficientHistory = errors.New("not enough historical data for reliable anomaly detection, please provide at least 3 epochs")
	// ErrInvalidThreshold means a threshold is outside its documented range
	ErrInvalidThreshold = errors.New("invalid threshold")
)

// ValidateThresholds checks every threshold is within its documented range
func ValidateThresholds(th model.Thresholds) error {
	if th.CorrelationThreshold < 0 || th.CorrelationThreshold > 1 {
		return fmt.Errorf("%w: correlation threshold ratio (%v) must be between 0 and 1", ErrInvalidThreshold, th.CorrelationThreshold)
	}
	if th.ScoreThreshold < 0 {
		return fmt.Errorf("%w: score threshold (%v) must be a non-negative number", ErrInvalidThreshold, th.ScoreThreshold)
	}
	if th.MinAbsoluteDeviationRatio < 0 || th.MinAbsoluteDeviationRatio > 1 {
		return fmt.Errorf("%w: minimum absolute deviation ratio (%v) must be between 0 and 1", ErrInvalidThreshold, th.MinAbsoluteDeviationRatio)
	}
	return nil
}

func checkHistoryLength(n int) error {
	if n < MinHistoricalRecords {
		return fmt.Errorf("%w (got %d)", ErrInsufficientHistory, n)
	}
	return nil
}
