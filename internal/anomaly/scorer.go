package anomaly

import (
	"math"

	"github.com/Alias1177/SanityCheck/internal/calculate"
)

// ScoreResult is the raw statistical signal for one value
type ScoreResult struct {
	Field        string
	CurrentValue float64
	IsAnomaly    bool
	Score        float64
}

// Scorer produces the raw statistical anomaly signal the policy gates refine.
// Implementations must be deterministic and must not return NaN or Inf.
type Scorer interface {
	Score(currentValue float64, historicalValues []float64, field string, correlationThreshold, scoreThreshold float64) ScoreResult
}

// ZScoreScorer flags values whose z-score reaches the score threshold.
// For a constant history the z-score is undefined, so the relative deviation
// from the mean is used as the score and compared to the correlation threshold.
type ZScoreScorer struct{}

// Score implements Scorer
func (ZScoreScorer) Score(currentValue float64, historicalValues []float64, field string, correlationThreshold, scoreThreshold float64) ScoreResult {
	result := ScoreResult{Field: field, CurrentValue: currentValue}

	stats, err := calculate.Describe(historicalValues)
	if err != nil {
		return result
	}

	deviation := math.Abs(currentValue - stats.Mean)
	if stats.StdDev > 0 {
		result.Score = deviation / stats.StdDev
		result.IsAnomaly = result.Score >= scoreThreshold
		return result
	}

	if stats.Mean == 0 {
		// zero history: any movement away from zero counts as full deviation
		if deviation > 0 {
			result.Score = 1
			result.IsAnomaly = true
		}
		return result
	}

	result.Score = deviation / math.Abs(stats.Mean)
	result.IsAnomaly = result.Score > correlationThreshold
	return result
}
