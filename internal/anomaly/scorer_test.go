package anomaly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZScoreScorer(t *testing.T) {
	tests := []struct {
		name        string
		current     float64
		historical  []float64
		wantAnomaly bool
		wantScore   float64
	}{
		{
			name:        "value at the mean",
			current:     100,
			historical:  []float64{98, 102, 100, 99, 101},
			wantAnomaly: false,
			wantScore:   0,
		},
		{
			name:        "value several deviations away",
			current:     110,
			historical:  []float64{98, 102, 100, 99, 101},
			wantAnomaly: true,
			wantScore:   10 / math.Sqrt(2.5),
		},
		{
			name:        "constant history small relative change",
			current:     103,
			historical:  []float64{100, 100, 100},
			wantAnomaly: false,
			wantScore:   0.03,
		},
		{
			name:        "constant history large relative change",
			current:     120,
			historical:  []float64{100, 100, 100},
			wantAnomaly: true,
			wantScore:   0.2,
		},
		{
			name:        "zero history unchanged",
			current:     0,
			historical:  []float64{0, 0, 0},
			wantAnomaly: false,
			wantScore:   0,
		},
		{
			name:        "zero history moved",
			current:     7,
			historical:  []float64{0, 0, 0},
			wantAnomaly: true,
			wantScore:   1,
		},
		{
			name:        "empty history",
			current:     7,
			historical:  nil,
			wantAnomaly: false,
			wantScore:   0,
		},
	}

	scorer := ZScoreScorer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(tt.current, tt.historical, "field", 0.15, 2.0)

			assert.Equal(t, tt.wantAnomaly, result.IsAnomaly)
			assert.InDelta(t, tt.wantScore, result.Score, 1e-9)
			assert.Equal(t, "field", result.Field)
			assert.Equal(t, tt.current, result.CurrentValue)
			assert.False(t, math.IsNaN(result.Score) || math.IsInf(result.Score, 0))
		})
	}
}

func TestZScoreScorerDeterministic(t *testing.T) {
	historical := []float64{10, 12, 9, 11, 13}
	first := ZScoreScorer{}.Score(20, historical, "f", 0.15, 2)
	second := ZScoreScorer{}.Score(20, historical, "f", 0.15, 2)
	assert.Equal(t, first, second)
}
