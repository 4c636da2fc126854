package anomaly

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Alias1177/SanityCheck/internal/calculate"
	"github.com/Alias1177/SanityCheck/internal/model"
)

// recentEpochsToCheck is how many of the latest historical epochs a current
// value has to resemble for a shift to count as an established trend
const recentEpochsToCheck = 2

// DetectorOptions holds options for creating a new Detector
type DetectorOptions struct {
	Scorer Scorer
	Logger *zerolog.Logger
}

// Detector decides field by field whether an epoch deviates from its history
type Detector struct {
	scorer Scorer
	logger zerolog.Logger
}

// NewDetector creates a Detector. Without a scorer the z-score reference
// scorer is used, without a logger nothing is logged.
func NewDetector(opts DetectorOptions) *Detector {
	if opts.Scorer == nil {
		opts.Scorer = ZScoreScorer{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "anomaly_detector").Logger()
	}
	return &Detector{scorer: opts.Scorer, logger: logger}
}

// EvaluateRequest describes a single value check
type EvaluateRequest struct {
	Field            string
	Description      string
	CurrentValue     float64
	HistoricalValues []float64
	Thresholds       model.Thresholds
}

// Evaluate runs the raw scorer and then applies the absolute deviation gate
// and the recent epoch similarity suppression.
func (d *Detector) Evaluate(req EvaluateRequest) (model.AnomalyResult, error) {
	if err := ValidateThresholds(req.Thresholds); err != nil {
		return model.AnomalyResult{}, err
	}
	if err := checkHistoryLength(len(req.HistoricalValues)); err != nil {
		return model.AnomalyResult{}, fmt.Errorf("field %s: %w", req.Field, err)
	}
	return d.evaluate(req), nil
}

func (d *Detector) evaluate(req EvaluateRequest) model.AnomalyResult {
	d.logger.Debug().
		Str("field", req.Field).
		Float64("current", req.CurrentValue).
		Floats64("historical", req.HistoricalValues).
		Msg("Analyzing field")

	th := req.Thresholds
	current := req.CurrentValue

	// history length is checked by the callers so Describe cannot fail here
	stats, _ := calculate.Describe(req.HistoricalValues)

	raw := d.scorer.Score(current, req.HistoricalValues, req.Field, th.CorrelationThreshold, th.ScoreThreshold)

	absoluteDeviationRatio := 0.0
	if stats.Mean != 0 {
		absoluteDeviationRatio = math.Abs(current-stats.Mean) / math.Abs(stats.Mean)
	}
	meetsAbsoluteThreshold := absoluteDeviationRatio >= th.MinAbsoluteDeviationRatio

	recentValues := lastN(req.HistoricalValues, recentEpochsToCheck)
	similarToAllRecent := len(recentValues) >= recentEpochsToCheck
	for _, v := range recentValues {
		if !isSimilar(current, v, th.CorrelationThreshold) {
			similarToAllRecent = false
			break
		}
	}

	tolerance := th.CorrelationThreshold * stats.Max
	isWithinHistoricalRange := current >= stats.Min-tolerance && current <= stats.Max+tolerance

	isAnomaly := raw.IsAnomaly && meetsAbsoluteThreshold && !similarToAllRecent

	recentStrings := make([]string, 0, len(recentValues))
	for _, v := range recentValues {
		recentStrings = append(recentStrings, formatFloat(v))
	}

	if raw.IsAnomaly && !isAnomaly {
		d.logger.Debug().
			Str("field", req.Field).
			Bool("meetsAbsoluteThreshold", meetsAbsoluteThreshold).
			Bool("similarToAllRecent", similarToAllRecent).
			Msg("Statistical anomaly suppressed")
	}

	return model.AnomalyResult{
		Field:        req.Field,
		CurrentValue: current,
		Score:        raw.Score,
		IsAnomaly:    isAnomaly,
		Stats:        &stats,
		Description:  req.Description,
		Details: map[string]any{
			"statisticalAnomaly":           raw.IsAnomaly,
			"absoluteDeviationRatio":       formatPercent(absoluteDeviationRatio),
			"minAbsoluteDeviationRequired": formatPercent(th.MinAbsoluteDeviationRatio),
			"meetsAbsoluteThreshold":       meetsAbsoluteThreshold,
			"recentEpochsToCheck":          recentEpochsToCheck,
			"recentValues":                 recentStrings,
			"similarToAllRecent":           similarToAllRecent,
			"historicalMin":                formatFloat(stats.Min),
			"historicalMax":                formatFloat(stats.Max),
			"toleranceApplied":             formatFloat(tolerance),
			"isWithinHistoricalRange":      isWithinHistoricalRange,
		},
	}
}

// isSimilar reports whether current is within ratio of v relative to v.
// A zero reference value never counts as similar.
func isSimilar(current, v, ratio float64) bool {
	if v == 0 {
		return false
	}
	return math.Abs(current-v)/math.Abs(v) <= ratio
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 2, 64) + "%"
}
