package model

// DescriptiveStats summarises a historical series of a single metric
type DescriptiveStats struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"stdDev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Count  int     `json:"count" yaml:"count"`
}

// Thresholds configures how sensitive a single anomaly check is.
// All three values are supplied per check invocation.
type Thresholds struct {
	// CorrelationThreshold is a relative deviation ratio (0-1) below which
	// two values are considered similar, e.g. 0.15 = 15%.
	CorrelationThreshold float64 `json:"correlation_threshold"`
	// ScoreThreshold is the z-score like threshold, e.g. 2.0 standard deviations.
	ScoreThreshold float64 `json:"score_threshold"`
	// MinAbsoluteDeviationRatio is the minimum relative distance (0-1) from the
	// historical mean required to flag an anomaly.
	MinAbsoluteDeviationRatio float64 `json:"min_absolute_deviation_ratio"`
}

// DefaultThresholds returns the thresholds the CLI uses when nothing is configured
func DefaultThresholds() Thresholds {
	return Thresholds{
		CorrelationThreshold:      0.15,
		ScoreThreshold:            2.0,
		MinAbsoluteDeviationRatio: 0.05,
	}
}

// AnomalyResult is the verdict for one checked field (or one key of a grouped field)
type AnomalyResult struct {
	Field        string            `json:"field"`
	CurrentValue float64           `json:"current_value"`
	Score        float64           `json:"score"`
	IsAnomaly    bool              `json:"is_anomaly"`
	Stats        *DescriptiveStats `json:"stats,omitempty"`
	Description  string            `json:"description,omitempty"`
	Details      map[string]any    `json:"details,omitempty"`
}

// AnomalyReport is the outcome of a whole check run
type AnomalyReport struct {
	Epoch           uint64          `json:"epoch"`
	HistoricalCount int             `json:"historical_count"`
	Thresholds      Thresholds      `json:"thresholds"`
	AnomalyDetected bool            `json:"anomaly_detected"`
	Results         []AnomalyResult `json:"results"`
	Report          string          `json:"report"`
}
