package anomaly

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alias1177/SanityCheck/internal/model"
)

func TestBuildReportNormal(t *testing.T) {
	results := []model.AnomalyResult{
		{
			Field:        "totalValidators",
			Description:  "Number of validators",
			CurrentValue: 100,
			Score:        0.5,
			Stats:        &model.DescriptiveStats{Mean: 100, StdDev: 2, Min: 98, Max: 102, Count: 3},
			Details:      map[string]any{"meetsAbsoluteThreshold": false},
		},
	}

	report := BuildReport(results, ReportContext{
		Title:           "Merkle Tree Anomaly Report",
		Epoch:           700,
		HistoricalCount: 3,
		Thresholds:      model.DefaultThresholds(),
	})

	assert.False(t, report.AnomalyDetected)
	assert.Equal(t, uint64(700), report.Epoch)
	assert.Contains(t, report.Report, "=== Epoch 700 Merkle Tree Anomaly Report (historical records: 3) ===")
	assert.Contains(t, report.Report, "Status: ✅ NORMAL (correlationThreshold: 0.15, scoreThreshold: 2, minAbsoluteDeviation: 5%)")
	assert.Contains(t, report.Report, "[✅] Field: totalValidators")
	assert.Contains(t, report.Report, "  Description: Number of validators")
	assert.Contains(t, report.Report, "  Value: 100")
	assert.Contains(t, report.Report, "  Score: 0.5")
	assert.Contains(t, report.Report, "  Stats:\n      mean: 100\n      stdDev: 2\n")
	assert.Contains(t, report.Report, "  Details:\n      meetsAbsoluteThreshold: false\n")
}

func TestBuildReportAnomalyOrder(t *testing.T) {
	results := []model.AnomalyResult{
		{Field: "first", IsAnomaly: false},
		{Field: "second", IsAnomaly: true, CurrentValue: 10, Score: 45},
		{Field: "third", IsAnomaly: false},
	}

	report := BuildReport(results, ReportContext{Epoch: 5, HistoricalCount: 4})

	assert.True(t, report.AnomalyDetected)
	assert.Equal(t, results, report.Results)
	assert.Contains(t, report.Report, "Anomaly Report")
	assert.Contains(t, report.Report, "ANOMALY DETECTED")
	assert.Contains(t, report.Report, "[⛔] Field: second")

	first := strings.Index(report.Report, "Field: first")
	second := strings.Index(report.Report, "Field: second")
	third := strings.Index(report.Report, "Field: third")
	assert.True(t, first < second && second < third)
	assert.NotContains(t, report.Report, "Description:")
	assert.NotContains(t, report.Report, "Stats:")
}

func TestBuildReportDeterministic(t *testing.T) {
	results := []model.AnomalyResult{{
		Field:   "f",
		Details: map[string]any{"b": 1, "a": "x", "c": []string{"1", "2"}},
	}}
	ctx := ReportContext{Epoch: 1, HistoricalCount: 3, Thresholds: model.DefaultThresholds()}

	assert.Equal(t, BuildReport(results, ctx).Report, BuildReport(results, ctx).Report)
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil, ReportContext{Epoch: 1})
	assert.False(t, report.AnomalyDetected)
	assert.Contains(t, report.Report, "NORMAL")
}
