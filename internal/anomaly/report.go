package anomaly

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/SanityCheck/internal/model"
)

// ReportContext carries what the report header needs
type ReportContext struct {
	Title           string
	Epoch           uint64
	HistoricalCount int
	Thresholds      model.Thresholds
}

// BuildReport renders the results, in order, into an audit friendly report
func BuildReport(results []model.AnomalyResult, ctx ReportContext) model.AnomalyReport {
	anomalyDetected := false
	for _, r := range results {
		if r.IsAnomaly {
			anomalyDetected = true
			break
		}
	}

	title := ctx.Title
	if title == "" {
		title = "Anomaly Report"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=== Epoch %d %s (historical records: %d) ===\n", ctx.Epoch, title, ctx.HistoricalCount)
	status := "✅ NORMAL"
	if anomalyDetected {
		status = "⛔ ANOMALY DETECTED"
	}
	fmt.Fprintf(&sb, "Status: %s (correlationThreshold: %s, scoreThreshold: %s, minAbsoluteDeviation: %s)\n\n",
		status,
		formatFloat(ctx.Thresholds.CorrelationThreshold),
		formatFloat(ctx.Thresholds.ScoreThreshold),
		decimal.NewFromFloat(ctx.Thresholds.MinAbsoluteDeviationRatio).Shift(2).String()+"%",
	)

	for _, r := range results {
		marker := "✅"
		if r.IsAnomaly {
			marker = "⛔"
		}
		fmt.Fprintf(&sb, "[%s] Field: %s\n", marker, r.Field)
		if r.Description != "" {
			fmt.Fprintf(&sb, "  Description: %s\n", r.Description)
		}
		fmt.Fprintf(&sb, "  Value: %s\n", formatFloat(r.CurrentValue))
		fmt.Fprintf(&sb, "  Score: %s\n", formatFloat(r.Score))
		if r.Stats != nil {
			sb.WriteString(renderBlock("Stats", r.Stats))
		}
		if len(r.Details) > 0 {
			sb.WriteString(renderBlock("Details", r.Details))
		}
	}

	return model.AnomalyReport{
		Epoch:           ctx.Epoch,
		HistoricalCount: ctx.HistoricalCount,
		Thresholds:      ctx.Thresholds,
		AnomalyDetected: anomalyDetected,
		Results:         results,
		Report:          sb.String(),
	}
}

// renderBlock serializes value as an indented YAML block under name
func renderBlock(name string, value any) string {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(map[string]any{name: value}); err != nil {
		return fmt.Sprintf("  %s: <unserializable: %v>\n", name, err)
	}
	_ = enc.Close()

	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
