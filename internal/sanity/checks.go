package sanity

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Alias1177/SanityCheck/internal/anomaly"
	"github.com/Alias1177/SanityCheck/internal/metrics"
	"github.com/Alias1177/SanityCheck/internal/model"
	"github.com/Alias1177/SanityCheck/models"
)

// ProcessingType selects which settlement metrics are compared to history
type ProcessingType string

const (
	ProcessingBid ProcessingType = "bid"
	ProcessingPSR ProcessingType = "psr"
)

// ParseProcessingType validates a processing type given on the command line
func ParseProcessingType(s string) (ProcessingType, error) {
	switch ProcessingType(s) {
	case ProcessingBid, ProcessingPSR:
		return ProcessingType(s), nil
	}
	return "", fmt.Errorf("unknown processing type %q, expected %q or %q", s, ProcessingBid, ProcessingPSR)
}

// SettlementFields returns the metrics checked for a processing type.
// PSR settlement counts are too volatile for the per reason variation check.
func SettlementFields(t ProcessingType) []anomaly.FieldCheck {
	switch t {
	case ProcessingPSR:
		return []anomaly.FieldCheck{
			{Name: metrics.TotalSettlements},
			{Name: metrics.AvgSettlementClaimAmountPerValidator},
		}
	default:
		return []anomaly.FieldCheck{
			{Name: metrics.TotalSettlements},
			{Name: metrics.TotalSettlementClaimAmount},
			{Name: metrics.ClaimsCountCV},
			{
				Name:        metrics.ClaimsCountCVByReason,
				Description: "Coefficient of variation of claims count per settlement reason (penalties excluded).",
			},
		}
	}
}

// MerkleTreeFields returns the metrics checked for merkle trees
func MerkleTreeFields() []anomaly.FieldCheck {
	names := []string{
		metrics.TotalValidators,
		metrics.TotalClaims,
		metrics.TotalClaimAmount,
		metrics.AvgClaimAmountPerValidator,
	}
	fields := make([]anomaly.FieldCheck, 0, len(names))
	for _, name := range names {
		fields = append(fields, anomaly.FieldCheck{Name: name, Description: metrics.MerkleTreeFieldDescriptions[name]})
	}
	return fields
}

// SettlementCheckRequest holds the inputs of a settlements history check
type SettlementCheckRequest struct {
	Current    *models.Settlements
	Historical []*models.Settlements
	Type       ProcessingType
	Thresholds model.Thresholds
	Options    metrics.SettlementOptions
	Logger     *zerolog.Logger
}

// CheckSettlements compares the current settlements to their history
func CheckSettlements(req SettlementCheckRequest) (model.AnomalyReport, error) {
	current := metrics.ExtractSettlements(req.Current, req.Options)
	historical := make([]model.EpochMetrics, 0, len(req.Historical))
	for _, h := range req.Historical {
		historical = append(historical, metrics.ExtractSettlements(h, req.Options))
	}
	sortByEpoch(historical)

	detector := anomaly.NewDetector(anomaly.DetectorOptions{Logger: req.Logger})
	results, err := detector.EvaluateAll(anomaly.EvaluateAllRequest{
		Current:     current,
		Historical:  historical,
		Fields:      SettlementFields(req.Type),
		Thresholds:  req.Thresholds,
		Cardinality: &anomaly.CardinalityCheck{Field: "settlementsCount", Label: "settlements"},
	})
	if err != nil {
		return model.AnomalyReport{}, fmt.Errorf("settlements anomaly detection: %w", err)
	}

	return anomaly.BuildReport(results, anomaly.ReportContext{
		Title:           "Anomaly Report",
		Epoch:           current.Epoch,
		HistoricalCount: len(historical),
		Thresholds:      req.Thresholds,
	}), nil
}

// MerkleTreeCheckRequest holds the inputs of a merkle trees history check
type MerkleTreeCheckRequest struct {
	Current    *models.MerkleTrees
	Historical []*models.MerkleTrees
	Thresholds model.Thresholds
	Logger     *zerolog.Logger
}

// CheckMerkleTrees compares the current merkle trees to their history
func CheckMerkleTrees(req MerkleTreeCheckRequest) (model.AnomalyReport, error) {
	current := metrics.ExtractMerkleTrees(req.Current)
	historical := make([]model.EpochMetrics, 0, len(req.Historical))
	for _, h := range req.Historical {
		historical = append(historical, metrics.ExtractMerkleTrees(h))
	}
	sortByEpoch(historical)

	detector := anomaly.NewDetector(anomaly.DetectorOptions{Logger: req.Logger})
	results, err := detector.EvaluateAll(anomaly.EvaluateAllRequest{
		Current:     current,
		Historical:  historical,
		Fields:      MerkleTreeFields(),
		Thresholds:  req.Thresholds,
		Cardinality: &anomaly.CardinalityCheck{Field: "merkleTreesCount", Label: "merkle trees"},
	})
	if err != nil {
		return model.AnomalyReport{}, fmt.Errorf("merkle trees anomaly detection: %w", err)
	}

	return anomaly.BuildReport(results, anomaly.ReportContext{
		Title:           "Merkle Tree Anomaly Report",
		Epoch:           current.Epoch,
		HistoricalCount: len(historical),
		Thresholds:      req.Thresholds,
	}), nil
}

// sortByEpoch orders history chronologically so the most recent epochs come last
func sortByEpoch(history []model.EpochMetrics) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Epoch < history[j].Epoch
	})
}
