package metrics

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Alias1177/SanityCheck/internal/calculate"
	"github.com/Alias1177/SanityCheck/internal/model"
	"github.com/Alias1177/SanityCheck/models"
)

// Settlement metric names
const (
	TotalSettlements                     = "totalSettlements"
	TotalSettlementClaimAmount           = "totalSettlementClaimAmount"
	TotalSettlementClaims                = "totalSettlementClaims"
	AvgSettlementClaimAmountPerValidator = "avgSettlementClaimAmountPerValidator"
	ClaimsCountCV                        = "claimsCountCV"
	ClaimsCountCVByReason                = "claimsCountCVByReason"
)

// DefaultExcludedReasons are reason categories kept out of the per reason
// grouping. Penalty settlements have a structurally different claims profile.
var DefaultExcludedReasons = []string{"penalty"}

// SettlementOptions tunes settlement metric extraction
type SettlementOptions struct {
	// ExcludedReasons are matched case-insensitively as substrings of the reason type
	ExcludedReasons []string
}

// DefaultSettlementOptions returns the options the checks use by default
func DefaultSettlementOptions() SettlementOptions {
	return SettlementOptions{ExcludedReasons: DefaultExcludedReasons}
}

// ExtractSettlements flattens a settlements snapshot into epoch metrics
func ExtractSettlements(dto *models.Settlements, opts SettlementOptions) model.EpochMetrics {
	m := model.NewEpochMetrics(dto.Epoch)
	m.Cardinality = len(dto.Settlements)

	totalAmount := decimal.Zero
	var totalClaims int64
	claimsCounts := make([]float64, 0, len(dto.Settlements))
	for _, s := range dto.Settlements {
		totalAmount = totalAmount.Add(s.ClaimsAmount)
		totalClaims += s.ClaimsCount
		claimsCounts = append(claimsCounts, float64(s.ClaimsCount))
	}

	// zero settlements or all-zero claims counts leave the CV at zero
	cv, _ := calculate.CoefficientOfVariation(claimsCounts)

	m.Fields[TotalSettlements] = model.ScalarInt(int64(len(dto.Settlements)))
	m.Fields[TotalSettlementClaimAmount] = model.Scalar(totalAmount)
	m.Fields[TotalSettlementClaims] = model.ScalarInt(totalClaims)
	m.Fields[AvgSettlementClaimAmountPerValidator] = model.Scalar(truncatedAverage(totalAmount, len(dto.Settlements)))
	m.Fields[ClaimsCountCV] = model.Scalar(decimal.NewFromFloat(cv))
	m.Fields[ClaimsCountCVByReason] = model.Grouped(claimsCountCVByReason(dto.Settlements, opts.ExcludedReasons))

	return m
}

// claimsCountCVByReason computes the claims count coefficient of variation per
// reason category. A group with zero mean maps to NaN.
func claimsCountCVByReason(settlements []models.Settlement, excluded []string) map[string]float64 {
	groups := make(map[string][]float64)
	for _, s := range settlements {
		reason := s.Reason.Type()
		if isExcludedReason(reason, excluded) {
			continue
		}
		groups[reason] = append(groups[reason], float64(s.ClaimsCount))
	}

	result := make(map[string]float64, len(groups))
	for reason, counts := range groups {
		cv, ok := calculate.CoefficientOfVariation(counts)
		if !ok {
			result[reason] = math.NaN()
			continue
		}
		result[reason] = cv
	}
	return result
}

func isExcludedReason(reason string, excluded []string) bool {
	lower := strings.ToLower(reason)
	for _, token := range excluded {
		if token != "" && strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// truncatedAverage divides total by count rounding toward zero, zero when count is zero
func truncatedAverage(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	quotient, _ := total.QuoRem(decimal.NewFromInt(int64(count)), 0)
	return quotient
}
