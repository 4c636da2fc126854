package sanity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/SanityCheck/internal/anomaly"
	"github.com/Alias1177/SanityCheck/internal/metrics"
	"github.com/Alias1177/SanityCheck/internal/model"
	"github.com/Alias1177/SanityCheck/models"
)

func settlements(epoch uint64, count int, claimsCount int64, amount int64) *models.Settlements {
	dto := &models.Settlements{Epoch: epoch}
	for i := 0; i < count; i++ {
		dto.Settlements = append(dto.Settlements, models.Settlement{
			Reason:       models.SettlementReason{Simple: "Bidding"},
			ClaimsCount:  claimsCount + int64(i%2),
			ClaimsAmount: decimal.NewFromInt(amount),
			Claims:       []models.StakeAccountClaim{{ClaimAmount: decimal.NewFromInt(amount)}},
		})
	}
	return dto
}

func trees(epoch uint64, validators int, claim int64) *models.MerkleTrees {
	dto := &models.MerkleTrees{Epoch: epoch}
	for i := 0; i < validators; i++ {
		dto.MerkleTrees = append(dto.MerkleTrees, models.MerkleTree{
			MaxTotalClaimSum: decimal.NewFromInt(claim * 2),
			MaxTotalClaims:   2,
			TreeNodes: []models.TreeNode{
				{Claim: decimal.NewFromInt(claim)},
				{Claim: decimal.NewFromInt(claim)},
			},
		})
	}
	return dto
}

func TestParseProcessingType(t *testing.T) {
	pt, err := ParseProcessingType("psr")
	require.NoError(t, err)
	assert.Equal(t, ProcessingPSR, pt)

	_, err = ParseProcessingType("other")
	assert.Error(t, err)
}

func TestSettlementFields(t *testing.T) {
	names := func(fields []anomaly.FieldCheck) []string {
		var out []string
		for _, f := range fields {
			out = append(out, f.Name)
		}
		return out
	}

	assert.Equal(t, []string{
		metrics.TotalSettlements,
		metrics.TotalSettlementClaimAmount,
		metrics.ClaimsCountCV,
		metrics.ClaimsCountCVByReason,
	}, names(SettlementFields(ProcessingBid)))
	assert.Equal(t, []string{
		metrics.TotalSettlements,
		metrics.AvgSettlementClaimAmountPerValidator,
	}, names(SettlementFields(ProcessingPSR)))
}

func TestCheckSettlementsNormal(t *testing.T) {
	report, err := CheckSettlements(SettlementCheckRequest{
		Current: settlements(104, 10, 4, 1000),
		Historical: []*models.Settlements{
			settlements(103, 10, 4, 1000),
			settlements(101, 10, 4, 1000),
			settlements(102, 10, 4, 1000),
		},
		Type:       ProcessingBid,
		Thresholds: model.DefaultThresholds(),
		Options:    metrics.DefaultSettlementOptions(),
	})
	require.NoError(t, err)

	assert.False(t, report.AnomalyDetected, report.Report)
	assert.Equal(t, uint64(104), report.Epoch)
	assert.Equal(t, 3, report.HistoricalCount)
	assert.Equal(t, "settlementsCount", report.Results[0].Field)
	assert.Contains(t, report.Report, "claimsCountCVByReason[Bidding]")
}

func TestCheckSettlementsEmptyCurrentIsAnomaly(t *testing.T) {
	report, err := CheckSettlements(SettlementCheckRequest{
		Current: settlements(104, 0, 0, 0),
		Historical: []*models.Settlements{
			settlements(101, 10, 4, 1000),
			settlements(102, 10, 4, 1000),
			settlements(103, 10, 4, 1000),
		},
		Type:       ProcessingPSR,
		Thresholds: model.DefaultThresholds(),
	})
	require.NoError(t, err)

	assert.True(t, report.AnomalyDetected)
	assert.True(t, report.Results[0].IsAnomaly)
}

func TestCheckSettlementsInsufficientHistory(t *testing.T) {
	_, err := CheckSettlements(SettlementCheckRequest{
		Current:    settlements(104, 10, 4, 1000),
		Historical: []*models.Settlements{settlements(102, 10, 4, 1000), settlements(103, 10, 4, 1000)},
		Type:       ProcessingBid,
		Thresholds: model.DefaultThresholds(),
	})
	assert.ErrorIs(t, err, anomaly.ErrInsufficientHistory)
}

func TestCheckMerkleTrees(t *testing.T) {
	historical := []*models.MerkleTrees{trees(100, 100, 50), trees(101, 102, 50), trees(102, 98, 50)}

	report, err := CheckMerkleTrees(MerkleTreeCheckRequest{
		Current:    trees(103, 100, 50),
		Historical: historical,
		Thresholds: model.DefaultThresholds(),
	})
	require.NoError(t, err)
	assert.False(t, report.AnomalyDetected, report.Report)
	assert.Contains(t, report.Report, "NORMAL")

	report, err = CheckMerkleTrees(MerkleTreeCheckRequest{
		Current:    trees(103, 10, 50),
		Historical: historical,
		Thresholds: model.DefaultThresholds(),
	})
	require.NoError(t, err)
	assert.True(t, report.AnomalyDetected)
	assert.Contains(t, report.Report, "ANOMALY DETECTED")
	assert.Contains(t, report.Report, "Merkle Tree Anomaly Report")
	assert.Contains(t, report.Report, metrics.MerkleTreeFieldDescriptions[metrics.TotalValidators])
}

func TestCheckMerkleTreesSortsHistoryByEpoch(t *testing.T) {
	// chronologically 100 -> 500 -> 510, the current 505 continues the new level
	historical := []*models.MerkleTrees{trees(102, 510, 50), trees(100, 100, 50), trees(99, 100, 50), trees(101, 500, 50)}

	report, err := CheckMerkleTrees(MerkleTreeCheckRequest{
		Current:    trees(103, 505, 50),
		Historical: historical,
		Thresholds: model.DefaultThresholds(),
	})
	require.NoError(t, err)

	validators := report.Results[1]
	require.Equal(t, metrics.TotalValidators, validators.Field)
	assert.Equal(t, []string{"500", "510"}, validators.Details["recentValues"])
	assert.False(t, validators.IsAnomaly)
}

func TestVerifyMerkleTrees(t *testing.T) {
	totals, err := VerifyMerkleTrees(trees(10, 3, 100), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, totals.Trees)
	assert.Equal(t, int64(6), totals.Claims)
	assert.Equal(t, "600", totals.ClaimAmount.String())

	broken := trees(10, 2, 100)
	broken.MerkleTrees[0].MaxTotalClaimSum = decimal.NewFromInt(1)
	broken.MerkleTrees[1].MaxTotalClaims = 5
	_, err = VerifyMerkleTrees(broken, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInconsistentMerkleTrees)
	assert.Contains(t, err.Error(), "2 merkle trees")

	_, err = VerifyMerkleTrees(trees(10, 0, 100), zerolog.Nop())
	assert.ErrorIs(t, err, ErrEmptyMerkleTrees)
}

func TestCrossValidateSources(t *testing.T) {
	tr := trees(10, 2, 100)
	totals, err := VerifyMerkleTrees(tr, zerolog.Nop())
	require.NoError(t, err)

	// 4 claims of 100 split across two sources
	sources := []*models.Settlements{settlements(10, 2, 1, 100), settlements(10, 2, 1, 100)}
	assert.NoError(t, CrossValidateSources(tr, totals, sources, zerolog.Nop()))

	sources = []*models.Settlements{settlements(10, 1, 1, 100)}
	assert.ErrorIs(t, CrossValidateSources(tr, totals, sources, zerolog.Nop()), ErrAmountMismatch)

	sources = []*models.Settlements{settlements(11, 4, 1, 100)}
	assert.ErrorIs(t, CrossValidateSources(tr, totals, sources, zerolog.Nop()), ErrEpochMismatch)
}

func TestVerifySettlementMerkleTrees(t *testing.T) {
	// each settlement claims 200 and each tree declares 200
	s := settlements(10, 2, 1, 200)
	tr := trees(10, 2, 100)
	assert.NoError(t, VerifySettlementMerkleTrees(s, tr, zerolog.Nop()))

	assert.ErrorIs(t, VerifySettlementMerkleTrees(settlements(11, 2, 1, 200), tr, zerolog.Nop()), ErrEpochMismatch)
	assert.ErrorIs(t, VerifySettlementMerkleTrees(settlements(10, 3, 1, 200), tr, zerolog.Nop()), ErrCountMismatch)
	assert.ErrorIs(t, VerifySettlementMerkleTrees(settlements(10, 2, 1, 300), tr, zerolog.Nop()), ErrAmountMismatch)
}
