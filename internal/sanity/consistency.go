package sanity

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alias1177/SanityCheck/models"
)

var (
	// ErrInconsistentMerkleTrees means tree totals do not match their nodes
	ErrInconsistentMerkleTrees = errors.New("merkle trees have internal inconsistencies")
	// ErrEmptyMerkleTrees means a merkle trees file has no trees at all
	ErrEmptyMerkleTrees = errors.New("merkle tree file contains zero merkle trees")
	// ErrEpochMismatch means two files that must describe the same epoch do not
	ErrEpochMismatch = errors.New("epoch mismatch")
	// ErrCountMismatch means the settlement and merkle tree counts differ
	ErrCountMismatch = errors.New("count mismatch")
	// ErrAmountMismatch means claim amount totals differ
	ErrAmountMismatch = errors.New("claim amount mismatch")
)

// claimCountWarnRatio is the relative claim count difference between
// settlement sources and merkle trees that is worth a warning.
// Claims may be merged so some difference is expected.
const claimCountWarnRatio = 0.5

// MerkleTotals summarises the verified content of a merkle trees file
type MerkleTotals struct {
	Trees       int
	Claims      int64
	ClaimAmount decimal.Decimal
}

// VerifyMerkleTrees checks each tree's node claims add up to its declared
// maximums and that the file is not empty
func VerifyMerkleTrees(dto *models.MerkleTrees, logger zerolog.Logger) (MerkleTotals, error) {
	totals := MerkleTotals{Trees: len(dto.MerkleTrees), ClaimAmount: decimal.Zero}
	inconsistent := 0

	for _, tree := range dto.MerkleTrees {
		nodeSum := decimal.Zero
		for _, node := range tree.TreeNodes {
			nodeSum = nodeSum.Add(node.Claim)
		}

		if !nodeSum.Equal(tree.MaxTotalClaimSum) {
			logger.Error().
				Str("vote_account", string(tree.VoteAccount)).
				Str("node_claims_sum", nodeSum.String()).
				Str("max_total_claim_sum", tree.MaxTotalClaimSum.String()).
				Msg("Node claims sum does not match max total claim sum")
			inconsistent++
		}
		if int64(len(tree.TreeNodes)) != tree.MaxTotalClaims {
			logger.Error().
				Str("vote_account", string(tree.VoteAccount)).
				Int("node_count", len(tree.TreeNodes)).
				Int64("max_total_claims", tree.MaxTotalClaims).
				Msg("Node count does not match max total claims")
			inconsistent++
		}

		totals.ClaimAmount = totals.ClaimAmount.Add(nodeSum)
		totals.Claims += int64(len(tree.TreeNodes))
	}

	if inconsistent > 0 {
		return totals, fmt.Errorf("%d %w", inconsistent, ErrInconsistentMerkleTrees)
	}
	if totals.Trees == 0 {
		return totals, fmt.Errorf("%w for epoch %d, this is likely a data generation error", ErrEmptyMerkleTrees, dto.Epoch)
	}
	return totals, nil
}

// CrossValidateSources checks the merkle trees distribute exactly what the
// settlement source files claim
func CrossValidateSources(trees *models.MerkleTrees, totals MerkleTotals, sources []*models.Settlements, logger zerolog.Logger) error {
	sourceAmount := decimal.Zero
	var sourceClaims int64

	for _, s := range sources {
		if s.Epoch != trees.Epoch {
			return fmt.Errorf("%w: settlement source has epoch %d, but merkle trees have epoch %d", ErrEpochMismatch, s.Epoch, trees.Epoch)
		}
		amount := settlementClaimsSum(s)
		var claims int64
		for _, settlement := range s.Settlements {
			claims += settlement.ClaimsCount
		}
		logger.Info().
			Uint64("epoch", s.Epoch).
			Str("amount", amount.String()).
			Int64("claims", claims).
			Msg("Settlement source totals")
		sourceAmount = sourceAmount.Add(amount)
		sourceClaims += claims
	}

	if !sourceAmount.Equal(totals.ClaimAmount) {
		return fmt.Errorf("%w: settlement sources (%s) vs merkle trees (%s)", ErrAmountMismatch, sourceAmount, totals.ClaimAmount)
	}

	if math.Abs(float64(sourceClaims-totals.Claims)) > float64(sourceClaims)*claimCountWarnRatio {
		logger.Warn().
			Int64("source_claims", sourceClaims).
			Int64("merkle_tree_claims", totals.Claims).
			Msg("Large difference in claim counts, this may be expected due to claim merging")
	}
	return nil
}

// VerifySettlementMerkleTrees checks a settlements file and its merkle trees
// describe the same epoch, the same number of settlements and the same amount
func VerifySettlementMerkleTrees(settlements *models.Settlements, trees *models.MerkleTrees, logger zerolog.Logger) error {
	if settlements.Epoch != trees.Epoch {
		return fmt.Errorf("%w: settlements (%d) vs merkle trees (%d)", ErrEpochMismatch, settlements.Epoch, trees.Epoch)
	}
	logger.Info().Uint64("epoch", settlements.Epoch).Msg("Epochs match")

	if len(settlements.Settlements) != len(trees.MerkleTrees) {
		return fmt.Errorf("%w: settlements (%d) vs merkle trees (%d)", ErrCountMismatch, len(settlements.Settlements), len(trees.MerkleTrees))
	}
	logger.Info().Int("count", len(settlements.Settlements)).Msg("Count check passed")

	settlementsSum := settlementClaimsSum(settlements)
	treesSum := decimal.Zero
	for _, tree := range trees.MerkleTrees {
		treesSum = treesSum.Add(tree.MaxTotalClaimSum)
	}
	logger.Info().
		Str("settlements_sum", settlementsSum.String()).
		Str("merkle_trees_sum", treesSum.String()).
		Msg("Comparing claim sums")

	if !settlementsSum.Equal(treesSum) {
		return fmt.Errorf("%w: settlements (%s) vs merkle trees (%s)", ErrAmountMismatch, settlementsSum, treesSum)
	}
	logger.Info().Msg("Sum check passed")
	return nil
}

func settlementClaimsSum(s *models.Settlements) decimal.Decimal {
	sum := decimal.Zero
	for _, settlement := range s.Settlements {
		for _, claim := range settlement.Claims {
			sum = sum.Add(claim.ClaimAmount)
		}
	}
	return sum
}
