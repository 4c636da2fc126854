package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/Alias1177/SanityCheck/internal/model"
	"github.com/Alias1177/SanityCheck/models"
)

// Merkle tree metric names
const (
	TotalValidators            = "totalValidators"
	TotalClaims                = "totalClaims"
	TotalClaimAmount           = "totalClaimAmount"
	AvgClaimAmountPerValidator = "avgClaimAmountPerValidator"
	AvgClaimsPerValidator      = "avgClaimsPerValidator"
)

// MerkleTreeFieldDescriptions explains the merkle tree metrics in reports
var MerkleTreeFieldDescriptions = map[string]string{
	TotalValidators:            "Number of validators with merkle trees. Represents how many validators are receiving claims.",
	TotalClaims:                "Total number of individual claims across all merkle trees.",
	TotalClaimAmount:           "Sum of all claim amounts across all merkle trees (in lamports). Total SOL being distributed.",
	AvgClaimAmountPerValidator: "Average claim amount per validator (total claims / number of validators).",
	AvgClaimsPerValidator:      "Average number of claims per validator.",
}

// ExtractMerkleTrees flattens a merkle trees snapshot into epoch metrics
func ExtractMerkleTrees(dto *models.MerkleTrees) model.EpochMetrics {
	m := model.NewEpochMetrics(dto.Epoch)
	m.Cardinality = len(dto.MerkleTrees)

	totalValidators := len(dto.MerkleTrees)
	var totalClaims int64
	totalAmount := decimal.Zero
	for _, tree := range dto.MerkleTrees {
		totalClaims += int64(len(tree.TreeNodes))
		for _, node := range tree.TreeNodes {
			totalAmount = totalAmount.Add(node.Claim)
		}
	}

	avgClaims := decimal.Zero
	if totalValidators > 0 {
		avgClaims = decimal.NewFromInt(totalClaims).
			DivRound(decimal.NewFromInt(int64(totalValidators)), 2)
	}

	m.Fields[TotalValidators] = model.ScalarInt(int64(totalValidators))
	m.Fields[TotalClaims] = model.ScalarInt(totalClaims)
	m.Fields[TotalClaimAmount] = model.Scalar(totalAmount)
	m.Fields[AvgClaimAmountPerValidator] = model.Scalar(truncatedAverage(totalAmount, totalValidators))
	m.Fields[AvgClaimsPerValidator] = model.Scalar(avgClaims)

	return m
}
