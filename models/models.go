package models

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const publicKeyLength = 32

// PublicKey is a base58 encoded 32 byte account address
type PublicKey string

// Validate checks the key decodes to exactly 32 bytes
func (pk PublicKey) Validate() error {
	if pk == "" {
		return fmt.Errorf("empty public key")
	}
	decoded := base58.Decode(string(pk))
	if len(decoded) != publicKeyLength {
		return fmt.Errorf("invalid public key %q: decoded to %d bytes", string(pk), len(decoded))
	}
	return nil
}

// FunderType names who funds a settlement
type FunderType string

const (
	FunderValidatorBond FunderType = "ValidatorBond"
	FunderMarinade      FunderType = "Marinade"
)

// SettlementMeta holds settlement metadata
type SettlementMeta struct {
	Funder FunderType `json:"funder"`
}

// DowntimeRevenueImpact is the protected event caused by validator downtime
type DowntimeRevenueImpact struct {
	VoteAccount     PublicKey       `json:"vote_account"`
	ActualCredits   decimal.Decimal `json:"actual_credits"`
	ExpectedCredits decimal.Decimal `json:"expected_credits"`
	ExpectedEpr     float64         `json:"expected_epr"`
	ActualEpr       float64         `json:"actual_epr"`
	EprLossBps      float64         `json:"epr_loss_bps"`
	Stake           decimal.Decimal `json:"stake"`
}

// ProtectedEvent wraps the concrete protected event kinds
type ProtectedEvent struct {
	DowntimeRevenueImpact *DowntimeRevenueImpact `json:"DowntimeRevenueImpact,omitempty"`
}

// SettlementReason is serialized either as a plain string ("Bidding") or
// as an object ({"ProtectedEvent": {...}})
type SettlementReason struct {
	Simple         string
	ProtectedEvent *ProtectedEvent
}

// UnmarshalJSON accepts both reason encodings
func (r *SettlementReason) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Simple)
	}

	var wrapper struct {
		ProtectedEvent *ProtectedEvent `json:"ProtectedEvent"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("parsing settlement reason: %w", err)
	}
	r.ProtectedEvent = wrapper.ProtectedEvent
	return nil
}

// MarshalJSON writes the reason back in the encoding it was read from
func (r SettlementReason) MarshalJSON() ([]byte, error) {
	if r.ProtectedEvent != nil {
		return json.Marshal(map[string]*ProtectedEvent{"ProtectedEvent": r.ProtectedEvent})
	}
	return json.Marshal(r.Simple)
}

// Type returns the reason category used for grouping
func (r SettlementReason) Type() string {
	if r.ProtectedEvent != nil {
		return "ProtectedEvent"
	}
	if r.Simple == "" {
		return "Unknown"
	}
	return r.Simple
}

// StakeAccountClaim is one claim of a settlement
type StakeAccountClaim struct {
	WithdrawAuthority PublicKey        `json:"withdraw_authority"`
	StakeAuthority    PublicKey        `json:"stake_authority"`
	StakeAccounts     map[string]int64 `json:"stake_accounts"`
	ActiveStake       decimal.Decimal  `json:"active_stake"`
	ClaimAmount       decimal.Decimal  `json:"claim_amount"`
}

// Settlement aggregates the claims owed by one validator bond
type Settlement struct {
	Reason       SettlementReason    `json:"reason"`
	Meta         SettlementMeta      `json:"meta"`
	VoteAccount  PublicKey           `json:"vote_account"`
	ClaimsCount  int64               `json:"claims_count"`
	ClaimsAmount decimal.Decimal     `json:"claims_amount"`
	Claims       []StakeAccountClaim `json:"claims"`
}

// Settlements is the content of a settlements.json file for one epoch
type Settlements struct {
	Slot        uint64       `json:"slot"`
	Epoch       uint64       `json:"epoch"`
	Settlements []Settlement `json:"settlements"`
}

// Validate performs the structural checks the sanity checks rely on
func (s *Settlements) Validate() error {
	if s.Epoch == 0 {
		return fmt.Errorf("epoch must be positive")
	}
	for i, settlement := range s.Settlements {
		if err := settlement.VoteAccount.Validate(); err != nil {
			return fmt.Errorf("settlement %d: vote account: %w", i, err)
		}
		if settlement.ClaimsCount < 0 {
			return fmt.Errorf("settlement %d: negative claims count %d", i, settlement.ClaimsCount)
		}
		if settlement.Meta.Funder != FunderValidatorBond && settlement.Meta.Funder != FunderMarinade {
			return fmt.Errorf("settlement %d: unknown funder %q", i, settlement.Meta.Funder)
		}
		for j, claim := range settlement.Claims {
			if err := claim.WithdrawAuthority.Validate(); err != nil {
				return fmt.Errorf("settlement %d claim %d: withdraw authority: %w", i, j, err)
			}
			if err := claim.StakeAuthority.Validate(); err != nil {
				return fmt.Errorf("settlement %d claim %d: stake authority: %w", i, j, err)
			}
		}
	}
	return nil
}

// TreeNode is one claim leaf of a merkle tree
type TreeNode struct {
	StakeAuthority    PublicKey       `json:"stake_authority"`
	WithdrawAuthority PublicKey       `json:"withdraw_authority"`
	Claim             decimal.Decimal `json:"claim"`
	Index             uint64          `json:"index"`
}

// MerkleTree is the per-validator claim tree
type MerkleTree struct {
	MaxTotalClaimSum  decimal.Decimal    `json:"max_total_claim_sum"`
	MaxTotalClaims    int64              `json:"max_total_claims"`
	VoteAccount       PublicKey          `json:"vote_account"`
	BondAccount       PublicKey          `json:"bond_account"`
	SettlementAccount PublicKey          `json:"settlement_account"`
	FundingSources    map[string]float64 `json:"funding_sources,omitempty"`
	TreeNodes         []TreeNode         `json:"tree_nodes"`
}

// MerkleTrees is the content of a (unified) merkle trees file for one epoch
type MerkleTrees struct {
	Epoch                uint64       `json:"epoch"`
	Slot                 uint64       `json:"slot"`
	ValidatorBondsConfig PublicKey    `json:"validator_bonds_config"`
	MerkleTrees          []MerkleTree `json:"merkle_trees"`
	// Sources is only present in the unified format
	Sources []string `json:"sources,omitempty"`
}

// IsUnified reports whether the file carries the unified format sources list
func (m *MerkleTrees) IsUnified() bool {
	return len(m.Sources) > 0
}

// SourcesString renders the sources for logging
func (m *MerkleTrees) SourcesString() string {
	if !m.IsUnified() {
		return "N/A"
	}
	return strings.Join(m.Sources, ", ")
}

// Validate performs the structural checks the sanity checks rely on
func (m *MerkleTrees) Validate() error {
	if m.Epoch == 0 {
		return fmt.Errorf("epoch must be positive")
	}
	for i, tree := range m.MerkleTrees {
		if err := tree.VoteAccount.Validate(); err != nil {
			return fmt.Errorf("merkle tree %d: vote account: %w", i, err)
		}
		if tree.MaxTotalClaims < 0 {
			return fmt.Errorf("merkle tree %d: negative max total claims %d", i, tree.MaxTotalClaims)
		}
	}
	return nil
}
