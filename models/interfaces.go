package models

import "context"

// SnapshotSource supplies parsed epoch snapshots to the sanity checks
type SnapshotSource interface {
	LoadSettlements(ctx context.Context, path string) (*Settlements, error)
	LoadHistoricalSettlements(ctx context.Context, paths []string) ([]*Settlements, error)
	LoadMerkleTrees(ctx context.Context, path string) (*MerkleTrees, error)
	LoadHistoricalMerkleTrees(ctx context.Context, paths []string) ([]*MerkleTrees, error)
}
