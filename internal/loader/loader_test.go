package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformhttp "github.com/Alias1177/SanityCheck/internal/platform/http"
)

const key = "11111111111111111111111111111111"

func settlementsJSON(epoch int) string {
	return fmt.Sprintf(`{
  "slot": 1000,
  "epoch": %d,
  "settlements": [{
    "reason": "Bidding",
    "meta": {"funder": "ValidatorBond"},
    "vote_account": %q,
    "claims_count": 1,
    "claims_amount": 123456789012345678901234567890,
    "claims": [{
      "withdraw_authority": %q,
      "stake_authority": %q,
      "stake_accounts": {%q: 5},
      "active_stake": 5,
      "claim_amount": 123456789012345678901234567890
    }]
  }]
}`, epoch, key, key, key, key)
}

func merkleJSON(epoch int) string {
	return fmt.Sprintf(`{
  "epoch": %d,
  "slot": 1000,
  "validator_bonds_config": %q,
  "merkle_trees": [{
    "max_total_claim_sum": 10,
    "max_total_claims": 1,
    "vote_account": %q,
    "bond_account": %q,
    "settlement_account": %q,
    "tree_nodes": [{"stake_authority": %q, "withdraw_authority": %q, "claim": 10, "index": 0}]
  }],
  "sources": ["bid", "psr"]
}`, epoch, key, key, key, key, key, key)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettlements(t *testing.T) {
	path := writeFile(t, t.TempDir(), "settlements.json", settlementsJSON(700))

	s, err := New(Options{}).LoadSettlements(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), s.Epoch)
	require.Len(t, s.Settlements, 1)
	assert.Equal(t, "Bidding", s.Settlements[0].Reason.Type())
	assert.Equal(t, "123456789012345678901234567890", s.Settlements[0].ClaimsAmount.String())
}

func TestLoadMerkleTrees(t *testing.T) {
	path := writeFile(t, t.TempDir(), "trees.json", merkleJSON(700))

	m, err := New(Options{}).LoadMerkleTrees(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, m.IsUnified())
	assert.Equal(t, "bid, psr", m.SourcesString())
	assert.Equal(t, "10", m.MerkleTrees[0].TreeNodes[0].Claim.String())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	l := New(Options{})

	_, err := l.LoadSettlements(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = l.LoadSettlements(context.Background(), writeFile(t, dir, "broken.json", "{"))
	assert.ErrorContains(t, err, "parse")

	_, err = l.LoadSettlements(context.Background(), writeFile(t, dir, "zero.json", `{"epoch": 0}`))
	assert.ErrorContains(t, err, "validate")

	_, err = l.LoadSettlements(context.Background(), "https://example.invalid/settlements.json")
	assert.ErrorContains(t, err, "no http client")
}

func TestLoadHistoricalSortsByEpoch(t *testing.T) {
	dir := t.TempDir()
	histDir := filepath.Join(dir, "history")
	require.NoError(t, os.Mkdir(histDir, 0o700))
	writeFile(t, histDir, "a.json", settlementsJSON(705))
	writeFile(t, histDir, "b.json", settlementsJSON(701))
	writeFile(t, histDir, "notes.txt", "ignored")
	single := writeFile(t, dir, "single.json", settlementsJSON(703))

	out, err := New(Options{Concurrency: 2}).LoadHistoricalSettlements(context.Background(), []string{histDir, single})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, uint64(701), out[0].Epoch)
	assert.Equal(t, uint64(703), out[1].Epoch)
	assert.Equal(t, uint64(705), out[2].Epoch)
}

func TestLoadHistoricalFailsOnAnyError(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", merkleJSON(701))
	bad := writeFile(t, dir, "bad.json", "[]")

	_, err := New(Options{}).LoadHistoricalMerkleTrees(context.Background(), []string{good, bad})
	assert.Error(t, err)
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/700/merkle_trees.json":
			_, _ = w.Write([]byte(merkleJSON(700)))
		case "/699/merkle_trees.json":
			_, _ = w.Write([]byte(merkleJSON(699)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	l := New(Options{HTTP: platformhttp.NewClient(platformhttp.ClientOptions{Timeout: time.Second})})

	out, err := l.LoadHistoricalMerkleTrees(context.Background(), []string{
		srv.URL + "/700/merkle_trees.json",
		srv.URL + "/699/merkle_trees.json",
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(699), out[0].Epoch)

	_, err = l.LoadMerkleTrees(context.Background(), srv.URL+"/1/merkle_trees.json")
	assert.True(t, platformhttp.IsStatus(err, http.StatusNotFound))
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2.json", "{}")
	writeFile(t, dir, "1.json", "{}")

	out, err := ExpandPaths([]string{dir, "https://host/x.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "1.json"), filepath.Join(dir, "2.json"), "https://host/x.json"}, out)

	_, err = ExpandPaths([]string{filepath.Join(dir, "nope")})
	assert.Error(t, err)
}
