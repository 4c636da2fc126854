// Package loader reads epoch snapshots from local files, directories and
// HTTP(S) locations.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	platformhttp "github.com/Alias1177/SanityCheck/internal/platform/http"
	"github.com/Alias1177/SanityCheck/models"
)

const defaultConcurrency = 4

// Loader implements models.SnapshotSource
type Loader struct {
	http        *platformhttp.Client
	concurrency int
	logger      zerolog.Logger
}

var _ models.SnapshotSource = (*Loader)(nil)

// Options configures a Loader
type Options struct {
	// HTTP is used for http:// and https:// locations. Optional.
	HTTP *platformhttp.Client
	// Concurrency bounds parallel historical loads
	Concurrency int
	Logger      *zerolog.Logger
}

// New creates a loader
func New(opts Options) *Loader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Loader{
		http:        opts.HTTP,
		concurrency: opts.Concurrency,
		logger:      logger.With().Str("component", "loader").Logger(),
	}
}

type snapshot interface {
	Validate() error
}

func (l *Loader) LoadSettlements(ctx context.Context, path string) (*models.Settlements, error) {
	var s models.Settlements
	if err := l.load(ctx, path, &s); err != nil {
		return nil, err
	}
	l.logger.Info().Str("path", path).Uint64("epoch", s.Epoch).Int("settlements", len(s.Settlements)).Msg("Loaded settlements")
	return &s, nil
}

func (l *Loader) LoadMerkleTrees(ctx context.Context, path string) (*models.MerkleTrees, error) {
	var m models.MerkleTrees
	if err := l.load(ctx, path, &m); err != nil {
		return nil, err
	}
	l.logger.Info().
		Str("path", path).
		Uint64("epoch", m.Epoch).
		Int("merkle_trees", len(m.MerkleTrees)).
		Str("sources", m.SourcesString()).
		Msg("Loaded merkle trees")
	return &m, nil
}

// LoadHistoricalSettlements loads every file, directories expanded to their
// *.json entries. The result is ordered by epoch.
func (l *Loader) LoadHistoricalSettlements(ctx context.Context, paths []string) ([]*models.Settlements, error) {
	out, err := loadAll(ctx, l, paths, l.LoadSettlements)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, nil
}

// LoadHistoricalMerkleTrees is LoadHistoricalSettlements for merkle trees files
func (l *Loader) LoadHistoricalMerkleTrees(ctx context.Context, paths []string) ([]*models.MerkleTrees, error) {
	out, err := loadAll(ctx, l, paths, l.LoadMerkleTrees)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, nil
}

func loadAll[T any](ctx context.Context, l *Loader, paths []string, load func(context.Context, string) (T, error)) ([]T, error) {
	files, err := ExpandPaths(paths)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			v, err := load(gctx, file)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) load(ctx context.Context, path string, dst snapshot) error {
	data, err := l.read(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}
	return nil
}

func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	if IsURL(path) {
		if l.http == nil {
			return nil, fmt.Errorf("read %s: no http client configured", path)
		}
		return l.http.Get(ctx, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// IsURL reports whether path is an http(s) location
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// ExpandPaths replaces each local directory by its *.json files in name order.
// URLs and plain files are kept as given.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if IsURL(p) {
			out = append(out, p)
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", p, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}
