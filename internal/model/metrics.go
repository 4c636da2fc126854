package model

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// MetricKind tells whether a metric holds one value or a value per category
type MetricKind int

const (
	ScalarMetric MetricKind = iota
	GroupedMetric
)

// MetricValue is either a scalar amount or a category -> statistic mapping.
// Scalars are kept as decimals so on-chain amounts never lose precision;
// they are converted to float64 only when handed to the statistical checks.
type MetricValue struct {
	Kind   MetricKind
	Scalar decimal.Decimal
	Groups map[string]float64
}

// Scalar wraps an exact value
func Scalar(v decimal.Decimal) MetricValue {
	return MetricValue{Kind: ScalarMetric, Scalar: v}
}

// ScalarInt wraps an integer count
func ScalarInt(v int64) MetricValue {
	return Scalar(decimal.NewFromInt(v))
}

// Grouped wraps a per-category mapping
func Grouped(groups map[string]float64) MetricValue {
	if groups == nil {
		groups = map[string]float64{}
	}
	return MetricValue{Kind: GroupedMetric, Groups: groups}
}

// Float returns the scalar as float64
func (m MetricValue) Float() float64 {
	return m.Scalar.InexactFloat64()
}

// Keys returns the grouped categories in sorted order
func (m MetricValue) Keys() []string {
	keys := make([]string, 0, len(m.Groups))
	for k := range m.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value for a category. Missing and undefined (NaN)
// values are reported as zero.
func (m MetricValue) Lookup(key string) float64 {
	v, ok := m.Groups[key]
	if !ok || math.IsNaN(v) {
		return 0
	}
	return v
}

// EpochMetrics is the flat set of metrics extracted from one epoch snapshot
type EpochMetrics struct {
	Epoch  uint64
	Fields map[string]MetricValue
	// Cardinality is the number of top level items (settlements, merkle trees)
	Cardinality int
}

// NewEpochMetrics creates an empty metrics snapshot for an epoch
func NewEpochMetrics(epoch uint64) EpochMetrics {
	return EpochMetrics{Epoch: epoch, Fields: make(map[string]MetricValue)}
}

// Field returns the metric stored under name
func (e EpochMetrics) Field(name string) (MetricValue, bool) {
	v, ok := e.Fields[name]
	return v, ok
}
