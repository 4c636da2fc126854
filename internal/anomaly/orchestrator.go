package anomaly

import (
	"fmt"
	"math"

	"github.com/Alias1177/SanityCheck/internal/model"
)

// FieldCheck names a metric to compare against history
type FieldCheck struct {
	Name        string
	Description string
}

// CardinalityCheck flags a current epoch without any items
type CardinalityCheck struct {
	// Field is the name reported for the check, e.g. settlementsCount
	Field string
	// Label describes the items in the result details, e.g. "settlements"
	Label string
}

// EvaluateAllRequest describes a whole epoch check
type EvaluateAllRequest struct {
	Current     model.EpochMetrics
	Historical  []model.EpochMetrics
	Fields      []FieldCheck
	Thresholds  model.Thresholds
	Cardinality *CardinalityCheck
}

// EvaluateAll checks every requested field of the current epoch. Grouped
// fields are expanded to one check per category of the current epoch.
// Results keep the order of the requested fields, categories sorted by key.
func (d *Detector) EvaluateAll(req EvaluateAllRequest) ([]model.AnomalyResult, error) {
	if err := ValidateThresholds(req.Thresholds); err != nil {
		return nil, err
	}
	if err := checkHistoryLength(len(req.Historical)); err != nil {
		return nil, err
	}

	var results []model.AnomalyResult
	if req.Cardinality != nil {
		results = append(results, CheckCardinality(req.Current, *req.Cardinality))
	}

	for _, field := range req.Fields {
		current, ok := req.Current.Field(field.Name)
		if !ok {
			return nil, fmt.Errorf("epoch %d: unknown metric field %q", req.Current.Epoch, field.Name)
		}

		switch current.Kind {
		case model.ScalarMetric:
			historical, err := scalarSeries(req.Historical, field.Name)
			if err != nil {
				return nil, err
			}
			results = append(results, d.evaluate(EvaluateRequest{
				Field:            field.Name,
				Description:      field.Description,
				CurrentValue:     current.Float(),
				HistoricalValues: historical,
				Thresholds:       req.Thresholds,
			}))
		case model.GroupedMetric:
			keys := current.Keys()
			if len(keys) == 0 {
				d.logger.Debug().Str("field", field.Name).Msg("Grouped field has no categories in current epoch")
			}
			for _, key := range keys {
				results = append(results, d.evaluateGroupKey(req, field, current, key))
			}
		default:
			return nil, fmt.Errorf("field %q: unsupported metric kind %d", field.Name, current.Kind)
		}
	}

	return results, nil
}

func (d *Detector) evaluateGroupKey(req EvaluateAllRequest, field FieldCheck, current model.MetricValue, key string) model.AnomalyResult {
	name := GroupedFieldName(field.Name, key)
	value := current.Groups[key]

	if math.IsNaN(value) {
		d.logger.Debug().Str("field", name).Msg("Current value undefined, skipping")
		return model.AnomalyResult{
			Field:       name,
			Description: field.Description,
			Details: map[string]any{
				"skipped": "current value is undefined (zero mean within the category)",
			},
		}
	}

	historical := make([]float64, 0, len(req.Historical))
	for _, h := range req.Historical {
		grouped, ok := h.Field(field.Name)
		if !ok || grouped.Kind != model.GroupedMetric {
			historical = append(historical, 0)
			continue
		}
		historical = append(historical, grouped.Lookup(key))
	}

	return d.evaluate(EvaluateRequest{
		Field:            name,
		Description:      field.Description,
		CurrentValue:     value,
		HistoricalValues: historical,
		Thresholds:       req.Thresholds,
	})
}

func scalarSeries(historical []model.EpochMetrics, field string) ([]float64, error) {
	values := make([]float64, 0, len(historical))
	for _, h := range historical {
		v, ok := h.Field(field)
		if !ok || v.Kind != model.ScalarMetric {
			return nil, fmt.Errorf("historical epoch %d: missing scalar metric field %q", h.Epoch, field)
		}
		values = append(values, v.Float())
	}
	return values, nil
}

// GroupedFieldName composes the reported name of one category of a grouped field
func GroupedFieldName(field, key string) string {
	return field + "[" + key + "]"
}

// CheckCardinality flags an epoch without any items. No history is needed,
// an empty current epoch is always suspicious.
func CheckCardinality(current model.EpochMetrics, check CardinalityCheck) model.AnomalyResult {
	isEmpty := current.Cardinality == 0
	score := 0.0
	if isEmpty {
		score = 100
	}
	return model.AnomalyResult{
		Field:        check.Field,
		CurrentValue: float64(current.Cardinality),
		Score:        score,
		IsAnomaly:    isEmpty,
		Details: map[string]any{
			"message": fmt.Sprintf("%d %s in epoch %d", current.Cardinality, check.Label, current.Epoch),
		},
	}
}
