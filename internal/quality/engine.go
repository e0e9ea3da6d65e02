package quality

import (
	"time"

	"github.com/sells-group/dqmetrics/internal/model"
)

// Engine computes per-column quality metrics. An Engine holds no mutable
// state and may be shared across goroutines.
type Engine struct {
	policy Policy
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the default policy constants.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine with the default policy and the wall clock.
func New(opts ...Option) *Engine {
	e := &Engine{
		policy: DefaultPolicy(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

var defaultEngine = New()

// Compute runs the default engine over table.
func Compute(table *model.Table, weights WeightConfig, adjustments AdjustmentConfig) (*Result, error) {
	return defaultEngine.Compute(table, weights, adjustments)
}

// Compute returns one MetricRecord per column, in table order, all stamped
// with the same computation time. The only error is an empty table.
func (e *Engine) Compute(table *model.Table, weights WeightConfig, adjustments AdjustmentConfig) (*Result, error) {
	if table == nil || len(table.Columns) == 0 {
		name := ""
		if table != nil {
			name = table.Name
		}
		return nil, &InvalidInputError{Table: name, Reason: "table is empty"}
	}

	at := e.now()
	res := &Result{
		ComputedAt: at,
		Records:    make([]model.MetricRecord, 0, len(table.Columns)),
	}
	for _, col := range table.Columns {
		rec := e.column(col, weights.Weight(col.Name), adjustments.Factor(col.Name))
		rec.Dataset = table.Name
		rec.ComputedAt = at
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (e *Engine) column(col model.Column, weight, factor float64) model.MetricRecord {
	total := col.Len()
	missing := col.MissingCount()

	rec := model.MetricRecord{
		ColumnName:   col.Name,
		Kind:         col.Kind,
		TotalCount:   total,
		MissingCount: missing,
	}

	if total > 0 {
		rec.CompletenessScore = (1 - float64(missing)/float64(total)) * 100
		rec.UniquenessScore = float64(distinct(col)) / float64(total) * 100
	}

	// Below the threshold the score is replaced by the penalised missing
	// ratio; the jump at the threshold is intentional.
	if rec.CompletenessScore < e.policy.AdjustmentThreshold {
		if total > 0 {
			rec.AdjustedCompleteness = clampPct(float64(missing) / float64(total) * 100 * factor)
		}
	} else {
		rec.AdjustedCompleteness = rec.CompletenessScore
	}

	rec.WeightedCompleteness = rec.CompletenessScore * weight

	switch col.Kind {
	case model.KindNumeric:
		if total > 0 {
			positive := 0
			for _, c := range col.Cells {
				if !c.Null && c.Num > 0 {
					positive++
				}
			}
			rec.AccuracyScore = float64(positive) / float64(total) * 100
		}
		rec.OutliersCount = CountOutliers(col.Values(), e.policy.IQRMultiplier)
	default:
		rec.AccuracyScore = e.policy.TextualAccuracy
		rec.OutliersCount = 0
	}

	rec.ErrorRate = 100 - rec.AccuracyScore
	return rec
}

// distinct counts distinct non-missing values.
func distinct(col model.Column) int {
	if col.Kind == model.KindNumeric {
		seen := make(map[float64]struct{}, len(col.Cells))
		for _, c := range col.Cells {
			if !c.Null {
				seen[c.Num] = struct{}{}
			}
		}
		return len(seen)
	}
	seen := make(map[string]struct{}, len(col.Cells))
	for _, c := range col.Cells {
		if !c.Null {
			seen[c.Str] = struct{}{}
		}
	}
	return len(seen)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
