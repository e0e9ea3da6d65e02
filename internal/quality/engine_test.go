package quality

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dqmetrics/internal/model"
)

var nan = math.NaN()

func mustTable(t *testing.T, cols ...model.Column) *model.Table {
	t.Helper()
	tbl, err := model.NewTable("test", cols...)
	require.NoError(t, err)
	return tbl
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestCompute_EmptyTable(t *testing.T) {
	_, err := Compute(mustTable(t), nil, nil)
	require.Error(t, err)

	var invalid *InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "test", invalid.Table)
	assert.Contains(t, err.Error(), "table is empty")
}

func TestCompute_NilTable(t *testing.T) {
	_, err := Compute(nil, nil, nil)
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestCompute_ZeroRows(t *testing.T) {
	res, err := Compute(mustTable(t,
		model.NumericColumn("n"),
		model.TextColumn("s", nil),
	), nil, nil)
	require.NoError(t, err)

	n := res.Get("n")
	require.NotNil(t, n)
	assert.Equal(t, 0, n.TotalCount)
	assert.Equal(t, 0.0, n.CompletenessScore)
	assert.Equal(t, 0.0, n.UniquenessScore)
	assert.Equal(t, 0.0, n.AdjustedCompleteness)
	assert.Equal(t, 0.0, n.AccuracyScore)
	assert.Equal(t, 100.0, n.ErrorRate)
	assert.Equal(t, 0, n.OutliersCount)

	s := res.Get("s")
	require.NotNil(t, s)
	assert.Equal(t, 0.0, s.CompletenessScore)
	assert.Equal(t, 0.0, s.UniquenessScore)
	assert.Equal(t, 60.0, s.AccuracyScore)
}

func TestCompute_FullyMissingNumeric(t *testing.T) {
	tbl := mustTable(t, model.NumericColumn("amount", nan, nan, nan, nan, nan))

	res, err := Compute(tbl, nil, AdjustmentConfig{"amount": 0.4})
	require.NoError(t, err)

	rec := res.Get("amount")
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.TotalCount)
	assert.Equal(t, 5, rec.MissingCount)
	assert.Equal(t, 0.0, rec.CompletenessScore)
	assert.Equal(t, 0.0, rec.UniquenessScore)
	assert.InDelta(t, 40.0, rec.AdjustedCompleteness, 1e-9)
	assert.Equal(t, 0, rec.OutliersCount)
}

func TestCompute_FullyMissingDefaultFactor(t *testing.T) {
	res, err := Compute(mustTable(t, model.NumericColumn("a", nan, nan, nan, nan, nan)), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.Get("a").AdjustedCompleteness, 1e-9)
}

func TestCompute_TukeyOutliers(t *testing.T) {
	res, err := Compute(mustTable(t, model.NumericColumn("v", 1, 2, 3, 4, 100)), nil, nil)
	require.NoError(t, err)

	rec := res.Get("v")
	assert.Equal(t, 1, rec.OutliersCount)
	assert.Equal(t, 100.0, rec.AccuracyScore)
	assert.Equal(t, 0.0, rec.ErrorRate)
	assert.Equal(t, 100.0, rec.UniquenessScore)
	assert.Equal(t, 100.0, rec.CompletenessScore)
	assert.Equal(t, 100.0, rec.AdjustedCompleteness)
}

func TestCompute_OutliersIgnoreMissing(t *testing.T) {
	res, err := Compute(mustTable(t, model.NumericColumn("v", 1, 2, nan, 3, 4, 100)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Get("v").OutliersCount)
}

func TestCompute_WeightedCompleteness(t *testing.T) {
	tbl := mustTable(t,
		model.NumericColumn("colA", 1, nan),
		model.NumericColumn("colB", 1, nan),
	)

	res, err := Compute(tbl, WeightConfig{"colA": 2}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, res.Get("colA").CompletenessScore, 1e-9)
	assert.InDelta(t, 100.0, res.Get("colA").WeightedCompleteness, 1e-9)
	assert.InDelta(t, 50.0, res.Get("colB").WeightedCompleteness, 1e-9)
}

func TestCompute_TextualAccuracyConstant(t *testing.T) {
	tbl := mustTable(t,
		model.TextColumn("name", []string{"acme", "acme", "beta", ""}, 3),
		model.TextColumn("junk", []string{"???", "-1", "0", "x"}),
	)

	res, err := Compute(tbl, nil, nil)
	require.NoError(t, err)

	for _, rec := range res.Records {
		assert.Equal(t, 60.0, rec.AccuracyScore, rec.ColumnName)
		assert.Equal(t, 40.0, rec.ErrorRate, rec.ColumnName)
		assert.Equal(t, 0, rec.OutliersCount, rec.ColumnName)
	}
	assert.InDelta(t, 50.0, res.Get("name").UniquenessScore, 1e-9)
	assert.InDelta(t, 100.0, res.Get("junk").UniquenessScore, 1e-9)
}

func TestCompute_NumericAccuracyCountsPositives(t *testing.T) {
	res, err := Compute(mustTable(t, model.NumericColumn("v", -1, 0, 2, 3, nan)), nil, nil)
	require.NoError(t, err)

	rec := res.Get("v")
	assert.InDelta(t, 40.0, rec.AccuracyScore, 1e-9)
	assert.InDelta(t, 60.0, rec.ErrorRate, 1e-9)
}

func TestCompute_AdjustedBelowThreshold(t *testing.T) {
	// 9 of 10 present: completeness 90, adjusted = 10 * factor.
	tbl := mustTable(t, model.NumericColumn("v", 1, 2, 3, 4, 5, 6, 7, 8, 9, nan))

	res, err := Compute(tbl, nil, AdjustmentConfig{"v": 0.5})
	require.NoError(t, err)

	rec := res.Get("v")
	assert.InDelta(t, 90.0, rec.CompletenessScore, 1e-9)
	assert.InDelta(t, 5.0, rec.AdjustedCompleteness, 1e-9)
}

func TestCompute_AdjustedClampedForLargeFactor(t *testing.T) {
	tbl := mustTable(t, model.NumericColumn("v", nan, nan, 1, 2))

	res, err := Compute(tbl, nil, AdjustmentConfig{"v": 3})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Get("v").AdjustedCompleteness)
}

func TestCompute_UniquenessNumericDuplicates(t *testing.T) {
	res, err := Compute(mustTable(t, model.NumericColumn("v", 1, 1, 2, 2)), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res.Get("v").UniquenessScore, 1e-9)
}

func TestCompute_PreservesColumnOrder(t *testing.T) {
	tbl := mustTable(t,
		model.NumericColumn("z", 1),
		model.TextColumn("a", []string{"x"}),
		model.NumericColumn("m", 2),
	)

	res, err := Compute(tbl, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, res.Columns())
	assert.Equal(t, "test", res.Records[0].Dataset)
}

func TestCompute_SharedTimestamp(t *testing.T) {
	e := New(WithClock(fixedClock))
	res, err := e.Compute(mustTable(t, model.NumericColumn("a", 1), model.NumericColumn("b", 2)), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, fixedClock(), res.ComputedAt)
	for _, rec := range res.Records {
		assert.Equal(t, fixedClock(), rec.ComputedAt)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	tbl := mustTable(t,
		model.NumericColumn("v", 1, 2, nan, 4, 100, -3),
		model.TextColumn("s", []string{"a", "b", "a", "c", "d", "e"}, 2),
	)
	w := WeightConfig{"v": 0.6}
	a := AdjustmentConfig{"v": 0.4}

	first, err := Compute(tbl, w, a)
	require.NoError(t, err)
	second, err := Compute(tbl, w, a)
	require.NoError(t, err)

	require.Len(t, second.Records, len(first.Records))
	for i := range first.Records {
		x, y := first.Records[i], second.Records[i]
		x.ComputedAt, y.ComputedAt = time.Time{}, time.Time{}
		assert.Equal(t, x, y)
	}
}

func TestCompute_Invariants(t *testing.T) {
	tbl := mustTable(t,
		model.NumericColumn("a", 1, nan, -5, 1e9, 3, 3, 0),
		model.NumericColumn("b", nan, nan, nan, nan, nan, nan, nan),
		model.TextColumn("c", []string{"x", "y", "z", "x", "", "", "q"}, 4, 5),
		model.NumericColumn("d", -1, -2, -3, -4, -5, -6, -7),
	)

	res, err := Compute(tbl, WeightConfig{"a": 0.3}, AdjustmentConfig{"b": 0.9, "c": 1})
	require.NoError(t, err)

	for _, rec := range res.Records {
		for name, v := range map[string]float64{
			"completeness": rec.CompletenessScore,
			"accuracy":     rec.AccuracyScore,
			"uniqueness":   rec.UniquenessScore,
			"error_rate":   rec.ErrorRate,
			"adjusted":     rec.AdjustedCompleteness,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s %s", rec.ColumnName, name)
			assert.LessOrEqual(t, v, 100.0, "%s %s", rec.ColumnName, name)
		}
		assert.GreaterOrEqual(t, rec.OutliersCount, 0)
		assert.LessOrEqual(t, rec.OutliersCount, rec.TotalCount)
		assert.LessOrEqual(t, rec.MissingCount, rec.TotalCount)
		assert.Equal(t, 100-rec.AccuracyScore, rec.ErrorRate)
		if rec.TotalCount > 0 {
			assert.InDelta(t, 100.0, rec.CompletenessScore+rec.MissingRatio(), 1e-9)
		}
	}
}

func TestEngine_CustomPolicy(t *testing.T) {
	e := New(WithPolicy(Policy{AdjustmentThreshold: 50, TextualAccuracy: 75, IQRMultiplier: 100}))

	tbl := mustTable(t,
		model.NumericColumn("v", 1, 2, 3, 4, 100, nan),
		model.TextColumn("s", []string{"a", "b", "c", "d", "e", "f"}),
	)
	res, err := e.Compute(tbl, nil, AdjustmentConfig{"v": 0.1})
	require.NoError(t, err)

	v := res.Get("v")
	assert.Equal(t, 0, v.OutliersCount)
	// 83.3% complete is above the 50 threshold, so adjusted equals completeness.
	assert.Equal(t, v.CompletenessScore, v.AdjustedCompleteness)
	assert.Equal(t, 75.0, res.Get("s").AccuracyScore)
	assert.Equal(t, 75.0, e.Policy().TextualAccuracy)
}

func TestValidatePolicy(t *testing.T) {
	require.NoError(t, ValidatePolicy(DefaultPolicy()))

	err := ValidatePolicy(Policy{AdjustmentThreshold: 120, TextualAccuracy: -1, IQRMultiplier: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjustment_threshold")
	assert.Contains(t, err.Error(), "textual_accuracy")
	assert.Contains(t, err.Error(), "iqr_multiplier")
}

func TestWeightAndAdjustmentDefaults(t *testing.T) {
	var w WeightConfig
	var a AdjustmentConfig
	assert.Equal(t, 1.0, w.Weight("anything"))
	assert.Equal(t, 1.0, a.Factor("anything"))

	assert.Equal(t, 0.6, WeightConfig{"c": 0.6}.Weight("c"))
	assert.Equal(t, 0.4, AdjustmentConfig{"c": 0.4}.Factor("c"))
}

func TestResult_WithRunID(t *testing.T) {
	res, err := Compute(mustTable(t, model.NumericColumn("a", 1), model.NumericColumn("b", 2)), nil, nil)
	require.NoError(t, err)

	res.WithRunID("run-1")
	for _, rec := range res.Records {
		assert.Equal(t, "run-1", rec.RunID)
	}
	assert.Nil(t, res.Get("nope"))
}
