package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dqmetrics/internal/model"
	"github.com/sells-group/dqmetrics/internal/store"
)

var collectTime = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

// mockStore implements store.Store for testing.
type mockStore struct {
	records    []model.MetricRecord
	listErr    error
	lastFilter store.HistoryFilter
}

func (m *mockStore) ListHistory(_ context.Context, filter store.HistoryFilter) ([]model.MetricRecord, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.MetricRecord
	for _, r := range m.records {
		if !filter.Since.IsZero() && r.ComputedAt.Before(filter.Since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) AppendMetrics(_ context.Context, recs []model.MetricRecord) (int, error) {
	m.records = append(m.records, recs...)
	return len(recs), nil
}
func (m *mockStore) ListColumns(context.Context) ([]string, error) { return nil, nil }
func (m *mockStore) Migrate(context.Context) error                { return nil }
func (m *mockStore) Close() error                                 { return nil }

func rec(dataset, column string, hoursAgo int, completeness float64, outliers int) model.MetricRecord {
	return model.MetricRecord{
		RunID:             "run",
		Dataset:           dataset,
		ColumnName:        column,
		Kind:              model.KindNumeric,
		TotalCount:        100,
		CompletenessScore: completeness,
		OutliersCount:     outliers,
		ComputedAt:        collectTime.Add(-time.Duration(hoursAgo) * time.Hour),
	}
}

func newTestCollector(st store.Store) *Collector {
	c := NewCollector(st)
	c.now = func() time.Time { return collectTime }
	return c
}

func TestCollector_Collect(t *testing.T) {
	ms := &mockStore{records: []model.MetricRecord{
		rec("orders", "amount", 48, 10, 0), // outside the window
		rec("orders", "amount", 3, 100, 1),
		rec("orders", "amount", 1, 90, 4),
		rec("orders", "bank", 1, 70, 0),
		rec("accounts", "id", 2, 100, 0),
	}}

	snap, err := newTestCollector(ms).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, collectTime, snap.CollectedAt)
	assert.Equal(t, collectTime.Add(-24*time.Hour), ms.lastFilter.Since)
	require.Len(t, snap.Columns, 3)

	// Sorted by dataset then column.
	assert.Equal(t, "accounts", snap.Columns[0].Dataset)
	amount := snap.Columns[1]
	assert.Equal(t, "amount", amount.Column)
	assert.Equal(t, 2, amount.Runs)
	require.NotNil(t, amount.Previous)
	assert.InDelta(t, 100.0, amount.Previous.CompletenessScore, 1e-9)
	assert.InDelta(t, 90.0, amount.Latest.CompletenessScore, 1e-9)
	assert.InDelta(t, -10.0, amount.CompletenessDelta, 1e-9)
	assert.Equal(t, 3, amount.OutlierDelta)

	bank := snap.Columns[2]
	assert.Equal(t, 1, bank.Runs)
	assert.Nil(t, bank.Previous)
	assert.Zero(t, bank.CompletenessDelta)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := newTestCollector(&mockStore{}).Collect(context.Background(), 6)
	require.NoError(t, err)
	assert.Empty(t, snap.Columns)
	assert.Equal(t, 6, snap.LookbackHours)
}

func TestCollector_StoreError(t *testing.T) {
	ms := &mockStore{listErr: errors.New("db down")}

	_, err := newTestCollector(ms).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list history")
}
