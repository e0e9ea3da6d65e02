package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dqmetrics/internal/model"
)

func newTestCSVStore(t *testing.T) *CSVStore {
	t.Helper()
	st := NewCSV(filepath.Join(t.TempDir(), "history", "metrics.csv"))
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestCSVStore_History(t *testing.T) {
	exerciseStore(t, newTestCSVStore(t))
}

func TestCSVStore_HeaderWrittenOnce(t *testing.T) {
	st := newTestCSVStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := st.AppendMetrics(ctx, []model.MetricRecord{sampleRecord("run", "a", baseTime, 100, 0)})
		require.NoError(t, err)
	}

	data, err := os.ReadFile(st.path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "run_id,dataset,column_name"))
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
}

func TestCSVStore_MissingFile(t *testing.T) {
	st := NewCSV(filepath.Join(t.TempDir(), "none.csv"))

	recs, err := st.ListHistory(context.Background(), HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, st.Close())
}

func TestCSVStore_RoundTrip(t *testing.T) {
	st := newTestCSVStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", "name", baseTime, 75, 0)
	rec.Kind = model.KindTextual
	_, err := st.AppendMetrics(ctx, []model.MetricRecord{rec})
	require.NoError(t, err)

	recs, err := st.ListHistory(ctx, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ColumnName, recs[0].ColumnName)
	assert.Equal(t, model.KindTextual, recs[0].Kind)
	assert.True(t, rec.ComputedAt.Equal(recs[0].ComputedAt))
	assert.InDelta(t, rec.UniquenessScore, recs[0].UniquenessScore, 1e-9)
}

func TestCSVStore_Canceled(t *testing.T) {
	st := newTestCSVStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.AppendMetrics(ctx, []model.MetricRecord{sampleRecord("run", "a", baseTime, 100, 0)})
	require.Error(t, err)
	_, err = st.ListColumns(ctx)
	require.Error(t, err)
}
