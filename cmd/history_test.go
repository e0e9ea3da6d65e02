//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dqmetrics/internal/store"
)

func TestFormatTrend(t *testing.T) {
	at := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	points := []store.TrendPoint{
		{At: at, RunID: "abcdef12-0000-0000-0000-000000000000", Completeness: 100, AdjustedCompleteness: 100, Outliers: 0},
		{At: at.Add(time.Hour), RunID: "short", Completeness: 87.5, AdjustedCompleteness: 12.5, Outliers: 3},
	}

	var buf bytes.Buffer
	formatTrend(&buf, points)

	out := buf.String()
	assert.Contains(t, out, "COMPUTED")
	assert.Contains(t, out, "2026-06-01 09:30")
	assert.Contains(t, out, "abcdef12")
	assert.NotContains(t, out, "abcdef12-0000")
	assert.Contains(t, out, "87.50")
	assert.Contains(t, out, "short")
}

func newFilterCmd() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().String("column", "", "")
	c.Flags().String("dataset", "", "")
	c.Flags().String("run", "", "")
	c.Flags().Duration("since", 0, "")
	c.Flags().Int("limit", 0, "")
	return c
}

func TestHistoryFilterFromFlags(t *testing.T) {
	c := newFilterCmd()
	require.NoError(t, c.Flags().Parse([]string{"--column", "amount", "--dataset", "orders", "--run", "r1", "--since", "2h", "--limit", "7"}))

	before := time.Now().UTC()
	f, err := historyFilterFromFlags(c)
	require.NoError(t, err)

	assert.Equal(t, "amount", f.Column)
	assert.Equal(t, "orders", f.Dataset)
	assert.Equal(t, "r1", f.RunID)
	assert.Equal(t, 7, f.Limit)
	assert.WithinDuration(t, before.Add(-2*time.Hour), f.Since, time.Minute)
}

func TestHistoryFilterFromFlags_NoSince(t *testing.T) {
	f, err := historyFilterFromFlags(newFilterCmd())
	require.NoError(t, err)
	assert.True(t, f.Since.IsZero())
}

func TestHistoryFilterFromFlags_NegativeSince(t *testing.T) {
	c := newFilterCmd()
	require.NoError(t, c.Flags().Parse([]string{"--since=-1h"}))

	_, err := historyFilterFromFlags(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--since must be positive")
}
