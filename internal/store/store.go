// Package store persists metric records as an append-only history.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/sells-group/dqmetrics/internal/model"
)

// DefaultHistoryLimit caps ListHistory when the filter does not set a limit.
const DefaultHistoryLimit = 1000

// HistoryFilter specifies criteria for listing metric history.
type HistoryFilter struct {
	Column  string    `json:"column,omitempty"`
	Dataset string    `json:"dataset,omitempty"`
	RunID   string    `json:"run_id,omitempty"`
	Since   time.Time `json:"since,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Limit   int       `json:"limit,omitempty"`
}

func (f HistoryFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultHistoryLimit
	}
	return f.Limit
}

func (f HistoryFilter) matches(r model.MetricRecord) bool {
	if f.Column != "" && r.ColumnName != f.Column {
		return false
	}
	if f.Dataset != "" && r.Dataset != f.Dataset {
		return false
	}
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if !f.Since.IsZero() && r.ComputedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.ComputedAt.After(f.Until) {
		return false
	}
	return true
}

// Store defines the persistence interface for metric history.
type Store interface {
	// AppendMetrics writes records and returns how many were stored.
	AppendMetrics(ctx context.Context, records []model.MetricRecord) (int, error)
	// ListHistory returns the newest records matching filter, oldest first.
	ListHistory(ctx context.Context, filter HistoryFilter) ([]model.MetricRecord, error)
	// ListColumns returns every column name present in the history, sorted.
	ListColumns(ctx context.Context) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// TrendPoint is one sample of a column's quality over time.
type TrendPoint struct {
	At                   time.Time `json:"at"`
	RunID                string    `json:"run_id"`
	Completeness         float64   `json:"completeness"`
	AdjustedCompleteness float64   `json:"adjusted_completeness"`
	Outliers             int       `json:"outliers"`
}

// Trend extracts the time series for column from history records, ordered by time.
func Trend(records []model.MetricRecord, column string) []TrendPoint {
	points := make([]TrendPoint, 0, len(records))
	for _, r := range records {
		if r.ColumnName != column {
			continue
		}
		points = append(points, TrendPoint{
			At:                   r.ComputedAt,
			RunID:                r.RunID,
			Completeness:         r.CompletenessScore,
			AdjustedCompleteness: r.AdjustedCompleteness,
			Outliers:             r.OutliersCount,
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}

// reverse flips records fetched newest-first into ascending order.
func reverse(records []model.MetricRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
