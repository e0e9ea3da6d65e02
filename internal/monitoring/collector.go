// Package monitoring watches metric history for quality regressions and raises alerts.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dqmetrics/internal/model"
	"github.com/sells-group/dqmetrics/internal/store"
)

// collectLimit bounds how many history rows one collection reads.
const collectLimit = 100000

// ColumnTrend summarizes one column's recent history.
type ColumnTrend struct {
	Dataset           string              `json:"dataset"`
	Column            string              `json:"column"`
	Runs              int                 `json:"runs"`
	Latest            model.MetricRecord  `json:"latest"`
	Previous          *model.MetricRecord `json:"previous,omitempty"`
	CompletenessDelta float64             `json:"completeness_delta"`
	OutlierDelta      int                 `json:"outlier_delta"`
}

// Snapshot holds a point-in-time view of column quality.
type Snapshot struct {
	Columns       []ColumnTrend `json:"columns"`
	LookbackHours int           `json:"lookback_hours"`
	CollectedAt   time.Time     `json:"collected_at"`
}

// Collector gathers column trends from the metrics history.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new trend collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of every column seen over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	records, err := c.store.ListHistory(ctx, store.HistoryFilter{
		Since: cutoff,
		Limit: collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list history")
	}

	type key struct{ dataset, column string }
	byColumn := make(map[key][]model.MetricRecord)
	var order []key
	for _, r := range records {
		k := key{r.Dataset, r.ColumnName}
		if _, ok := byColumn[k]; !ok {
			order = append(order, k)
		}
		byColumn[k] = append(byColumn[k], r)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].dataset != order[j].dataset {
			return order[i].dataset < order[j].dataset
		}
		return order[i].column < order[j].column
	})

	for _, k := range order {
		// History is ascending, so the last entries are the newest.
		recs := byColumn[k]
		trend := ColumnTrend{
			Dataset: k.dataset,
			Column:  k.column,
			Runs:    len(recs),
			Latest:  recs[len(recs)-1],
		}
		if len(recs) > 1 {
			prev := recs[len(recs)-2]
			trend.Previous = &prev
			trend.CompletenessDelta = trend.Latest.CompletenessScore - prev.CompletenessScore
			trend.OutlierDelta = trend.Latest.OutliersCount - prev.OutliersCount
		}
		snap.Columns = append(snap.Columns, trend)
	}

	return snap, nil
}
