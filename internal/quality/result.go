package quality

import (
	"time"

	"github.com/sells-group/dqmetrics/internal/model"
)

// Result is the ordered set of metric records from one computation.
type Result struct {
	ComputedAt time.Time            `json:"computed_at"`
	Records    []model.MetricRecord `json:"records"`
}

// Get returns the record for column, or nil if absent.
func (r *Result) Get(column string) *model.MetricRecord {
	for i := range r.Records {
		if r.Records[i].ColumnName == column {
			return &r.Records[i]
		}
	}
	return nil
}

// Columns returns column names in table order.
func (r *Result) Columns() []string {
	names := make([]string, len(r.Records))
	for i, rec := range r.Records {
		names[i] = rec.ColumnName
	}
	return names
}

// WithRunID stamps every record with runID.
func (r *Result) WithRunID(runID string) *Result {
	for i := range r.Records {
		r.Records[i].RunID = runID
	}
	return r
}
