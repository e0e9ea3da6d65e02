package model

import "time"

// MetricRecord holds the quality metrics computed for one column in one run.
type MetricRecord struct {
	RunID                string     `json:"run_id" csv:"run_id"`
	Dataset              string     `json:"dataset,omitempty" csv:"dataset"`
	ColumnName           string     `json:"column_name" csv:"column_name"`
	Kind                 ColumnKind `json:"kind" csv:"kind"`
	TotalCount           int        `json:"total_count" csv:"total_count"`
	MissingCount         int        `json:"missing_count" csv:"missing_count"`
	CompletenessScore    float64    `json:"completeness_score" csv:"completeness_score"`
	WeightedCompleteness float64    `json:"weighted_completeness" csv:"weighted_completeness"`
	AccuracyScore        float64    `json:"accuracy_score" csv:"accuracy_score"`
	ErrorRate            float64    `json:"error_rate" csv:"error_rate"`
	UniquenessScore      float64    `json:"uniqueness_score" csv:"uniqueness_score"`
	OutliersCount        int        `json:"outliers_count" csv:"outliers_count"`
	AdjustedCompleteness float64    `json:"adjusted_completeness" csv:"adjusted_completeness"`
	ComputedAt           time.Time  `json:"computed_at" csv:"computed_at"`
}

// MissingRatio returns missing/total as a percentage, or 0 for an empty column.
func (m MetricRecord) MissingRatio() float64 {
	if m.TotalCount == 0 {
		return 0
	}
	return float64(m.MissingCount) / float64(m.TotalCount) * 100
}
