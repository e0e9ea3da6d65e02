// Package quality computes column-level data-quality metrics over in-memory tables.
package quality

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Policy constants. These values come from the source heuristics and have no
// documented derivation; product owners own them.
const (
	// DefaultAdjustmentThreshold is the completeness score below which the
	// adjustment factor is applied.
	DefaultAdjustmentThreshold = 95.0
	// DefaultTextualAccuracy is the accuracy assigned to every textual column.
	DefaultTextualAccuracy = 60.0
	// DefaultIQRMultiplier is the Tukey fence multiplier.
	DefaultIQRMultiplier = 1.5
)

// Policy holds the tunable constants of the metric formulas.
type Policy struct {
	AdjustmentThreshold float64 `json:"adjustment_threshold" yaml:"adjustment_threshold"`
	TextualAccuracy     float64 `json:"textual_accuracy" yaml:"textual_accuracy"`
	IQRMultiplier       float64 `json:"iqr_multiplier" yaml:"iqr_multiplier"`
}

// DefaultPolicy returns the policy used by Compute.
func DefaultPolicy() Policy {
	return Policy{
		AdjustmentThreshold: DefaultAdjustmentThreshold,
		TextualAccuracy:     DefaultTextualAccuracy,
		IQRMultiplier:       DefaultIQRMultiplier,
	}
}

// ValidatePolicy checks that every score the policy can produce stays in [0,100].
func ValidatePolicy(p Policy) error {
	var errs []string
	if p.AdjustmentThreshold < 0 || p.AdjustmentThreshold > 100 {
		errs = append(errs, "adjustment_threshold must be within [0,100]")
	}
	if p.TextualAccuracy < 0 || p.TextualAccuracy > 100 {
		errs = append(errs, "textual_accuracy must be within [0,100]")
	}
	if p.IQRMultiplier <= 0 {
		errs = append(errs, "iqr_multiplier must be positive")
	}
	if len(errs) > 0 {
		return eris.Errorf("quality: invalid policy: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WeightConfig maps column names to importance weights. Absent columns weigh 1.
type WeightConfig map[string]float64

// Weight returns the weight for column, defaulting to 1.
func (w WeightConfig) Weight(column string) float64 {
	if v, ok := w[column]; ok {
		return v
	}
	return 1
}

// AdjustmentConfig maps column names to completeness adjustment factors.
// Absent columns use a factor of 1.
type AdjustmentConfig map[string]float64

// Factor returns the adjustment factor for column, defaulting to 1.
func (a AdjustmentConfig) Factor(column string) float64 {
	if v, ok := a[column]; ok {
		return v
	}
	return 1
}
