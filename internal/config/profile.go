package config

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dqmetrics/internal/quality"
)

// Profile holds per-column importance weights and completeness adjustment
// factors. Column names are case-sensitive, which is why profiles live in
// their own YAML file: viper lower-cases map keys.
type Profile struct {
	Weights     map[string]float64 `yaml:"weights"`
	Adjustments map[string]float64 `yaml:"adjustments"`
}

// LoadProfile reads a weight profile from a YAML file. An empty path yields
// an empty profile, under which every column uses the defaults.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "config: read profile")
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML weight profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "config: parse profile")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate rejects non-positive weights and negative adjustment factors.
func (p *Profile) Validate() error {
	var errs []string
	for _, col := range sortedKeys(p.Weights) {
		if p.Weights[col] <= 0 {
			errs = append(errs, "weight for "+col+" must be positive")
		}
	}
	for _, col := range sortedKeys(p.Adjustments) {
		if p.Adjustments[col] < 0 {
			errs = append(errs, "adjustment for "+col+" must not be negative")
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("config: invalid profile: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WeightConfig returns the profile weights in engine form.
func (p *Profile) WeightConfig() quality.WeightConfig {
	return quality.WeightConfig(p.Weights)
}

// AdjustmentConfig returns the profile adjustment factors in engine form.
func (p *Profile) AdjustmentConfig() quality.AdjustmentConfig {
	return quality.AdjustmentConfig(p.Adjustments)
}

// Policy converts the metrics section into an engine policy.
func (m MetricsConfig) Policy() quality.Policy {
	return quality.Policy{
		AdjustmentThreshold: m.AdjustmentThreshold,
		TextualAccuracy:     m.TextualAccuracy,
		IQRMultiplier:       m.IQRMultiplier,
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
