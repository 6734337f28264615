package alerting

import (
	"fmt"
	"math"
	"slices"

	"gsrwatch/internal/gsr"
)

// Direction names the side of a threshold that triggers an alert.
type Direction string

const (
	DirectionBelow Direction = "below"
	DirectionAbove Direction = "above"
)

// ParseDirection accepts below/above.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case DirectionBelow, DirectionAbove:
		return Direction(raw), nil
	default:
		return "", fmt.Errorf("unknown direction %q (want below|above)", raw)
	}
}

// Bounds holds the optional thresholds for one metric.
type Bounds struct {
	Below *float64 `json:"below"`
	Above *float64 `json:"above"`
}

// Empty reports whether neither bound is configured.
func (b Bounds) Empty() bool {
	return b.Below == nil && b.Above == nil
}

func (b Bounds) get(dir Direction) *float64 {
	if dir == DirectionBelow {
		return b.Below
	}
	return b.Above
}

// RuleSet is the persisted user alert configuration.
type RuleSet struct {
	Enabled      bool                  `json:"enabled"`
	SoundEnabled bool                  `json:"soundEnabled"`
	Thresholds   map[gsr.Metric]Bounds `json:"thresholds"`
}

// DefaultRuleSet returns a disabled rule set with no thresholds.
func DefaultRuleSet() RuleSet {
	thresholds := make(map[gsr.Metric]Bounds, len(gsr.Metrics))
	for _, m := range gsr.Metrics {
		thresholds[m] = Bounds{}
	}
	return RuleSet{Thresholds: thresholds}
}

// Bounds returns the thresholds configured for metric.
func (r RuleSet) Bounds(metric gsr.Metric) Bounds {
	if r.Thresholds == nil {
		return Bounds{}
	}
	return r.Thresholds[metric]
}

// SetBound replaces one threshold; a nil value clears it.
func (r *RuleSet) SetBound(metric gsr.Metric, dir Direction, value *float64) {
	if r.Thresholds == nil {
		r.Thresholds = make(map[gsr.Metric]Bounds, len(gsr.Metrics))
	}
	b := r.Thresholds[metric]
	if value != nil {
		v := *value
		value = &v
	}
	if dir == DirectionBelow {
		b.Below = value
	} else {
		b.Above = value
	}
	r.Thresholds[metric] = b
}

// Validate rejects unknown metrics and non-finite thresholds.
func (r RuleSet) Validate() error {
	for metric, b := range r.Thresholds {
		if !slices.Contains(gsr.Metrics, metric) {
			return fmt.Errorf("unknown metric %q", metric)
		}
		for _, dir := range []Direction{DirectionBelow, DirectionAbove} {
			if v := b.get(dir); v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
				return fmt.Errorf("%s %s threshold must be a finite number", metric, dir)
			}
		}
	}
	return nil
}

// normalized fills in any metric missing from a decoded rule set.
func (r RuleSet) normalized() RuleSet {
	out := DefaultRuleSet()
	out.Enabled = r.Enabled
	out.SoundEnabled = r.SoundEnabled
	for metric, b := range r.Thresholds {
		if _, ok := out.Thresholds[metric]; ok {
			out.Thresholds[metric] = b
		}
	}
	return out
}
