package gsr

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout used by the data source.
const DateLayout = "2006-01-02"

// Observation is one dated record of the gold/silver ratio and both spot prices.
type Observation struct {
	Date      time.Time
	GSR       float64
	GoldUSD   float64
	SilverUSD float64
	FetchedAt time.Time
	Source    string
}

// DateString formats the observation date as YYYY-MM-DD.
func (o Observation) DateString() string {
	if o.Date.IsZero() {
		return ""
	}
	return o.Date.UTC().Format(DateLayout)
}

// Value returns the numeric field selected by metric, NaN when unknown.
func (o Observation) Value(m Metric) float64 {
	switch m {
	case MetricGSR:
		return o.GSR
	case MetricGold:
		return o.GoldUSD
	case MetricSilver:
		return o.SilverUSD
	default:
		return math.NaN()
	}
}

// ParseDate parses a calendar day into UTC midnight. RFC3339 timestamps are
// accepted and truncated to their UTC day.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Metric names one of the three charted and alertable series.
type Metric string

const (
	MetricGSR    Metric = "gsr"
	MetricGold   Metric = "gold"
	MetricSilver Metric = "silver"
)

// Metrics lists every metric in display and evaluation order.
var Metrics = []Metric{MetricGSR, MetricGold, MetricSilver}

// ParseMetric resolves a metric name, accepting the payload field names too.
func ParseMetric(raw string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gsr":
		return MetricGSR, nil
	case "gold", "gold_usd":
		return MetricGold, nil
	case "silver", "silver_usd":
		return MetricSilver, nil
	}
	return "", fmt.Errorf("unknown metric %q", raw)
}

// Field is the payload key carrying the metric.
func (m Metric) Field() string {
	switch m {
	case MetricGold:
		return "gold_usd"
	case MetricSilver:
		return "silver_usd"
	default:
		return string(m)
	}
}

// Label is the human readable name used in charts and notifications.
func (m Metric) Label() string {
	switch m {
	case MetricGSR:
		return "GSR"
	case MetricGold:
		return "Gold"
	case MetricSilver:
		return "Silver"
	default:
		return string(m)
	}
}

// Tier is the access level reported by the entitlement endpoint.
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// ParseTier normalises a tier name; ok is false for anything unrecognised.
func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierFree:
		return TierFree, true
	case TierPro:
		return TierPro, true
	case TierElite:
		return TierElite, true
	}
	return "", false
}

// Interactive reports whether pointer, click and zoom interactions are allowed.
func (t Tier) Interactive() bool {
	return t != TierFree
}
