package gsr

import (
	"fmt"
	"strings"
	"time"
)

// Range is a named lookback window over the history.
type Range string

const (
	Range1M  Range = "1M"
	Range3M  Range = "3M"
	Range6M  Range = "6M"
	Range1Y  Range = "1Y"
	RangeMax Range = "MAX"
)

// Ranges lists the selectable windows from shortest to longest.
var Ranges = []Range{Range1M, Range3M, Range6M, Range1Y, RangeMax}

// defaultFetchSize applies to tokens outside the known set.
const defaultFetchSize = 5000

// ParseRange resolves a range token case-insensitively.
func ParseRange(raw string) (Range, error) {
	r := Range(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Ranges {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown range %q (want one of 1M, 3M, 6M, 1Y, MAX)", raw)
}

// RequiredFetchSize is the history limit requested from the source for r.
// Larger windows request more points; MAX has its own, largest cap.
func (r Range) RequiredFetchSize() int {
	switch r {
	case Range1M:
		return 3000
	case Range3M:
		return 9000
	case Range6M:
		return 18000
	case Range1Y:
		return 30000
	case RangeMax:
		return 80000
	default:
		return defaultFetchSize
	}
}

// Bounded reports whether the range filters history at all.
func (r Range) Bounded() bool {
	return r != RangeMax
}

// WindowStart returns the earliest date kept for a window ending at end.
// Month and year subtraction follow time.AddDate normalisation, so 1M before
// March 31 rolls over to early March rather than clamping to February.
func (r Range) WindowStart(end time.Time) (time.Time, bool) {
	switch r {
	case Range1M:
		return end.AddDate(0, -1, 0), true
	case Range3M:
		return end.AddDate(0, -3, 0), true
	case Range6M:
		return end.AddDate(0, -6, 0), true
	case Range1Y:
		return end.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// Filter returns the suffix of an ascending history that falls inside r.
// MAX (and any unbounded token) returns history unchanged.
func Filter(history []Observation, r Range) []Observation {
	if len(history) == 0 {
		return []Observation{}
	}
	start, bounded := r.WindowStart(history[len(history)-1].Date)
	if !bounded {
		return history
	}

	out := make([]Observation, 0, len(history))
	for _, obs := range history {
		if !obs.Date.Before(start) {
			out = append(out, obs)
		}
	}
	return out
}

// TimeUnit picks the axis granularity used when rendering r.
func (r Range) TimeUnit() TimeUnit {
	switch r {
	case Range1M:
		return UnitDay
	case Range3M:
		return UnitWeek
	case Range6M, Range1Y:
		return UnitMonth
	default:
		return UnitYear
	}
}

// TimeUnit is the tick granularity of a time axis.
type TimeUnit string

const (
	UnitDay   TimeUnit = "day"
	UnitWeek  TimeUnit = "week"
	UnitMonth TimeUnit = "month"
	UnitYear  TimeUnit = "year"
)

// Layout returns the Go time layout for tick labels of this unit.
func (u TimeUnit) Layout() string {
	switch u {
	case UnitDay, UnitWeek:
		return "Jan 2"
	case UnitMonth:
		return "Jan 2006"
	default:
		return "2006"
	}
}
