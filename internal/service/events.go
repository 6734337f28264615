package service

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"gsrwatch/internal/alerting"
	"gsrwatch/internal/fetcher"
	"gsrwatch/internal/gsr"
)

// LoadResult is the outcome of one load, handed to listeners.
type LoadResult struct {
	Latest   *gsr.Observation
	History  []gsr.Observation
	Window   []gsr.Observation
	Deltas   map[gsr.Metric]gsr.Delta
	Range    gsr.Range
	Label    string
	Shape    fetcher.Shape
	Dropped  int
	Alerts   alerting.Result
	LoadedAt time.Time
	// Err is set when the load fell back to the no-data state.
	Err error
}

// Listener receives session events. Calls happen outside the session lock.
type Listener interface {
	DataLoaded(result LoadResult)
	PointSelected(obs gsr.Observation)
	RangeChanged(r gsr.Range)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) DataLoaded(LoadResult)         {}
func (NopListener) PointSelected(gsr.Observation) {}
func (NopListener) RangeChanged(gsr.Range)        {}

// RangeLabel describes the displayed window as "first → last (N pts)".
func RangeLabel(window []gsr.Observation) string {
	switch len(window) {
	case 0:
		return "—"
	case 1:
		d := window[0].DateString()
		return fmt.Sprintf("%s → %s (1 pt)", d, d)
	default:
		return fmt.Sprintf("%s → %s (%s pts)",
			window[0].DateString(),
			window[len(window)-1].DateString(),
			humanize.Comma(int64(len(window))))
	}
}

// UpdatedLabel renders how long ago t was, or "—" when unknown.
func UpdatedLabel(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

var _ Listener = NopListener{}
