package chartsync

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"gsrwatch/internal/gsr"
)

// Format renders a y value for axis ticks and tooltips.
type Format func(float64) string

// Spec parameterises one chart instance.
type Spec struct {
	Metric gsr.Metric
	Label  string
	Series []gsr.SeriesPoint
	Format Format
	Unit   gsr.TimeUnit
}

// Chart is one independently rendered time series.
type Chart interface {
	// TimeForPixel maps a horizontal pixel offset to a timestamp on the x axis.
	TimeForPixel(x float64) time.Time
	SetActive(index int)
	ClearActive()
	// ActiveIndex returns -1 when nothing is highlighted.
	ActiveIndex() int
	Zoom(from, to time.Time)
	ResetZoom()
	Destroy()
}

// Factory creates charts from a Spec.
type Factory interface {
	New(spec Spec) (Chart, error)
}

// FormatFor returns the value formatter used for metric.
func FormatFor(metric gsr.Metric) Format {
	switch metric {
	case gsr.MetricGold, gsr.MetricSilver:
		return func(v float64) string { return "$" + humanize.FormatFloat("#,###.##", v) }
	default:
		return func(v float64) string { return fmt.Sprintf("%.2f", v) }
	}
}
