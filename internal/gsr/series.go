package gsr

import "time"

// SeriesPoint is one rendered coordinate of a metric.
type SeriesPoint struct {
	X time.Time
	Y float64
}

// BuildSeries projects observations onto one metric, silently dropping rows
// without a date or with a non-finite value.
func BuildSeries(points []Observation, metric Metric) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(points))
	for _, p := range points {
		if p.Date.IsZero() {
			continue
		}
		y := p.Value(metric)
		if !IsFinite(y) {
			continue
		}
		out = append(out, SeriesPoint{X: p.Date, Y: y})
	}
	return out
}
