package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"gsrwatch/internal/chartsync"
	"gsrwatch/internal/gsr"
)

var (
	// ErrTooFewPoints is returned when a chart has nothing to draw a line through.
	ErrTooFewPoints = errors.New("chart needs at least two points")
	// ErrDestroyed is returned when rendering a torn down chart.
	ErrDestroyed = errors.New("chart destroyed")
)

// Default canvas size.
const (
	DefaultWidth  = 1280
	DefaultHeight = 400
)

// Plot padding in pixels. TimeForPixel maps over the area inside it.
var padding = chart.Box{Top: 30, Left: 20, Right: 70, Bottom: 30}

// Chart is a go-chart line chart of one metric with crosshair and zoom state.
type Chart struct {
	spec   chartsync.Spec
	width  int
	height int

	mu        sync.Mutex
	active    int
	zoomFrom  time.Time
	zoomTo    time.Time
	destroyed bool
}

// NewChart builds a chart for spec.
func NewChart(spec chartsync.Spec, width, height int) *Chart {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if spec.Format == nil {
		spec.Format = chartsync.FormatFor(spec.Metric)
	}
	if spec.Label == "" {
		spec.Label = spec.Metric.Label()
	}
	return &Chart{spec: spec, width: width, height: height, active: -1}
}

// Spec returns the spec the chart was built from.
func (c *Chart) Spec() chartsync.Spec {
	return c.spec
}

// TimeForPixel linearly maps x across the plot area onto the visible time span.
func (c *Chart) TimeForPixel(x float64) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	from, to, ok := c.visibleSpan()
	if !ok {
		return time.Time{}
	}
	left := float64(padding.Left)
	right := float64(c.width - padding.Right)
	if right <= left {
		return from
	}
	ratio := (x - left) / (right - left)
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	span := to.Sub(from)
	return from.Add(time.Duration(ratio * float64(span)))
}

// SetActive highlights the point at index.
func (c *Chart) SetActive(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.spec.Series) {
		c.active = -1
		return
	}
	c.active = index
}

// ClearActive removes the highlight.
func (c *Chart) ClearActive() {
	c.mu.Lock()
	c.active = -1
	c.mu.Unlock()
}

// ActiveIndex returns the highlighted index or -1.
func (c *Chart) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Zoom limits the x axis to [from, to].
func (c *Chart) Zoom(from, to time.Time) {
	c.mu.Lock()
	c.zoomFrom, c.zoomTo = from, to
	c.mu.Unlock()
}

// ResetZoom restores the full data span.
func (c *Chart) ResetZoom() {
	c.mu.Lock()
	c.zoomFrom, c.zoomTo = time.Time{}, time.Time{}
	c.mu.Unlock()
}

// Destroy releases the chart; further renders fail.
func (c *Chart) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
}

// Render draws the chart as PNG into w.
func (c *Chart) Render(w io.Writer) error {
	c.mu.Lock()
	graph, err := c.graph()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return graph.Render(chart.PNG, w)
}

// WritePNG renders into path, creating parent directories.
func (c *Chart) WritePNG(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Render(file); err != nil {
		file.Close()
		return fmt.Errorf("render %s chart: %w", c.spec.Metric, err)
	}
	return file.Close()
}

func (c *Chart) zoomed() bool {
	return !c.zoomFrom.IsZero() && c.zoomTo.After(c.zoomFrom)
}

func (c *Chart) visibleSpan() (time.Time, time.Time, bool) {
	if c.zoomed() {
		return c.zoomFrom, c.zoomTo, true
	}
	n := len(c.spec.Series)
	if n == 0 {
		return time.Time{}, time.Time{}, false
	}
	return c.spec.Series[0].X, c.spec.Series[n-1].X, true
}

func (c *Chart) graph() (*chart.Chart, error) {
	if c.destroyed {
		return nil, ErrDestroyed
	}
	points := c.spec.Series
	if c.zoomed() {
		if visible := pointsWithin(points, c.zoomFrom, c.zoomTo); len(visible) >= 2 {
			points = visible
		}
	}
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}

	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	minY, maxY := points[0].Y, points[0].Y
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}

	format := c.spec.Format
	layout := c.spec.Unit.Layout()
	series := []chart.Series{
		chart.TimeSeries{
			Name:    c.spec.Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("d4a72c"),
				StrokeWidth: 2,
			},
		},
	}

	if c.active >= 0 && c.active < len(c.spec.Series) {
		p := c.spec.Series[c.active]
		series = append(series,
			chart.TimeSeries{
				Name:    "crosshair",
				XValues: []time.Time{p.X, p.X},
				YValues: []float64{minY, maxY},
				Style: chart.Style{
					StrokeColor:     drawing.ColorFromHex("888888"),
					StrokeWidth:     1,
					StrokeDashArray: []float64{4, 4},
				},
			},
			chart.AnnotationSeries{
				Annotations: []chart.Value2{{
					XValue: timeToFloat(p.X),
					YValue: p.Y,
					Label:  p.X.UTC().Format(gsr.DateLayout) + "  " + format(p.Y),
				}},
			},
		)
	}

	graph := &chart.Chart{
		Title:  c.spec.Label,
		Width:  c.width,
		Height: c.height,
		Background: chart.Style{
			Padding: padding,
		},
		XAxis: chart.XAxis{
			ValueFormatter: timeFormatter(layout),
		},
		YAxis: chart.YAxis{
			Name: c.spec.Label,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return format(f)
				}
				return ""
			},
		},
		Series: series,
	}
	if minY == maxY {
		graph.YAxis.Range = &chart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
	}
	if c.zoomed() {
		graph.XAxis.Range = &chart.ContinuousRange{
			Min: timeToFloat(c.zoomFrom),
			Max: timeToFloat(c.zoomTo),
		}
	}
	return graph, nil
}

func pointsWithin(points []gsr.SeriesPoint, from, to time.Time) []gsr.SeriesPoint {
	out := make([]gsr.SeriesPoint, 0, len(points))
	for _, p := range points {
		if p.X.Before(from) || p.X.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// go-chart stores time values as unix nanoseconds.
func timeToFloat(t time.Time) float64 {
	return float64(t.UnixNano())
}

func timeFormatter(layout string) chart.ValueFormatter {
	return func(v interface{}) string {
		switch typed := v.(type) {
		case time.Time:
			return typed.UTC().Format(layout)
		case float64:
			return time.Unix(0, int64(typed)).UTC().Format(layout)
		case int64:
			return time.Unix(0, typed).UTC().Format(layout)
		}
		return ""
	}
}

var _ chartsync.Chart = (*Chart)(nil)
