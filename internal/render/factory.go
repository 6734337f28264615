package render

import (
	"path/filepath"

	"gsrwatch/internal/chartsync"
	"gsrwatch/internal/gsr"
)

// Factory creates go-chart charts of a fixed canvas size.
type Factory struct {
	Width  int
	Height int
}

// New implements chartsync.Factory.
func (f Factory) New(spec chartsync.Spec) (chartsync.Chart, error) {
	return NewChart(spec, f.Width, f.Height), nil
}

// PNGWriter is implemented by charts that can be saved to disk.
type PNGWriter interface {
	WritePNG(path string) error
}

// ChartSource yields the mounted chart of a metric.
type ChartSource interface {
	Chart(metric gsr.Metric) (chartsync.Chart, bool)
}

// WriteAll saves each mounted chart as <dir>/<metric>.png and returns the paths written.
func WriteAll(src ChartSource, metrics []gsr.Metric, dir string) ([]string, error) {
	var written []string
	for _, metric := range metrics {
		c, ok := src.Chart(metric)
		if !ok {
			continue
		}
		w, ok := c.(PNGWriter)
		if !ok {
			continue
		}
		path := filepath.Join(dir, string(metric)+".png")
		if err := w.WritePNG(path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

var _ chartsync.Factory = Factory{}
