package chartsync

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gsrwatch/internal/gsr"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Mounted
)

func (s State) String() string {
	if s == Mounted {
		return "mounted"
	}
	return "idle"
}

// Options configure a Controller.
type Options struct {
	Tier gsr.Tier
	// OnSelect receives the observation behind a clicked point.
	OnSelect func(gsr.Observation)
}

type mountedChart struct {
	metric gsr.Metric
	chart  Chart
	times  []int64
}

// Controller is the sole owner of chart instances and keeps their hover
// state in step.
type Controller struct {
	factory  Factory
	onSelect func(gsr.Observation)
	logger   zerolog.Logger

	mu     sync.Mutex
	tier   gsr.Tier
	unit   gsr.TimeUnit
	charts []*mountedChart
	lookup map[string]gsr.Observation
}

// NewController builds an idle controller.
func NewController(factory Factory, opts Options, logger zerolog.Logger) *Controller {
	tier := opts.Tier
	if tier == "" {
		tier = gsr.TierElite
	}
	return &Controller{
		factory:  factory,
		onSelect: opts.OnSelect,
		tier:     tier,
		unit:     gsr.UnitDay,
		lookup:   map[string]gsr.Observation{},
		logger:   logger.With().Str("component", "chartsync").Logger(),
	}
}

// State reports whether any chart is mounted.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.charts) > 0 {
		return Mounted
	}
	return Idle
}

// SetTier updates entitlement gating for interactive handlers.
func (c *Controller) SetTier(tier gsr.Tier) {
	c.mu.Lock()
	c.tier = tier
	c.mu.Unlock()
}

// Chart returns the mounted chart for metric.
func (c *Controller) Chart(metric gsr.Metric) (Chart, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.find(metric); m != nil {
		return m.chart, true
	}
	return nil, false
}

// Rebuild tears down every chart and mounts the visible metrics over window.
func (c *Controller) Rebuild(window []gsr.Observation, visible []gsr.Metric, unit gsr.TimeUnit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardown()
	c.unit = unit
	for _, obs := range window {
		if !obs.Date.IsZero() {
			c.lookup[obs.DateString()] = obs
		}
	}
	for _, metric := range gsr.Metrics {
		if !containsMetric(visible, metric) {
			continue
		}
		if err := c.mount(metric, gsr.BuildSeries(window, metric)); err != nil {
			c.teardown()
			return err
		}
	}
	c.logger.Debug().Int("charts", len(c.charts)).Int("points", len(window)).Str("unit", string(unit)).Msg("charts rebuilt")
	return nil
}

func (c *Controller) mount(metric gsr.Metric, series []gsr.SeriesPoint) error {
	chart, err := c.factory.New(Spec{
		Metric: metric,
		Label:  metric.Label(),
		Series: series,
		Format: FormatFor(metric),
		Unit:   c.unit,
	})
	if err != nil {
		return fmt.Errorf("create %s chart: %w", metric, err)
	}

	times := make([]int64, len(series))
	for i, p := range series {
		times[i] = p.X.UnixMilli()
	}

	entry := &mountedChart{metric: metric, chart: chart, times: times}
	for i, m := range c.charts {
		if m.metric == metric {
			m.chart.Destroy()
			c.charts[i] = entry
			return nil
		}
	}
	c.charts = append(c.charts, entry)
	return nil
}

// PointerMove highlights the point nearest the hovered time on every chart.
func (c *Controller) PointerMove(source gsr.Metric, pixelX float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tier.Interactive() {
		return
	}
	src := c.find(source)
	if src == nil {
		return
	}
	ts := src.chart.TimeForPixel(pixelX).UnixMilli()
	for _, m := range c.charts {
		idx := NearestIndex(m.times, ts)
		if idx < 0 {
			m.chart.ClearActive()
			continue
		}
		m.chart.SetActive(idx)
	}
}

// PointerLeave clears the highlight on every chart.
func (c *Controller) PointerLeave(source gsr.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tier.Interactive() {
		return
	}
	for _, m := range c.charts {
		m.chart.ClearActive()
	}
}

// Click emits the observation under the source chart's active point.
func (c *Controller) Click(source gsr.Metric) (gsr.Observation, bool) {
	c.mu.Lock()
	if !c.tier.Interactive() {
		c.mu.Unlock()
		return gsr.Observation{}, false
	}
	obs, ok := c.activeObservation(source)
	onSelect := c.onSelect
	c.mu.Unlock()

	if ok && onSelect != nil {
		onSelect(obs)
	}
	return obs, ok
}

func (c *Controller) activeObservation(source gsr.Metric) (gsr.Observation, bool) {
	src := c.find(source)
	if src == nil {
		return gsr.Observation{}, false
	}
	idx := src.chart.ActiveIndex()
	if idx < 0 || idx >= len(src.times) {
		return gsr.Observation{}, false
	}
	key := time.UnixMilli(src.times[idx]).UTC().Format(gsr.DateLayout)
	obs, ok := c.lookup[key]
	return obs, ok
}

// Zoom narrows every chart's x axis to [from, to].
func (c *Controller) Zoom(from, to time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tier.Interactive() {
		return
	}
	if to.Before(from) {
		from, to = to, from
	}
	for _, m := range c.charts {
		m.chart.Zoom(from, to)
	}
}

// ResetZoom restores the full x axis on every chart.
func (c *Controller) ResetZoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tier.Interactive() {
		return
	}
	for _, m := range c.charts {
		m.chart.ResetZoom()
	}
}

// Teardown destroys every chart. Safe when idle.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown()
}

func (c *Controller) teardown() {
	for _, m := range c.charts {
		m.chart.Destroy()
	}
	c.charts = nil
	c.lookup = map[string]gsr.Observation{}
}

func (c *Controller) find(metric gsr.Metric) *mountedChart {
	for _, m := range c.charts {
		if m.metric == metric {
			return m
		}
	}
	return nil
}

// NearestIndex returns the index of the timestamp closest to target in the
// ascending slice times, preferring the earlier index on ties. It returns -1
// for an empty slice.
func NearestIndex(times []int64, target int64) int {
	n := len(times)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return times[i] >= target })
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	if target-times[i-1] <= times[i]-target {
		return i - 1
	}
	return i
}

func containsMetric(list []gsr.Metric, m gsr.Metric) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}
