package chartsync

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gsrwatch/internal/gsr"
)

// fakeChart maps pixel x to day x after its first point.
type fakeChart struct {
	spec      Spec
	active    int
	zoomed    bool
	destroyed bool
}

func (f *fakeChart) TimeForPixel(x float64) time.Time {
	if len(f.spec.Series) == 0 {
		return time.Time{}
	}
	return f.spec.Series[0].X.Add(time.Duration(x * float64(24*time.Hour)))
}
func (f *fakeChart) SetActive(i int) { f.active = i }
func (f *fakeChart) ClearActive() { f.active = -1 }
func (f *fakeChart) ActiveIndex() int { return f.active }
func (f *fakeChart) Zoom(_, _ time.Time) { f.zoomed = true }
func (f *fakeChart) ResetZoom() { f.zoomed = false }
func (f *fakeChart) Destroy() { f.destroyed = true }

type fakeFactory struct {
	charts map[gsr.Metric]*fakeChart
	all    []*fakeChart
	err    error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{charts: map[gsr.Metric]*fakeChart{}}
}

func (f *fakeFactory) New(spec Spec) (Chart, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeChart{spec: spec, active: -1}
	f.charts[spec.Metric] = c
	f.all = append(f.all, c)
	return c, nil
}

func threeDays() []gsr.Observation {
	base := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	return []gsr.Observation{
		{Date: base, GSR: 79.9, GoldUSD: 2300, SilverUSD: 28.8},
		{Date: base.AddDate(0, 0, 1), GSR: 80.1, GoldUSD: 2310, SilverUSD: 28.84},
		{Date: base.AddDate(0, 0, 2), GSR: 80.5, GoldUSD: 2320, SilverUSD: 28.82},
	}
}

func mountedController(t *testing.T, tier gsr.Tier, onSelect func(gsr.Observation)) (*Controller, *fakeFactory) {
	t.Helper()
	factory := newFakeFactory()
	ctrl := NewController(factory, Options{Tier: tier, OnSelect: onSelect}, zerolog.Nop())
	if err := ctrl.Rebuild(threeDays(), gsr.Metrics, gsr.UnitDay); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return ctrl, factory
}

func TestPointerMoveSyncsAllCharts(t *testing.T) {
	ctrl, factory := mountedController(t, gsr.TierElite, nil)
	if ctrl.State() != Mounted || len(factory.charts) != 3 {
		t.Fatalf("expected 3 mounted charts, got %d (%s)", len(factory.charts), ctrl.State())
	}

	ctrl.PointerMove(gsr.MetricGold, 1.2)
	for metric, c := range factory.charts {
		if c.active != 1 {
			t.Fatalf("%s active = %d, want 1", metric, c.active)
		}
	}

	ctrl.PointerLeave(gsr.MetricGold)
	for metric, c := range factory.charts {
		if c.active != -1 {
			t.Fatalf("%s still active after leave: %d", metric, c.active)
		}
	}
}

func TestPointerMoveClampsOutsideRange(t *testing.T) {
	ctrl, factory := mountedController(t, gsr.TierPro, nil)

	ctrl.PointerMove(gsr.MetricGSR, -5)
	if factory.charts[gsr.MetricSilver].active != 0 {
		t.Fatalf("left of range should clamp to 0")
	}
	ctrl.PointerMove(gsr.MetricGSR, 40)
	if factory.charts[gsr.MetricSilver].active != 2 {
		t.Fatalf("right of range should clamp to last")
	}
}

func TestFreeTierIgnoresInteraction(t *testing.T) {
	var selected []gsr.Observation
	ctrl, factory := mountedController(t, gsr.TierFree, func(o gsr.Observation) { selected = append(selected, o) })

	ctrl.PointerMove(gsr.MetricGSR, 1)
	ctrl.Zoom(time.Now(), time.Now())
	if _, ok := ctrl.Click(gsr.MetricGSR); ok {
		t.Fatal("click should be ignored on free tier")
	}
	for metric, c := range factory.charts {
		if c.active != -1 || c.zoomed {
			t.Fatalf("%s changed on free tier: %+v", metric, c)
		}
	}
	if len(selected) != 0 {
		t.Fatal("no selection expected")
	}
	if ctrl.State() != Mounted {
		t.Fatal("charts still render on free tier")
	}
}

func TestClickEmitsFullObservation(t *testing.T) {
	var selected []gsr.Observation
	ctrl, _ := mountedController(t, gsr.TierElite, func(o gsr.Observation) { selected = append(selected, o) })

	ctrl.PointerMove(gsr.MetricSilver, 2)
	obs, ok := ctrl.Click(gsr.MetricSilver)
	if !ok {
		t.Fatal("expected a selection")
	}
	if obs.DateString() != "2024-06-10" || obs.GSR != 80.5 || obs.GoldUSD != 2320 {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if len(selected) != 1 {
		t.Fatalf("listener called %d times", len(selected))
	}

	ctrl.PointerLeave(gsr.MetricSilver)
	if _, ok := ctrl.Click(gsr.MetricSilver); ok {
		t.Fatal("click without an active point should not select")
	}
}

func TestClickResolvesOnEveryRebuiltChart(t *testing.T) {
	ctrl, _ := mountedController(t, gsr.TierElite, nil)

	next := threeDays()
	for i := range next {
		next[i].Date = next[i].Date.AddDate(0, 1, 0)
	}
	next[1].GoldUSD = math.NaN()
	if err := ctrl.Rebuild(next, gsr.Metrics, gsr.UnitDay); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	for _, metric := range gsr.Metrics {
		ctrl.PointerMove(metric, 2)
		obs, ok := ctrl.Click(metric)
		if !ok {
			t.Fatalf("%s click did not resolve an observation", metric)
		}
		if obs.DateString() != "2024-07-10" {
			t.Fatalf("%s click resolved %s, want 2024-07-10", metric, obs.DateString())
		}
	}
}

func TestRebuildSkipsHiddenMetricsAndDestroysOld(t *testing.T) {
	ctrl, factory := mountedController(t, gsr.TierElite, nil)
	first := append([]*fakeChart(nil), factory.all...)

	if err := ctrl.Rebuild(threeDays(), []gsr.Metric{gsr.MetricSilver}, gsr.UnitWeek); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	for _, c := range first {
		if !c.destroyed {
			t.Fatal("previous charts should be destroyed")
		}
	}
	if _, ok := ctrl.Chart(gsr.MetricGSR); ok {
		t.Fatal("hidden metric should not be mounted")
	}
	silver, ok := ctrl.Chart(gsr.MetricSilver)
	if !ok || silver.(*fakeChart).spec.Unit != gsr.UnitWeek {
		t.Fatal("silver chart should be mounted with the new unit")
	}
}

func TestZoomAndReset(t *testing.T) {
	ctrl, factory := mountedController(t, gsr.TierElite, nil)
	ctrl.Zoom(time.Now(), time.Now().Add(-time.Hour))
	for _, c := range factory.charts {
		if !c.zoomed {
			t.Fatal("zoom not applied")
		}
	}
	ctrl.ResetZoom()
	for _, c := range factory.charts {
		if c.zoomed {
			t.Fatal("zoom not reset")
		}
	}
}

func TestTeardownIdleIsSafe(t *testing.T) {
	ctrl := NewController(newFakeFactory(), Options{}, zerolog.Nop())
	ctrl.Teardown()
	ctrl.PointerLeave(gsr.MetricGSR)
	if ctrl.State() != Idle {
		t.Fatal("expected idle")
	}
}

func TestRebuildFactoryErrorLeavesIdle(t *testing.T) {
	factory := newFakeFactory()
	factory.err = errors.New("no canvas")
	ctrl := NewController(factory, Options{}, zerolog.Nop())
	if err := ctrl.Rebuild(threeDays(), gsr.Metrics, gsr.UnitDay); err == nil {
		t.Fatal("expected factory error")
	}
	if ctrl.State() != Idle {
		t.Fatal("failed rebuild should leave controller idle")
	}
}

func TestNearestIndex(t *testing.T) {
	times := []int64{0, 10, 20}
	cases := []struct {
		target int64
		want   int
	}{
		{-3, 0}, {4, 0}, {5, 0}, {6, 1}, {15, 1}, {16, 2}, {99, 2},
	}
	for _, tc := range cases {
		if got := NearestIndex(times, tc.target); got != tc.want {
			t.Fatalf("NearestIndex(%d) = %d, want %d", tc.target, got, tc.want)
		}
	}
	if NearestIndex(nil, 1) != -1 {
		t.Fatal("empty slice should yield -1")
	}
}

func TestFormatFor(t *testing.T) {
	if got := FormatFor(gsr.MetricGold)(2345.5); got != "$2,345.50" {
		t.Fatalf("gold format = %q", got)
	}
	if got := FormatFor(gsr.MetricSilver)(28); got != "$28.00" {
		t.Fatalf("silver format = %q", got)
	}
	if got := FormatFor(gsr.MetricGSR)(80.456); got != "80.46" {
		t.Fatalf("gsr format = %q", got)
	}
}
