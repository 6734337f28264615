package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gsrwatch/internal/alerting"
	"gsrwatch/internal/chartsync"
	"gsrwatch/internal/fetcher"
	"gsrwatch/internal/gsr"
	"gsrwatch/internal/render"
	"gsrwatch/internal/storage"
)

const scenarioPayload = `{"ok":true,
	"latest":{"date":"2024-06-10","gsr":80.5,"gold_usd":2300,"silver_usd":28.57},
	"history":[
		{"date":"2024-06-08","gsr":79.9,"gold_usd":2290,"silver_usd":28.66},
		{"date":"2024-06-09","gsr":80.1,"gold_usd":2295,"silver_usd":28.65},
		{"date":"2024-06-10","gsr":80.5,"gold_usd":2300,"silver_usd":28.57}
	]}`

type fetchCall struct {
	limit int
	force bool
}

// fakeSource answers FetchLatest from respond; calls listed in gates block
// until the gate is closed.
type fakeSource struct {
	mu      sync.Mutex
	calls   []fetchCall
	gates   map[int]chan struct{}
	entered chan int
	respond func(call int) (fetcher.Payload, error)
}

func newFakeSource(respond func(call int) (fetcher.Payload, error)) *fakeSource {
	return &fakeSource{gates: map[int]chan struct{}{}, entered: make(chan int, 16), respond: respond}
}

func (f *fakeSource) FetchLatest(ctx context.Context, limit int, force bool) (fetcher.Payload, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, fetchCall{limit: limit, force: force})
	gate := f.gates[call]
	f.mu.Unlock()

	f.entered <- call
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return fetcher.Payload{}, ctx.Err()
		}
	}
	return f.respond(call)
}

func (f *fakeSource) block(call int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[call] = gate
	return gate
}

func (f *fakeSource) callsSnapshot() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

type recordingListener struct {
	mu       sync.Mutex
	loads    []LoadResult
	selected []gsr.Observation
	ranges   []gsr.Range
}

func (r *recordingListener) DataLoaded(res LoadResult) {
	r.mu.Lock()
	r.loads = append(r.loads, res)
	r.mu.Unlock()
}

func (r *recordingListener) PointSelected(obs gsr.Observation) {
	r.mu.Lock()
	r.selected = append(r.selected, obs)
	r.mu.Unlock()
}

func (r *recordingListener) RangeChanged(rng gsr.Range) {
	r.mu.Lock()
	r.ranges = append(r.ranges, rng)
	r.mu.Unlock()
}

type captureNotifier struct {
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n alerting.Notification) error {
	c.notes = append(c.notes, n)
	return nil
}

func scenario(int) (fetcher.Payload, error) {
	return fetcher.Normalize([]byte(scenarioPayload)), nil
}

func dailyPayload(days int) fetcher.Payload {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]gsr.Observation, days)
	for i := range history {
		history[i] = gsr.Observation{Date: base.AddDate(0, 0, i), GSR: 80 + float64(i%5), GoldUSD: 2000, SilverUSD: 25}
	}
	latest := history[days-1]
	return fetcher.Payload{OK: true, Latest: &latest, History: history}
}

func newTestService(t *testing.T, src fetcher.LatestFetcher, alerts Alerter, l Listener) *Service {
	t.Helper()
	return New(Options{Range: gsr.Range1M}, src, nil, render.Factory{Width: 640, Height: 240}, alerts, l, zerolog.Nop())
}

func TestLoadEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := alerting.NewStore(storage.NewMemoryKV(), zerolog.Nop())
	below := 81.0
	rules := alerting.DefaultRuleSet()
	rules.Enabled = true
	rules.SetBound(gsr.MetricGSR, alerting.DirectionBelow, &below)
	if err := store.SaveRules(ctx, rules); err != nil {
		t.Fatal(err)
	}
	notifier := &captureNotifier{}
	engine := alerting.NewEngine(store, notifier, nil, alerting.EngineOptions{}, zerolog.Nop())
	listener := &recordingListener{}

	svc := newTestService(t, newFakeSource(scenario), engine, listener)
	res, err := svc.Load(ctx, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	d, ok := res.Deltas[gsr.MetricGSR]
	if !ok {
		t.Fatal("gsr delta missing")
	}
	if d.Absolute.String() != "0.4" {
		t.Fatalf("absolute = %s", d.Absolute)
	}
	pct, _ := d.Percent.Decimal.Float64()
	if !d.Percent.Valid || pct < 0.499 || pct > 0.5 {
		t.Fatalf("percent = %v", d.Percent)
	}
	if len(res.Alerts.Fired) != 1 || len(notifier.notes) != 1 {
		t.Fatalf("expected exactly one alert, got %+v", res.Alerts)
	}
	if notifier.notes[0].Title != "GSR below 81" {
		t.Fatalf("title = %q", notifier.notes[0].Title)
	}
	if res.Label != "2024-06-08 → 2024-06-10 (3 pts)" {
		t.Fatalf("label = %q", res.Label)
	}
	if svc.State().Charts != chartsync.Mounted {
		t.Fatal("charts should be mounted")
	}
	if len(listener.loads) != 1 || listener.loads[0].Err != nil {
		t.Fatalf("listener loads = %+v", listener.loads)
	}
}

func TestLoadRejectsOverlap(t *testing.T) {
	src := newFakeSource(scenario)
	gate := src.block(0)
	svc := newTestService(t, src, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Load(context.Background(), LoadOptions{})
		done <- err
	}()
	<-src.entered

	if _, err := svc.Load(context.Background(), LoadOptions{}); !errors.Is(err, ErrLoadInFlight) {
		t.Fatalf("expected ErrLoadInFlight, got %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first load: %v", err)
	}
	if n := len(src.callsSnapshot()); n != 1 {
		t.Fatalf("overlapping load should not fetch, calls=%d", n)
	}
}

func TestSupersededResponseIsDiscarded(t *testing.T) {
	src := newFakeSource(func(call int) (fetcher.Payload, error) {
		if call == 0 {
			return dailyPayload(10), nil
		}
		return dailyPayload(40), nil
	})
	gate := src.block(0)
	svc := newTestService(t, src, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Load(context.Background(), LoadOptions{})
		done <- err
	}()
	<-src.entered

	if _, err := svc.Load(context.Background(), LoadOptions{Supersede: true, Force: true}); err != nil {
		t.Fatalf("superseding load: %v", err)
	}
	<-src.entered
	close(gate)

	if err := <-done; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("expected ErrStaleResponse, got %v", err)
	}
	if n := len(svc.State().History); n != 40 {
		t.Fatalf("fresh state overwritten, history=%d", n)
	}
	if calls := src.callsSnapshot(); !calls[1].force {
		t.Fatal("force flag not forwarded")
	}
}

func TestLoadFailureFallsBackToNoData(t *testing.T) {
	fail := false
	src := newFakeSource(func(int) (fetcher.Payload, error) {
		if fail {
			return fetcher.Payload{}, fmt.Errorf("request latest: %w", fetcher.ErrNonJSON)
		}
		return fetcher.Normalize([]byte(scenarioPayload)), nil
	})
	listener := &recordingListener{}
	svc := newTestService(t, src, nil, listener)

	if _, err := svc.Load(context.Background(), LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	fail = true
	_, err := svc.Load(context.Background(), LoadOptions{})
	if !errors.Is(err, fetcher.ErrNonJSON) {
		t.Fatalf("expected wrapped ErrNonJSON, got %v", err)
	}
	st := svc.State()
	if st.History != nil || st.Latest != nil || st.Charts != chartsync.Idle {
		t.Fatalf("expected no-data state, got %+v", st)
	}
	if st.LastError == "" {
		t.Fatal("LastError should be set")
	}
	if last := listener.loads[len(listener.loads)-1]; last.Err == nil {
		t.Fatal("listener should receive the error")
	}
}

func TestSemanticErrorSurfacedVerbatim(t *testing.T) {
	src := newFakeSource(func(int) (fetcher.Payload, error) {
		return fetcher.Normalize([]byte(`{"ok":false,"error":"upstream quota exceeded"}`)), nil
	})
	svc := newTestService(t, src, nil, nil)

	_, err := svc.Load(context.Background(), LoadOptions{})
	if !errors.Is(err, ErrSource) {
		t.Fatalf("expected ErrSource, got %v", err)
	}
	if got := svc.State().LastError; got != "upstream quota exceeded" {
		t.Fatalf("LastError = %q", got)
	}
}

func TestSetRangeReloadsOnlyWhenMoreHistoryNeeded(t *testing.T) {
	src := newFakeSource(func(int) (fetcher.Payload, error) { return dailyPayload(500), nil })
	listener := &recordingListener{}
	svc := newTestService(t, src, nil, listener)
	ctx := context.Background()

	if _, err := svc.Load(ctx, LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetRange(ctx, gsr.Range3M); err != nil {
		t.Fatal(err)
	}
	calls := src.callsSnapshot()
	if len(calls) != 2 || calls[0].limit != 3000 || calls[1].limit != 9000 {
		t.Fatalf("unexpected fetches %+v", calls)
	}

	if err := svc.SetRange(ctx, gsr.Range1M); err != nil {
		t.Fatal(err)
	}
	if len(src.callsSnapshot()) != 2 {
		t.Fatal("narrower range should re-filter without fetching")
	}
	st := svc.State()
	if st.Range != gsr.Range1M || len(st.Window) == 0 || len(st.Window) >= 500 {
		t.Fatalf("window not re-filtered: range=%s window=%d", st.Range, len(st.Window))
	}
	if len(listener.ranges) != 2 {
		t.Fatalf("range events = %v", listener.ranges)
	}
}

func TestMaxRangeIsDownsampledForCharts(t *testing.T) {
	src := newFakeSource(func(int) (fetcher.Payload, error) { return dailyPayload(50), nil })
	svc := New(Options{Range: gsr.RangeMax, MaxPoints: 10}, src, nil, render.Factory{}, nil, nil, zerolog.Nop())

	res, err := svc.Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Window) != 50 {
		t.Fatalf("window should keep the filtered history, got %d", len(res.Window))
	}
	c, ok := svc.Charts().Chart(gsr.MetricGSR)
	if !ok {
		t.Fatal("gsr chart missing")
	}
	if n := len(c.(*render.Chart).Spec().Series); n != 10 {
		t.Fatalf("chart series should be downsampled to 10, got %d", n)
	}
}

func TestSinglePointShowsEmptyState(t *testing.T) {
	src := newFakeSource(func(int) (fetcher.Payload, error) { return dailyPayload(1), nil })
	svc := newTestService(t, src, nil, nil)

	res, err := svc.Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Label != "2023-01-01 → 2023-01-01 (1 pt)" {
		t.Fatalf("label = %q", res.Label)
	}
	if svc.State().Charts != chartsync.Idle {
		t.Fatal("charts should be torn down")
	}
}

func TestClickEmitsPointSelected(t *testing.T) {
	listener := &recordingListener{}
	svc := newTestService(t, newFakeSource(scenario), nil, listener)
	if _, err := svc.Load(context.Background(), LoadOptions{}); err != nil {
		t.Fatal(err)
	}

	svc.PointerMove(gsr.MetricGold, 0)
	obs, ok := svc.Click(gsr.MetricGold)
	if !ok || obs.DateString() != "2024-06-08" {
		t.Fatalf("click = %+v, %v", obs, ok)
	}
	if len(listener.selected) != 1 || listener.selected[0].SilverUSD != 28.66 {
		t.Fatalf("selected = %+v", listener.selected)
	}
}

func TestSetVisibleUnmountsHidden(t *testing.T) {
	svc := newTestService(t, newFakeSource(scenario), nil, nil)
	if _, err := svc.Load(context.Background(), LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	svc.SetVisible([]gsr.Metric{gsr.MetricGSR})
	if _, ok := svc.Charts().Chart(gsr.MetricGold); ok {
		t.Fatal("gold should be unmounted")
	}
	if _, ok := svc.Charts().Chart(gsr.MetricGSR); !ok {
		t.Fatal("gsr should stay mounted")
	}
}

type staticTier gsr.Tier

func (s staticTier) FetchTier(context.Context) gsr.Tier { return gsr.Tier(s) }

func TestFreeTierDisablesInteraction(t *testing.T) {
	listener := &recordingListener{}
	svc := New(Options{}, newFakeSource(scenario), staticTier(gsr.TierFree), render.Factory{}, nil, listener, zerolog.Nop())
	if tier := svc.RefreshTier(context.Background()); tier != gsr.TierFree {
		t.Fatalf("tier = %s", tier)
	}
	if _, err := svc.Load(context.Background(), LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	svc.PointerMove(gsr.MetricGSR, 100)
	if _, ok := svc.Click(gsr.MetricGSR); ok || len(listener.selected) != 0 {
		t.Fatal("free tier should not select points")
	}
}

func TestLabels(t *testing.T) {
	if RangeLabel(nil) != "—" {
		t.Fatal("empty label")
	}
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	if got := UpdatedLabel(now.Add(-3*time.Minute), now); got != "3 minutes ago" {
		t.Fatalf("updated label = %q", got)
	}
	if UpdatedLabel(time.Time{}, now) != "—" {
		t.Fatal("zero time label")
	}
}
