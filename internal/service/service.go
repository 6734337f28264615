package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gsrwatch/internal/alerting"
	"gsrwatch/internal/chartsync"
	"gsrwatch/internal/fetcher"
	"gsrwatch/internal/gsr"
	"gsrwatch/internal/metrics"
)

var (
	// ErrLoadInFlight rejects a load issued while another is running.
	ErrLoadInFlight = errors.New("load already in flight")
	// ErrStaleResponse marks a response superseded by a newer load.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrSource wraps an ok:false payload.
	ErrSource = errors.New("source error")
)

// DefaultMaxPoints caps the number of points handed to the charts.
const DefaultMaxPoints = 3000

// Alerter evaluates alert rules against a fresh observation.
type Alerter interface {
	Evaluate(ctx context.Context, latest gsr.Observation) (alerting.Result, error)
}

// LoadOptions tune a single load.
type LoadOptions struct {
	// Force asks the source to bypass its own cache.
	Force bool
	// Supersede lets the load start while another is in flight; the older
	// response is then discarded.
	Supersede bool
}

// Options configure a Service.
type Options struct {
	Range     gsr.Range
	Visible   []gsr.Metric
	MaxPoints int
	Tier      gsr.Tier
	Now       func() time.Time
}

// State is a point-in-time copy of the session.
type State struct {
	Latest       *gsr.Observation
	History      []gsr.Observation
	Window       []gsr.Observation
	Deltas       map[gsr.Metric]gsr.Delta
	Range        gsr.Range
	Visible      []gsr.Metric
	Tier         gsr.Tier
	LastError    string
	FetchedLimit int
	LoadedAt     time.Time
	Charts       chartsync.State
}

// Service is one viewing session: it owns the history buffer, the selected
// range and metrics, and the chart controller.
type Service struct {
	source      fetcher.LatestFetcher
	entitlement fetcher.EntitlementFetcher
	alerts      Alerter
	listener    Listener
	charts      *chartsync.Controller
	now         func() time.Time
	logger      zerolog.Logger

	mu           sync.Mutex
	generation   uint64
	inFlight     int
	history      []gsr.Observation
	latest       *gsr.Observation
	window       []gsr.Observation
	deltas       map[gsr.Metric]gsr.Delta
	rng          gsr.Range
	visible      []gsr.Metric
	tier         gsr.Tier
	maxPoints    int
	fetchedLimit int
	lastErr      string
	loadedAt     time.Time
}

// New constructs a session. entitlement, alerts and listener may be nil.
func New(opts Options, source fetcher.LatestFetcher, entitlement fetcher.EntitlementFetcher, factory chartsync.Factory, alerts Alerter, listener Listener, logger zerolog.Logger) *Service {
	if opts.Range == "" {
		opts.Range = gsr.Range1M
	}
	if len(opts.Visible) == 0 {
		opts.Visible = append([]gsr.Metric(nil), gsr.Metrics...)
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.Tier == "" {
		opts.Tier = gsr.TierElite
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if listener == nil {
		listener = NopListener{}
	}

	s := &Service{
		source:      source,
		entitlement: entitlement,
		alerts:      alerts,
		listener:    listener,
		now:         opts.Now,
		logger:      logger.With().Str("component", "service").Logger(),
		rng:         opts.Range,
		visible:     append([]gsr.Metric(nil), opts.Visible...),
		tier:        opts.Tier,
		maxPoints:   opts.MaxPoints,
	}
	s.charts = chartsync.NewController(factory, chartsync.Options{
		Tier:     opts.Tier,
		OnSelect: listener.PointSelected,
	}, logger)
	return s
}

// Charts exposes the chart controller for rendering.
func (s *Service) Charts() *chartsync.Controller {
	return s.charts
}

// State returns a copy of the current session state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Latest:       s.latest,
		History:      s.history,
		Window:       s.window,
		Deltas:       s.deltas,
		Range:        s.rng,
		Visible:      append([]gsr.Metric(nil), s.visible...),
		Tier:         s.tier,
		LastError:    s.lastErr,
		FetchedLimit: s.fetchedLimit,
		LoadedAt:     s.loadedAt,
		Charts:       s.charts.State(),
	}
}

// RefreshTier queries the entitlement endpoint and applies the tier.
func (s *Service) RefreshTier(ctx context.Context) gsr.Tier {
	if s.entitlement == nil {
		return s.currentTier()
	}
	tier := s.entitlement.FetchTier(ctx)
	s.mu.Lock()
	s.tier = tier
	s.mu.Unlock()
	s.charts.SetTier(tier)
	s.logger.Debug().Str("tier", string(tier)).Msg("entitlement applied")
	return tier
}

func (s *Service) currentTier() gsr.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Load fetches, normalizes and renders fresh data, then evaluates alerts.
// The session lock is not held while the request is outstanding.
func (s *Service) Load(ctx context.Context, opts LoadOptions) (LoadResult, error) {
	start := s.now()

	s.mu.Lock()
	if s.inFlight > 0 && !opts.Supersede {
		s.mu.Unlock()
		metrics.ObserveLoad(metrics.ResultBusy, 0)
		return LoadResult{}, ErrLoadInFlight
	}
	s.inFlight++
	s.generation++
	gen := s.generation
	limit := s.rng.RequiredFetchSize()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	payload, err := s.source.FetchLatest(ctx, limit, opts.Force)
	if err == nil && !payload.OK {
		msg := payload.Error
		if msg == "" {
			msg = "unknown error"
		}
		err = fmt.Errorf("%w: %s", ErrSource, msg)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		metrics.ObserveLoad(metrics.ResultStale, s.now().Sub(start))
		s.logger.Debug().Uint64("generation", gen).Msg("discarding superseded response")
		return LoadResult{}, ErrStaleResponse
	}

	if err != nil {
		result := s.failLocked(err, payload)
		s.mu.Unlock()
		metrics.ObserveLoad(metrics.ResultError, s.now().Sub(start))
		s.logger.Error().Err(err).Int("limit", limit).Msg("load failed")
		s.listener.DataLoaded(result)
		return result, fmt.Errorf("load: %w", err)
	}

	s.history = payload.History
	s.latest = payload.Latest
	s.fetchedLimit = limit
	s.lastErr = ""
	s.loadedAt = s.now()
	s.deltas = computeDeltas(payload.Latest, payload.History)
	s.refreshLocked()
	result := s.resultLocked(payload)
	s.mu.Unlock()

	metrics.ObserveLoad(metrics.ResultSuccess, s.now().Sub(start))
	metrics.SetHistoryPoints(len(payload.History))
	metrics.AddDroppedRows(payload.Dropped)
	s.logger.Info().
		Str("range", string(result.Range)).
		Int("history", len(result.History)).
		Int("displayed", len(result.Window)).
		Str("shape", payload.Shape.String()).
		Msg("data loaded")

	if payload.Latest != nil {
		for _, m := range gsr.Metrics {
			if v := payload.Latest.Value(m); gsr.IsFinite(v) {
				metrics.SetLatest(string(m), v)
			}
		}
		result.Alerts = s.evaluateAlerts(ctx, *payload.Latest)
	}

	s.listener.DataLoaded(result)
	return result, nil
}

func (s *Service) evaluateAlerts(ctx context.Context, latest gsr.Observation) alerting.Result {
	if s.alerts == nil {
		return alerting.Result{}
	}
	res, err := s.alerts.Evaluate(ctx, latest)
	if err != nil {
		s.logger.Error().Err(err).Msg("alert evaluation failed")
	}
	for _, f := range res.Fired {
		metrics.IncAlertFired(string(f.Metric), string(f.Direction))
	}
	for _, f := range res.Suppressed {
		metrics.IncAlertSuppressed(string(f.Metric), string(f.Direction))
	}
	return res
}

// failLocked switches to the no-data state.
func (s *Service) failLocked(err error, payload fetcher.Payload) LoadResult {
	s.history = nil
	s.latest = nil
	s.window = nil
	s.deltas = nil
	s.lastErr = err.Error()
	if payload.Error != "" {
		s.lastErr = payload.Error
	}
	s.charts.Teardown()
	result := s.resultLocked(payload)
	result.Err = err
	return result
}

// refreshLocked re-derives the displayed window and rebuilds the charts.
func (s *Service) refreshLocked() {
	filtered := gsr.Filter(s.history, s.rng)
	s.window = filtered
	if len(filtered) < 2 {
		s.charts.Teardown()
		return
	}
	points := gsr.Downsample(filtered, s.maxPoints)
	if err := s.charts.Rebuild(points, s.visible, s.rng.TimeUnit()); err != nil {
		s.logger.Error().Err(err).Msg("chart rebuild failed")
	}
}

func (s *Service) resultLocked(payload fetcher.Payload) LoadResult {
	return LoadResult{
		Latest:   s.latest,
		History:  s.history,
		Window:   s.window,
		Deltas:   s.deltas,
		Range:    s.rng,
		Label:    RangeLabel(s.window),
		Shape:    payload.Shape,
		Dropped:  payload.Dropped,
		LoadedAt: s.loadedAt,
	}
}

func computeDeltas(latest *gsr.Observation, history []gsr.Observation) map[gsr.Metric]gsr.Delta {
	out := make(map[gsr.Metric]gsr.Delta, len(gsr.Metrics))
	if latest == nil {
		return out
	}
	for _, m := range gsr.Metrics {
		if d, ok := gsr.ComputeDelta(*latest, history, m); ok {
			out[m] = d
		}
	}
	return out
}
