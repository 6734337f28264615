package alerting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gsrwatch/internal/gsr"
)

// DefaultCooldown is the minimum wall-clock gap between two firings of one rule key.
const DefaultCooldown = 24 * time.Hour

// Firing describes one breached threshold.
type Firing struct {
	Key       string
	Metric    gsr.Metric
	Direction Direction
	Threshold float64
	Observed  float64
	At        time.Time
}

// Result summarises one evaluation.
type Result struct {
	Fired      []Firing
	Suppressed []Firing
	Notified   *Notification
}

// EngineOptions tune the engine.
type EngineOptions struct {
	Cooldown time.Duration
	Now      func() time.Time
}

// Engine evaluates the saved rule set against fresh observations.
type Engine struct {
	store    *Store
	notifier Notifier
	tone     Tone
	cooldown time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewEngine constructs an Engine. notifier and tone may be nil.
func NewEngine(store *Store, notifier Notifier, tone Tone, opts EngineOptions, logger zerolog.Logger) *Engine {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		tone:     tone,
		cooldown: opts.Cooldown,
		now:      opts.Now,
		logger:   logger.With().Str("component", "alert_engine").Logger(),
	}
}

// Rules returns the currently saved rule set.
func (e *Engine) Rules(ctx context.Context) RuleSet {
	return e.store.LoadRules(ctx)
}

// SaveRules persists an explicit user edit.
func (e *Engine) SaveRules(ctx context.Context, rules RuleSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SaveRules(ctx, rules); err != nil {
		return fmt.Errorf("save alert rules: %w", err)
	}
	e.logger.Info().Bool("enabled", rules.Enabled).Msg("alert rules saved")
	return nil
}

// Evaluate checks latest against every configured bound. Eligible firings are
// written to the fire log before the first one is dispatched.
func (e *Engine) Evaluate(ctx context.Context, latest gsr.Observation) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result Result
	rules := e.store.LoadRules(ctx)
	if !rules.Enabled {
		return result, nil
	}

	now := e.now()
	fired := e.store.LoadFireLog(ctx)
	next := fired.clone()

	for _, metric := range gsr.Metrics {
		value := latest.Value(metric)
		if !gsr.IsFinite(value) {
			continue
		}
		bounds := rules.Bounds(metric)
		for _, dir := range []Direction{DirectionBelow, DirectionAbove} {
			threshold := bounds.get(dir)
			if threshold == nil || !breached(dir, value, *threshold) {
				continue
			}
			firing := Firing{
				Key:       RuleKey(metric, dir, *threshold),
				Metric:    metric,
				Direction: dir,
				Threshold: *threshold,
				Observed:  value,
				At:        now,
			}
			if !fired.Eligible(firing.Key, now, e.cooldown) {
				result.Suppressed = append(result.Suppressed, firing)
				continue
			}
			next[firing.Key] = now
			result.Fired = append(result.Fired, firing)
		}
	}

	if len(result.Fired) == 0 {
		if len(result.Suppressed) > 0 {
			e.logger.Debug().Int("suppressed", len(result.Suppressed)).Msg("alerts suppressed by cooldown")
		}
		return result, nil
	}

	if err := e.store.SaveFireLog(ctx, next); err != nil {
		e.logger.Warn().Err(err).Msg("fire log not persisted")
	}

	note := notificationFor(result.Fired[0], latest)
	result.Notified = &note
	e.logger.Info().
		Int("fired", len(result.Fired)).
		Int("suppressed", len(result.Suppressed)).
		Str("title", note.Title).
		Msg("alert fired")

	if err := e.dispatch(ctx, note, rules.SoundEnabled); err != nil {
		return result, err
	}
	return result, nil
}

// Test sends a sample notification without touching the fire log.
func (e *Engine) Test(ctx context.Context) (Notification, error) {
	rules := e.store.LoadRules(ctx)
	note := Notification{
		Title:   "GSR alerts test",
		Message: "This is a test notification. Threshold alerts will look like this.",
		FiredAt: e.now(),
	}
	return note, e.dispatch(ctx, note, rules.SoundEnabled)
}

func (e *Engine) dispatch(ctx context.Context, note Notification, sound bool) error {
	var notifyErr, toneErr error
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, note); err != nil {
			notifyErr = fmt.Errorf("notify: %w", err)
		}
	}
	if sound && e.tone != nil {
		if err := e.tone.Play(ctx); err != nil {
			toneErr = fmt.Errorf("play tone: %w", err)
		}
	}
	return errors.Join(notifyErr, toneErr)
}

func breached(dir Direction, value, threshold float64) bool {
	if dir == DirectionBelow {
		return value < threshold
	}
	return value > threshold
}

func notificationFor(f Firing, latest gsr.Observation) Notification {
	label := f.Metric.Label()
	threshold := strconv.FormatFloat(f.Threshold, 'f', -1, 64)
	observed := decimal.NewFromFloat(f.Observed).Round(4).String()
	return Notification{
		Title:     fmt.Sprintf("%s %s %s", label, f.Direction, threshold),
		Message:   fmt.Sprintf("%s is %s, %s your threshold of %s.", label, observed, f.Direction, threshold),
		Metric:    string(f.Metric),
		Direction: f.Direction,
		Observed:  f.Observed,
		Threshold: f.Threshold,
		Date:      latest.Date,
		FiredAt:   f.At,
	}
}
