package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gsrwatch/internal/alerting"
	"gsrwatch/internal/config"
	"gsrwatch/internal/fetcher"
	"gsrwatch/internal/gsr"
	"gsrwatch/internal/metrics"
	"gsrwatch/internal/render"
	"gsrwatch/internal/scheduler"
	"gsrwatch/internal/service"
	"gsrwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newLatest() *fetcher.Latest {
	return fetcher.NewLatest(fetcher.LatestOptions{
		URL:       a.Config.Source.LatestURL,
		Timeout:   a.Config.Source.RequestTimeout,
		UserAgent: a.Config.Source.UserAgent,
	}, a.Logger)
}

func (a *App) newEntitlement() *fetcher.Entitlement {
	return fetcher.NewEntitlement(fetcher.EntitlementOptions{
		URL:      a.Config.Source.EntitlementURL,
		Timeout:  a.Config.Source.RequestTimeout,
		CacheTTL: a.Config.Source.TierCacheTTL,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	notifiers := alerting.MultiNotifier{alerting.NewLogNotifier(a.Logger)}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, a.Config.Alerting.NotifyTimeout, a.Logger))
	}
	return notifiers
}

func (a *App) openKV(ctx context.Context) (storage.KV, func(), error) {
	kv, closer, err := storage.Open(ctx, a.Config.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open alert storage: %w", err)
	}
	return kv, closer, nil
}

func (a *App) newEngine(kv storage.KV) *alerting.Engine {
	store := alerting.NewStore(kv, a.Logger)
	return alerting.NewEngine(store, a.newNotifier(), alerting.BellTone{Out: os.Stderr}, alerting.EngineOptions{
		Cooldown: a.Config.Alerting.Cooldown,
	}, a.Logger)
}

func (a *App) viewMetrics() ([]gsr.Metric, error) {
	out := make([]gsr.Metric, 0, len(a.Config.View.Metrics))
	for _, raw := range a.Config.View.Metrics {
		m, err := gsr.ParseMetric(raw)
		if err != nil {
			return nil, fmt.Errorf("view.metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// newSession builds a viewing session over the configured source.
func (a *App) newSession(rangeToken string, alerts service.Alerter, listener service.Listener) (*service.Service, error) {
	if rangeToken == "" {
		rangeToken = a.Config.View.Range
	}
	rng, err := gsr.ParseRange(rangeToken)
	if err != nil {
		return nil, err
	}
	visible, err := a.viewMetrics()
	if err != nil {
		return nil, err
	}
	var entitlement fetcher.EntitlementFetcher
	if a.Config.Source.EntitlementURL != "" {
		entitlement = a.newEntitlement()
	}
	factory := render.Factory{Width: a.Config.View.Width, Height: a.Config.View.Height}
	return service.New(service.Options{
		Range:     rng,
		Visible:   visible,
		MaxPoints: a.Config.View.MaxPoints,
	}, a.newLatest(), entitlement, factory, alerts, listener, a.Logger), nil
}

// Run executes the long-running refresh loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, closeKV, err := a.openKV(ctx)
	if err != nil {
		return err
	}
	defer closeKV()

	metrics.Init()

	listener := newConsoleListener(a.Logger, a.Config.View.OutputDir)
	svc, err := a.newSession("", a.newEngine(kv), listener)
	if err != nil {
		return err
	}
	listener.attach(svc)
	svc.RefreshTier(ctx)

	if addr := a.Config.Metrics.Listen; addr != "" {
		router := metrics.NewRouter(func() map[string]any { return healthOf(svc) }, a.Logger)
		go func() {
			if err := metrics.Serve(ctx, addr, router, a.Logger); err != nil {
				a.Logger.Error().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{StartupDelay: a.Config.Scheduler.StartupDelay}, a.Logger)
	if err := sched.Add(a.refreshJob(svc)); err != nil {
		return err
	}
	if err := sched.Add(scheduler.Job{
		Name:     "label",
		Interval: a.Config.Scheduler.LabelInterval,
		Tick: func(context.Context, time.Time) error {
			listener.tickLabel()
			return nil
		},
	}); err != nil {
		return err
	}

	go a.forceOnHangup(ctx, svc)

	a.Logger.Info().
		Str("source", a.Config.Source.LatestURL).
		Dur("refresh", a.Config.Scheduler.RefreshInterval).
		Msg("starting gsr watcher")
	err = sched.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("gsr watcher stopped")
	return nil
}

// refreshJob polls the source; overlapping and superseded loads are not failures.
func (a *App) refreshJob(svc *service.Service) scheduler.Job {
	return scheduler.Job{
		Name:         "refresh",
		Interval:     a.Config.Scheduler.RefreshInterval,
		AlignToStart: a.Config.Scheduler.Align,
		Immediate:    true,
		Tick: func(ctx context.Context, _ time.Time) error {
			_, err := svc.Load(ctx, service.LoadOptions{})
			if errors.Is(err, service.ErrLoadInFlight) || errors.Is(err, service.ErrStaleResponse) {
				return nil
			}
			return err
		},
	}
}

// forceOnHangup turns SIGHUP into a forced, superseding refresh.
func (a *App) forceOnHangup(ctx context.Context, svc *service.Service) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			a.Logger.Info().Msg("SIGHUP received, forcing refresh")
			svc.RefreshTier(ctx)
			if _, err := svc.Load(ctx, service.LoadOptions{Force: true, Supersede: true}); err != nil && !errors.Is(err, service.ErrStaleResponse) {
				a.Logger.Warn().Err(err).Msg("forced refresh failed")
			}
		}
	}
}

func healthOf(svc *service.Service) map[string]any {
	st := svc.State()
	body := map[string]any{
		"range":          string(st.Range),
		"tier":           string(st.Tier),
		"history_points": len(st.History),
		"charts":         st.Charts.String(),
		"updated":        svc.UpdatedLabel(),
	}
	if st.LastError != "" {
		body["status"] = "degraded"
		body["error"] = st.LastError
	}
	return body
}

// ExportOptions hold parameters for exporting observations.
type ExportOptions struct {
	Range     string
	PNGPath   string
	CSVPath   string
	XLSXPath  string
	PDFPath   string
	MaxPoints int
	Force     bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Range string
	Limit int
	Force bool
}
