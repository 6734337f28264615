package app

import (
	"sync"

	"github.com/rs/zerolog"

	"gsrwatch/internal/gsr"
	"gsrwatch/internal/render"
	"gsrwatch/internal/service"
)

// consoleListener logs session events and saves chart PNGs after each load.
type consoleListener struct {
	logger    zerolog.Logger
	outputDir string

	mu  sync.Mutex
	svc *service.Service
}

func newConsoleListener(logger zerolog.Logger, outputDir string) *consoleListener {
	return &consoleListener{
		logger:    logger.With().Str("component", "listener").Logger(),
		outputDir: outputDir,
	}
}

func (l *consoleListener) attach(svc *service.Service) {
	l.mu.Lock()
	l.svc = svc
	l.mu.Unlock()
}

func (l *consoleListener) session() *service.Service {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.svc
}

func (l *consoleListener) DataLoaded(res service.LoadResult) {
	if res.Err != nil {
		l.logger.Warn().Err(res.Err).Msg("no data")
		return
	}

	event := l.logger.Info().Str("range", string(res.Range)).Str("window", res.Label)
	if res.Latest != nil {
		event = event.Str("date", res.Latest.DateString())
		for _, m := range gsr.Metrics {
			if d, ok := res.Deltas[m]; ok {
				event = event.Str(string(m), formatValue(m, res.Latest.Value(m))+" "+formatDelta(d))
			}
		}
	}
	event.Msg("latest")

	if l.outputDir == "" {
		return
	}
	svc := l.session()
	if svc == nil {
		return
	}
	paths, err := render.WriteAll(svc.Charts(), gsr.Metrics, l.outputDir)
	if err != nil {
		l.logger.Error().Err(err).Msg("chart output failed")
		return
	}
	if len(paths) > 0 {
		l.logger.Debug().Strs("files", paths).Msg("charts written")
	}
}

func (l *consoleListener) PointSelected(obs gsr.Observation) {
	l.logger.Info().
		Str("date", obs.DateString()).
		Float64("gsr", obs.GSR).
		Float64("gold_usd", obs.GoldUSD).
		Float64("silver_usd", obs.SilverUSD).
		Msg("point selected")
}

func (l *consoleListener) RangeChanged(r gsr.Range) {
	l.logger.Info().Str("range", string(r)).Msg("range changed")
}

// tickLabel re-renders the relative "last updated" label.
func (l *consoleListener) tickLabel() {
	svc := l.session()
	if svc == nil {
		return
	}
	l.logger.Debug().Str("updated", svc.UpdatedLabel()).Msg("last updated")
}

var _ service.Listener = (*consoleListener)(nil)
