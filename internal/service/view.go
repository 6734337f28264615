package service

import (
	"context"
	"time"

	"gsrwatch/internal/gsr"
)

// SetRange switches the displayed window. A range needing more history than
// was last fetched triggers a superseding reload; otherwise the held history
// is re-filtered.
func (s *Service) SetRange(ctx context.Context, r gsr.Range) error {
	s.mu.Lock()
	if r == s.rng {
		s.mu.Unlock()
		return nil
	}
	s.rng = r
	reload := r.RequiredFetchSize() > s.fetchedLimit
	if !reload {
		s.refreshLocked()
	}
	s.mu.Unlock()

	s.charts.ResetZoom()
	s.logger.Debug().Str("range", string(r)).Bool("reload", reload).Msg("range changed")
	s.listener.RangeChanged(r)

	if reload {
		_, err := s.Load(ctx, LoadOptions{Supersede: true})
		return err
	}
	return nil
}

// SetVisible chooses which metrics are charted and rebuilds the charts.
func (s *Service) SetVisible(metrics []gsr.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = append([]gsr.Metric(nil), metrics...)
	s.refreshLocked()
}

// PointerMove forwards a hover over the source chart.
func (s *Service) PointerMove(source gsr.Metric, pixelX float64) {
	s.charts.PointerMove(source, pixelX)
}

// PointerLeave forwards the pointer leaving the source chart.
func (s *Service) PointerLeave(source gsr.Metric) {
	s.charts.PointerLeave(source)
}

// Click selects the hovered point; listeners receive PointSelected.
func (s *Service) Click(source gsr.Metric) (gsr.Observation, bool) {
	return s.charts.Click(source)
}

// Zoom narrows every chart to [from, to].
func (s *Service) Zoom(from, to time.Time) {
	s.charts.Zoom(from, to)
}

// ResetZoom restores the full window on every chart.
func (s *Service) ResetZoom() {
	s.charts.ResetZoom()
}

// UpdatedLabel describes the age of the latest observation's fetch time,
// falling back to the local load time.
func (s *Service) UpdatedLabel() string {
	s.mu.Lock()
	ts := s.loadedAt
	if s.latest != nil && !s.latest.FetchedAt.IsZero() {
		ts = s.latest.FetchedAt
	}
	s.mu.Unlock()
	return UpdatedLabel(ts, s.now())
}
