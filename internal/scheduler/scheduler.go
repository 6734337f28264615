package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval of a job.
type TickFunc func(ctx context.Context, at time.Time) error

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// AlignToStart fires on interval boundaries of the wall clock.
	AlignToStart bool
	// Immediate runs the tick once as soon as the scheduler starts.
	Immediate bool
	Tick      TickFunc
}

// Options tune scheduler behaviour.
type Options struct {
	StartupDelay time.Duration
}

// Scheduler drives a set of periodic jobs until its context ends.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	jobs   []Job
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Add registers a job. It must be called before Run.
func (s *Scheduler) Add(job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %q: interval must be positive", job.Name)
	}
	if job.Tick == nil {
		return fmt.Errorf("job %q: tick function required", job.Name)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Run blocks, running every job on its own timer until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	logger := s.logger.With().Str("job", job.Name).Logger()

	if job.Immediate {
		s.execute(ctx, logger, job, time.Now().UTC())
	}

	next := nextTick(job, time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = nextTick(job, time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		logger.Trace().Time("next", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.execute(ctx, logger, job, bucketStart(job, next))
		next = next.Add(job.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, logger zerolog.Logger, job Job, at time.Time) {
	if err := job.Tick(ctx, at); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
	}
}

func nextTick(job Job, now time.Time) time.Time {
	if !job.AlignToStart {
		return now.Add(job.Interval)
	}
	bucket := now.Truncate(job.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(job.Interval)
	}
	return bucket
}

func bucketStart(job Job, t time.Time) time.Time {
	if !job.AlignToStart {
		return t
	}
	return t.Truncate(job.Interval)
}
