package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per grid point with the scheduled tick time.
type TickFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// RunOnStart fires the first tick at the anchor instead of one interval later.
	RunOnStart bool
}

// Scheduler fires ticks on a fixed grid anchored at the moment Run starts.
// Ticks never overlap; grid points that pass while a tick is still running are
// skipped rather than queued.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Interval returns the configured tick spacing.
func (s *Scheduler) Interval() time.Duration { return s.opts.Interval }

// Run blocks, invoking tick at each grid point until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	start := s.now()
	next := start
	if !s.opts.RunOnStart {
		next = start.Add(s.opts.Interval)
	}
	s.logger.Info().Time("anchor", start).Dur("interval", s.opts.Interval).Msg("scheduler started")

	for {
		timer := time.NewTimer(next.Sub(s.now()))
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("tick", next).Msg("tick execution failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		following := next.Add(s.opts.Interval)
		if now := s.now(); !following.After(now) {
			later := NextAfter(start, now, s.opts.Interval)
			s.logger.Warn().
				Time("tick", next).
				Int("skipped", int(later.Sub(following)/s.opts.Interval)).
				Msg("tick overran its interval; skipping missed ticks")
			following = later
		}
		next = following
	}
}

// NextAfter returns the first grid point start+n*interval strictly after now.
func NextAfter(start, now time.Time, interval time.Duration) time.Time {
	if now.Before(start) {
		return start
	}
	n := now.Sub(start)/interval + 1
	return start.Add(n * interval)
}
