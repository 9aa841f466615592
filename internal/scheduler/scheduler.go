package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every in-window aligned interval.
type TickFunc func(ctx context.Context, cycle time.Time) error

// Window restricts ticks to an operating calendar: a daily hour range and a
// weekday set. A zero Window places no restriction.
type Window struct {
	StartHour int
	EndHour   int
	Days      map[time.Weekday]bool
	Location  *time.Location
}

// Contains reports whether t falls inside the operating window.
func (w Window) Contains(t time.Time) bool {
	if w.unrestricted() {
		return true
	}
	local := t.In(w.location())
	if len(w.Days) > 0 && !w.Days[local.Weekday()] {
		return false
	}
	if w.EndHour > w.StartHour {
		hour := local.Hour()
		if hour < w.StartHour || hour >= w.EndHour {
			return false
		}
	}
	return true
}

func (w Window) unrestricted() bool {
	return len(w.Days) == 0 && w.EndHour <= w.StartHour
}

func (w Window) location() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	return time.UTC
}

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	Window       Window
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives aligned execution of monitoring cycles. Missed cycles are
// never replayed: on start the loop waits for the next scheduled tick, since
// stale alerts would be based on outdated prices anyway.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function at each in-window aligned interval
// until ctx is cancelled. A single tick's failure never terminates the loop.
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

	next := s.NextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.NextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_cycle", next).Msg("waiting for next cycle")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		cycle := s.cycleStart(next)
		s.logger.Info().Time("cycle", cycle).Msg("executing scheduled cycle")

		if err := tick(ctx, cycle); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Time("cycle", cycle).Msg("cycle execution failed")
		}

		next = s.NextTick(next)
	}
}

// NextTick returns the first in-window tick strictly after now.
func (s *Scheduler) NextTick(now time.Time) time.Time {
	next := s.alignedNext(now)
	// Step forward until the operating window admits the tick. Bounded so a
	// misconfigured window cannot spin forever.
	for i := 0; i < 100000; i++ {
		if s.opts.Window.Contains(next) {
			return next
		}
		next = next.Add(s.opts.Interval)
	}
	return next
}

func (s *Scheduler) alignedNext(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}

func (s *Scheduler) cycleStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
