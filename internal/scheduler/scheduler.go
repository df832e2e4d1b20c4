package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one full synchronisation pass.
type TickFunc func(ctx context.Context) error

// Options tune loop behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Loop drives the polling cadence: run a tick to completion, sleep the
// fixed interval, repeat. Tick failures are logged and swallowed; only
// context cancellation stops the loop, so one tick at a time is in
// flight by construction.
type Loop struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Loop instance.
func New(opts Options, logger zerolog.Logger) *Loop {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Loop{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, tick TickFunc) error {
	if l.opts.StartupDelay > 0 {
		if err := sleep(ctx, l.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		if err := tick(ctx); err != nil {
			l.logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("tick failed")
		} else {
			l.logger.Debug().Dur("elapsed", time.Since(started)).Msg("tick complete")
		}

		if err := sleep(ctx, l.opts.Interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
