package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DailyConfig describes a once-a-day task with same-day retries.
type DailyConfig struct {
	// Hour and Minute are the UTC time of the first attempt.
	Hour   int
	Minute int
	// RetryInterval separates attempts whose outcome asked for a retry.
	RetryInterval time.Duration
	// RetryWindow bounds retries, measured from the target time.
	RetryWindow time.Duration
	// MaxLateness skips the day when the loop starts later than this after the target.
	MaxLateness time.Duration
}

// DefaultDailyConfig returns the reminder schedule: retries every 10 minutes for
// two hours, and a day is given up once more than six hours late.
func DefaultDailyConfig(hour, minute int) DailyConfig {
	return DailyConfig{
		Hour:          hour,
		Minute:        minute,
		RetryInterval: 10 * time.Minute,
		RetryWindow:   2 * time.Hour,
		MaxLateness:   6 * time.Hour,
	}
}

// DailyTask reports whether the attempt should be retried later the same day.
type DailyTask func(ctx context.Context) (retry bool, err error)

func (c DailyConfig) targetOn(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, time.UTC)
}

// nextTarget returns the next target time to work on, given the last day handled.
func (c DailyConfig) nextTarget(now time.Time, done time.Time) time.Time {
	target := c.targetOn(now)
	if !done.IsZero() && !target.After(done) {
		target = target.AddDate(0, 0, 1)
	}
	if now.Sub(target) > c.MaxLateness {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// Daily runs fn once a day at the configured time until ctx is cancelled.
func (s *Scheduler) Daily(ctx context.Context, kind Kind, cfg DailyConfig, fn DailyTask) {
	log.Info().
		Str("kind", string(kind)).
		Int("hour", cfg.Hour).
		Int("minute", cfg.Minute).
		Msg("Starting daily task")

	var done time.Time
	for {
		target := cfg.nextTarget(s.now().UTC(), done)
		if err := s.sleep(ctx, target.Sub(s.now())); err != nil {
			log.Info().Str("kind", string(kind)).Msg("Daily task stopped")
			return
		}

		deadline := target.Add(cfg.RetryWindow)
		for attempt := 1; ; attempt++ {
			retry := false
			_, err := s.Run(ctx, kind, func(ctx context.Context) error {
				var err error
				retry, err = fn(ctx)
				return err
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Str("kind", string(kind)).Int("attempt", attempt).Msg("Daily task failed")
				retry = true
			}
			if !retry {
				break
			}
			if !s.now().Add(cfg.RetryInterval).Before(deadline) {
				log.Warn().
					Str("kind", string(kind)).
					Int("attempts", attempt).
					Msg("Daily task gave up for today")
				break
			}
			if err := s.sleep(ctx, cfg.RetryInterval); err != nil {
				return
			}
		}
		done = target
	}
}
