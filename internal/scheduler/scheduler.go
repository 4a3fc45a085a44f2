package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind names a task; runs of the same kind never overlap.
type Kind string

const (
	KindFetch    Kind = "fetch"
	KindReminder Kind = "reminder"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Scheduler owns one lock per task kind and the periodic loops around them.
type Scheduler struct {
	mu    sync.Mutex
	locks map[Kind]*sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler driven by the wall clock.
func New() *Scheduler {
	return &Scheduler{
		locks: make(map[Kind]*sync.Mutex),
		now:   time.Now,
		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) lockFor(kind Kind) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[kind]
	if !ok {
		l = &sync.Mutex{}
		s.locks[kind] = l
	}
	return l
}

// Run executes fn unless another run of the same kind is in progress.
// ran is false when the run was skipped.
func (s *Scheduler) Run(ctx context.Context, kind Kind, fn Task) (ran bool, err error) {
	l := s.lockFor(kind)
	if !l.TryLock() {
		log.Warn().Str("kind", string(kind)).Msg("Previous run still in progress, skipping")
		return false, nil
	}
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, fn(ctx)
}

// Every runs fn immediately and then once per interval until ctx is cancelled.
// Failures are logged; the loop keeps going.
func (s *Scheduler) Every(ctx context.Context, kind Kind, interval time.Duration, fn Task) {
	log.Info().
		Str("kind", string(kind)).
		Dur("interval", interval).
		Msg("Starting periodic task")

	for {
		if _, err := s.Run(ctx, kind, fn); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("Periodic task failed")
		}
		if err := s.sleep(ctx, interval); err != nil {
			log.Info().Str("kind", string(kind)).Msg("Periodic task stopped")
			return
		}
	}
}
