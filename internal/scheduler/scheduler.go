package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/service"
)

// catchUpWindow widens the very first tick after a (re)start so alerts
// missed during downtime are re-evaluated. The dedup ledger guarantees
// the catch-up never double-delivers.
const catchUpWindow = 12 * time.Hour

// Engine runs one evaluation pass over a half-open tick window.
type Engine interface {
	Tick(ctx context.Context, prevTick, nowTick time.Time) (service.TickStats, error)
}

// Scheduler drives the notification engine at a fixed cadence. Ticks
// never overlap: if a tick is still draining when the next one is due,
// the new one is dropped and the cadence picks it up again.
type Scheduler struct {
	cron     *cron.Cron
	engine   Engine
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex // held for the duration of one tick
	prevTick time.Time  // end of the last successful window
	ctx      context.Context
}

func New(interval time.Duration, engine Engine, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		engine:   engine,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs one immediate catch-up tick, then settles into the
// periodic cadence. Blocks until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	// Catch-up tick before the cadence starts; covers any delivery
	// window that opened while the process was down.
	s.tick()

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("add tick job: %w", err)
	}

	s.cron.Start()
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	<-ctx.Done()
	return nil
}

// Stop halts the cadence and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	// Barrier: a tick started before Stop may still be draining.
	s.mu.Lock()
	s.mu.Unlock()

	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) tick() {
	if !s.mu.TryLock() {
		s.log.Warn().Msg("previous tick still running, skipping")
		return
	}
	defer s.mu.Unlock()

	now := time.Now().UTC()
	prev := s.prevTick
	if prev.IsZero() {
		prev = now.Add(-catchUpWindow)
	}

	stats, err := s.engine.Tick(s.ctx, prev, now)
	if err != nil {
		// Persistence trouble: keep the window open so the next tick
		// retries it once storage is back.
		s.log.Error().Err(err).Msg("tick failed")
		return
	}
	if stats.Mode != domain.MaintenanceOff {
		// Suppressed window stays open too, so reminders gated by the
		// maintenance flag deliver once it lifts.
		s.log.Info().Str("mode", stats.Mode.String()).Msg("maintenance tick, window kept open")
		return
	}

	s.prevTick = now
	s.log.Debug().
		Int("fired", stats.Fired).
		Int("delivered", stats.Delivered).
		Int("failures", stats.Failures).
		Msg("tick complete")
}
