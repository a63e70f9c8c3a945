package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/service"
)

type window struct {
	prev, now time.Time
}

type fakeEngine struct {
	windows []window
	mode    domain.MaintenanceMode
	err     error
}

func (f *fakeEngine) Tick(_ context.Context, prevTick, nowTick time.Time) (service.TickStats, error) {
	f.windows = append(f.windows, window{prev: prevTick, now: nowTick})
	return service.TickStats{Mode: f.mode}, f.err
}

func newTestScheduler(eng Engine) *Scheduler {
	s := New(time.Minute, eng, zerolog.Nop())
	s.ctx = context.Background()
	return s
}

func TestTick_FirstWindowIsCatchUp(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestScheduler(eng)

	before := time.Now().UTC()
	s.tick()
	after := time.Now().UTC()

	require.Len(t, eng.windows, 1)
	w := eng.windows[0]
	assert.False(t, w.now.Before(before))
	assert.False(t, w.now.After(after))
	assert.Equal(t, catchUpWindow, w.now.Sub(w.prev))
}

func TestTick_WindowsAreContiguous(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestScheduler(eng)

	s.tick()
	s.tick()

	require.Len(t, eng.windows, 2)
	assert.Equal(t, eng.windows[0].now, eng.windows[1].prev,
		"each window starts where the previous successful one ended")
}

func TestTick_FailedTickKeepsWindowOpen(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestScheduler(eng)

	s.tick() // establish prevTick
	anchor := eng.windows[0].now

	eng.err = errors.New("db unavailable")
	s.tick()
	require.Len(t, eng.windows, 2)
	assert.Equal(t, anchor, eng.windows[1].prev)

	// Recovery: the retried window still starts at the same point, so
	// nothing evaluated during the outage is lost.
	eng.err = nil
	s.tick()
	require.Len(t, eng.windows, 3)
	assert.Equal(t, anchor, eng.windows[2].prev)
}

func TestTick_MaintenanceKeepsWindowOpen(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestScheduler(eng)

	s.tick() // establish prevTick
	anchor := eng.windows[0].now

	// Ticks running under maintenance must not advance the watermark:
	// a trigger inside a suppressed window would otherwise fall before
	// every later window and the reminder would be lost for the year.
	for _, mode := range []domain.MaintenanceMode{domain.MaintenanceSoft, domain.MaintenanceHard} {
		eng.mode = mode
		s.tick()
		last := eng.windows[len(eng.windows)-1]
		assert.Equal(t, anchor, last.prev, "mode %s must keep the window open", mode)
	}

	// The first normal tick re-covers everything the suppressed ticks
	// saw, so a soft-gated trigger is evaluated again for real delivery.
	eng.mode = domain.MaintenanceOff
	s.tick()
	require.Len(t, eng.windows, 4)
	assert.Equal(t, anchor, eng.windows[3].prev)

	s.tick()
	assert.Equal(t, eng.windows[3].now, eng.windows[4].prev,
		"normal operation advances the watermark again")
}

func TestTick_OverlappingTickIsDropped(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestScheduler(eng)

	s.mu.Lock() // simulate an in-flight tick
	s.tick()
	s.mu.Unlock()

	assert.Empty(t, eng.windows, "a tick arriving while one runs is skipped")
}
