package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"telegram-habit-streaks/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, watchdog time.Duration) *Scheduler {
	t.Helper()
	s, err := New(nil, watchdog, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func daily() Trigger { return DailyAt{Hour: 3, Minute: 0, Offset: utc5} }

func waitForState(t *testing.T, s *Scheduler, name string, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := s.State(name)
		return err == nil && st == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunNowTransitions(t *testing.T) {
	s := newScheduler(t, time.Minute)
	release := make(chan struct{})
	require.NoError(t, s.Add(Job{Name: "j", Trigger: daily(), Run: func(ctx context.Context) error {
		<-release
		return nil
	}}))

	st, err := s.State("j")
	require.NoError(t, err)
	assert.Equal(t, Idle, st)

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "j") }()
	waitForState(t, s, "j", Firing)

	close(release)
	require.NoError(t, <-done)
	waitForState(t, s, "j", Idle)
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	s := newScheduler(t, time.Minute)
	var runs atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Add(Job{Name: "j", Trigger: daily(), Run: func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "j") }()
	waitForState(t, s, "j", Firing)

	err := s.RunNow(context.Background(), "j")
	assert.ErrorIs(t, err, ErrSkipped)
	skipped, _ := s.Skipped("j")
	assert.Equal(t, 1, skipped)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestJobErrorIsReturned(t *testing.T) {
	s := newScheduler(t, time.Minute)
	boom := errors.New("boom")
	require.NoError(t, s.Add(Job{Name: "j", Trigger: daily(), Run: func(context.Context) error { return boom }}))

	assert.ErrorIs(t, s.RunNow(context.Background(), "j"), boom)
	st, _ := s.State("j")
	assert.Equal(t, Idle, st)
}

func TestPanicIsContained(t *testing.T) {
	s := newScheduler(t, time.Minute)
	require.NoError(t, s.Add(Job{Name: "j", Trigger: daily(), Run: func(context.Context) error { panic("oops") }}))

	assert.Error(t, s.RunNow(context.Background(), "j"))
	st, _ := s.State("j")
	assert.Equal(t, Idle, st)
}

func TestWatchdogReportsHungJob(t *testing.T) {
	s := newScheduler(t, 20*time.Millisecond)
	release := make(chan struct{})
	require.NoError(t, s.Add(Job{Name: "hung", Trigger: daily(), Run: func(context.Context) error {
		<-release // ignores its context
		return nil
	}}))

	err := s.RunNow(context.Background(), "hung")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Still firing until the body returns, so no second copy can start.
	st, _ := s.State("hung")
	assert.Equal(t, Firing, st)
	assert.ErrorIs(t, s.RunNow(context.Background(), "hung"), ErrSkipped)

	close(release)
	waitForState(t, s, "hung", Idle)
}

func TestAddRejectsDuplicatesAndUnknown(t *testing.T) {
	s := newScheduler(t, time.Minute)
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Add(Job{Name: "j", Trigger: daily(), Run: noop}))
	assert.ErrorIs(t, s.Add(Job{Name: "j", Trigger: daily(), Run: noop}), ErrDuplicateJob)

	assert.ErrorIs(t, s.RunNow(context.Background(), "nope"), ErrUnknownJob)
	_, err := s.State("nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduledFiring(t *testing.T) {
	s := newScheduler(t, time.Minute)
	fired := make(chan struct{}, 8)
	trigger := Every{Anchor: time.Now().Add(300 * time.Millisecond), Interval: time.Hour}
	require.NoError(t, s.Add(Job{Name: "tick", Trigger: trigger, Run: func(context.Context) error {
		fired <- struct{}{}
		return nil
	}}))

	s.Start()
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}

	next, err := s.NextRun("tick")
	require.NoError(t, err)
	assert.False(t, next.IsZero())
}
