package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram-habit-streaks/internal/logger"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []Message
	fail  map[int64]bool
}

func (s *recordingSender) Send(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Message{ChatID: chatID, Text: text})
	if s.fail[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func noPacing() Config { return Config{BurstSize: DefaultBurstSize} }

func TestBroadcastEmptyRecipients(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, DefaultConfig(), nil, logger.Discard())

	res := d.Broadcast(context.Background(), "", nil)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, s.count())
}

func TestBroadcastPartialFailure(t *testing.T) {
	s := &recordingSender{fail: map[int64]bool{2: true}}
	d := NewDispatcher(s, noPacing(), nil, logger.Discard())

	res := d.Broadcast(context.Background(), "hi", []int64{1, 2, 3})
	assert.Equal(t, Result{Sent: 2, Failed: 1}, res)
	assert.Equal(t, []Message{{1, "hi"}, {2, "hi"}, {3, "hi"}}, s.calls)
}

func TestBroadcastAllFail(t *testing.T) {
	s := &recordingSender{fail: map[int64]bool{1: true, 2: true}}
	d := NewDispatcher(s, noPacing(), nil, logger.Discard())

	assert.Equal(t, Result{Failed: 2}, d.Broadcast(context.Background(), "hi", []int64{1, 2}))
}

func TestDispatchKeepsPerRecipientText(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, noPacing(), nil, logger.Discard())

	msgs := []Message{{ChatID: 5, Text: "a"}, {ChatID: 4, Text: "b"}}
	assert.Equal(t, Result{Sent: 2}, d.Dispatch(context.Background(), msgs))
	assert.Equal(t, msgs, s.calls)
}

func TestPace(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, Config{Delay: 100 * time.Millisecond, Pause: time.Second, BurstSize: 3}, nil, logger.Discard())
	assert.Equal(t, 100*time.Millisecond, d.pace(1))
	assert.Equal(t, 100*time.Millisecond, d.pace(2))
	assert.Equal(t, 1100*time.Millisecond, d.pace(3))
	assert.Equal(t, 1100*time.Millisecond, d.pace(6))
}

func TestBroadcastWaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &recordingSender{}
	cfg := Config{Delay: 100 * time.Millisecond, Pause: time.Second, BurstSize: 2}
	d := NewDispatcher(s, cfg, clock, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- d.Broadcast(ctx, "hi", []int64{1, 2, 3}) }()

	waits := []time.Duration{100 * time.Millisecond, 1100 * time.Millisecond, 100 * time.Millisecond}
	for i, w := range waits {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		assert.Equal(t, i+1, s.count(), "one send per wait")
		clock.Advance(w)
	}

	select {
	case res := <-done:
		assert.Equal(t, Result{Sent: 3}, res)
	case <-ctx.Done():
		t.Fatal("broadcast did not finish")
	}
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &recordingSender{}
	d := NewDispatcher(s, Config{Delay: time.Minute, BurstSize: 29}, clock, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- d.Broadcast(ctx, "hi", []int64{1, 2, 3}) }()

	wait, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, clock.BlockUntilContext(wait, 1))
	cancel()

	res := <-done
	assert.Equal(t, Result{Sent: 1, Failed: 2}, res)
	assert.Equal(t, 1, s.count())
}

func TestDeliveryErrorUnwraps(t *testing.T) {
	cause := errors.New("chat not found")
	err := error(&DeliveryError{Recipient: 7, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "7")
}
