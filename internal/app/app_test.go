package app

import (
	"context"
	"path/filepath"
	"testing"

	"telegram-habit-streaks/internal/broadcast"
	"telegram-habit-streaks/internal/config"
	"telegram-habit-streaks/internal/jobs"
	"telegram-habit-streaks/internal/logger"
	"telegram-habit-streaks/internal/models"
	"telegram-habit-streaks/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct{ sent []broadcast.Message }

func (s *sink) Send(_ context.Context, chatID int64, text string) error {
	s.sent = append(s.sent, broadcast.Message{ChatID: chatID, Text: text})
	return nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DBPath:           filepath.Join(t.TempDir(), "bot.db"),
		OffsetHours:      5,
		RolloverAt:       "06:13",
		BrokenAt:         "06:14",
		ReminderAt:       "17:00",
		ReflectionAnchor: "2024-03-23T00:00:00Z",
		ReflectionEvery:  0,
		BurstSize:        29,
		Watchdog:         scheduler.DefaultWatchdog,
	}
}

func TestSchedulerRegistersDailyJobs(t *testing.T) {
	a, err := New(testConfig(t), logger.Discard(), &sink{})
	require.NoError(t, err)
	defer a.Close()

	s, err := a.Scheduler()
	require.NoError(t, err)
	defer s.Shutdown()

	for _, name := range []string{jobs.ReminderJob, jobs.BrokenJob, jobs.RolloverJob} {
		st, err := s.State(name)
		require.NoError(t, err, name)
		assert.Equal(t, scheduler.Idle, st)
	}
	_, err = s.State(jobs.ReflectionJob)
	assert.ErrorIs(t, err, scheduler.ErrUnknownJob)
}

func TestCompletionThenRolloverAgainstSQLite(t *testing.T) {
	out := &sink{}
	a, err := New(testConfig(t), logger.Discard(), out)
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.DB.AddUser(ctx, &models.User{ID: 1, Handle: "a"}))
	require.NoError(t, a.DB.AddUser(ctx, &models.User{ID: 2, Handle: "b"}))

	credited, err := a.Ledger.RecordCompletion(ctx, 1)
	require.NoError(t, err)
	assert.True(t, credited)

	sum := a.Ledger.RolloverAllUsers(ctx)
	assert.Equal(t, 2, sum.Users)
	assert.Equal(t, 2, sum.Appended, "neither user completed yesterday")

	u, err := a.DB.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "10", u.Streak.String())
	assert.Equal(t, 1, u.Points)

	res, err := a.Broadcast(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, broadcast.Result{Sent: 2}, res)
	assert.Len(t, out.sent, 2)
}
