package ledger

import (
	"context"
	"errors"
	"time"

	"telegram-habit-streaks/internal/models"
	"telegram-habit-streaks/internal/streak"

	"github.com/charmbracelet/log"
)

// BrokenAfterDays is how many calendar days may pass since the last
// completion before the streak counts as broken.
const BrokenAfterDays = 2

type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	// SaveUser writes Streak, LastDone and Points in one transaction.
	SaveUser(ctx context.Context, u *models.User) error
}

// Ledger is the only writer of streaks, completion dates and points.
type Ledger struct {
	store Store
	clock streak.Clock
	log   *log.Logger
}

func New(store Store, clock streak.Clock, logger *log.Logger) *Ledger {
	return &Ledger{store: store, clock: clock, log: logger}
}

// RecordCompletion credits today's completion. A second call on the same
// calendar day is a no-op and reports credited == false.
func (l *Ledger) RecordCompletion(ctx context.Context, userID int64) (bool, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return false, &PersistenceError{UserID: userID, Op: "load", Err: err}
	}
	if u == nil {
		return false, ErrUnknownUser
	}

	today := l.clock.FormatDay(l.clock.Today())
	if u.LastDone == today {
		return false, nil
	}

	next := *u
	next.Streak = u.Streak.Append(true)
	next.LastDone = today
	next.Points = streak.Score(next.Streak)
	if err := l.store.SaveUser(ctx, &next); err != nil {
		return false, &PersistenceError{UserID: userID, Op: "save", Err: err}
	}
	*u = next

	l.log.Debug("completion recorded", "user", userID, "streak", next.Streak.String(), "points", next.Points)
	return true, nil
}

type RolloverSummary struct {
	Users     int
	Appended  int
	Untouched int
	Failed    int
}

// RolloverAllUsers appends a missed day to every user who was not credited
// yesterday. Users that never completed, or whose stored date is unreadable,
// are treated as broken and get a miss too. Completion dates never change.
func (l *Ledger) RolloverAllUsers(ctx context.Context) RolloverSummary {
	var sum RolloverSummary

	ids, err := l.store.ListUserIDs(ctx)
	if err != nil {
		l.log.Error("rollover: list users", "err", err)
		return sum
	}
	sum.Users = len(ids)

	yesterday := l.clock.Yesterday()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			l.log.Warn("rollover interrupted", "err", err, "remaining", len(ids)-i)
			sum.Failed += len(ids) - i
			break
		}
		appended, err := l.rollover(ctx, id, yesterday)
		switch {
		case err != nil:
			sum.Failed++
			l.log.Error("rollover user", "user", id, "err", err)
		case appended:
			sum.Appended++
		default:
			sum.Untouched++
		}
	}

	l.log.Info("rollover done", "users", sum.Users, "appended", sum.Appended, "untouched", sum.Untouched, "failed", sum.Failed)
	return sum
}

func (l *Ledger) rollover(ctx context.Context, id int64, yesterday time.Time) (bool, error) {
	u, err := l.store.GetUser(ctx, id)
	if err != nil {
		return false, &PersistenceError{UserID: id, Op: "load", Err: err}
	}
	if u == nil {
		return false, nil
	}

	if last := l.lastDone(u); last != nil && last.Equal(yesterday) {
		return false, nil
	}

	u.Streak = u.Streak.Append(false)
	u.Points = streak.Score(u.Streak)
	if err := l.store.SaveUser(ctx, u); err != nil {
		return false, &PersistenceError{UserID: id, Op: "save", Err: err}
	}
	return true, nil
}

func (l *Ledger) IsBroken(ctx context.Context, userID int64) (bool, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return false, &PersistenceError{UserID: userID, Op: "load", Err: err}
	}
	if u == nil {
		return false, ErrUnknownUser
	}
	return l.Broken(u), nil
}

// Broken is true iff the last completion is more than BrokenAfterDays
// calendar days old or there is none.
func (l *Ledger) Broken(u *models.User) bool {
	return l.clock.IsStale(l.lastDone(u), BrokenAfterDays)
}

func (l *Ledger) lastDone(u *models.User) *time.Time {
	last, err := l.clock.ParseDay(u.LastDone)
	if err != nil {
		var ce *streak.ClockError
		if errors.As(err, &ce) {
			l.log.Warn("treating user as never completed", "user", u.ID, "err", ce)
		}
		return nil
	}
	return last
}
