package jobs

import (
	"context"
	"fmt"
	"time"

	"telegram-habit-streaks/internal/broadcast"
	"telegram-habit-streaks/internal/ledger"
	"telegram-habit-streaks/internal/models"
	"telegram-habit-streaks/internal/scheduler"
	"telegram-habit-streaks/internal/streak"

	"github.com/charmbracelet/log"
)

const (
	ReminderJob   = "streak-reminder"
	BrokenJob     = "broken-streak"
	RolloverJob   = "streak-rollover"
	ReflectionJob = "reflection-relay"
)

const (
	ReminderText = "Good Evening! We hope your day has been great :) " +
		"Here's a friendly reminder to do your habit for today!"
	BrokenText = "YOU BROKE YOUR STREAK?? 😱😱😱 NOOOOOOOOO 💔😭😭😭😭.....\n\n" +
		"Restart today and keep building that habit. Remember, you can always adjust " +
		"your habit to make it easier so that you don't miss twice! \n\n" +
		"You've got this 👍🏻❤️"
	ReflectionPrefix = "This is a randomised reflection from another participant!\n\n"
)

type Store interface {
	ListUsersStreakBreaking(ctx context.Context, today time.Time) ([]int64, error)
	ListUsersStreakBroken(ctx context.Context, today time.Time) ([]int64, error)
	ListReflectionRecipients(ctx context.Context) ([]int64, error)
	RandomReflection(ctx context.Context, excludeUserID int64) (*models.Reflection, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, text string, recipients []int64) broadcast.Result
	Dispatch(ctx context.Context, msgs []broadcast.Message) broadcast.Result
}

type Roller interface {
	RolloverAllUsers(ctx context.Context) ledger.RolloverSummary
}

// Jobs holds the bodies of the periodic notifications.
type Jobs struct {
	store      Store
	ledger     Roller
	dispatcher Broadcaster
	clock      streak.Clock
	log        *log.Logger
}

func New(store Store, l Roller, d Broadcaster, clock streak.Clock, logger *log.Logger) *Jobs {
	return &Jobs{store: store, ledger: l, dispatcher: d, clock: clock, log: logger}
}

// Schedule describes when each job fires.
type Schedule struct {
	Reminder           scheduler.DailyAt
	Broken             scheduler.DailyAt
	Rollover           scheduler.DailyAt
	Reflections        scheduler.Every
	DisableReflections bool
}

// Register adds all jobs to s.
func (j *Jobs) Register(s *scheduler.Scheduler, sch Schedule) error {
	all := []scheduler.Job{
		{Name: RolloverJob, Trigger: sch.Rollover, Run: j.Rollover},
		{Name: BrokenJob, Trigger: sch.Broken, Run: j.NotifyBroken},
		{Name: ReminderJob, Trigger: sch.Reminder, Run: j.RemindBreaking},
	}
	if !sch.DisableReflections {
		all = append(all, scheduler.Job{Name: ReflectionJob, Trigger: sch.Reflections, Run: j.RelayReflections})
	}
	for _, job := range all {
		if err := s.Add(job); err != nil {
			return err
		}
	}
	return nil
}

// RemindBreaking nudges users who have not completed today.
func (j *Jobs) RemindBreaking(ctx context.Context) error {
	ids, err := j.store.ListUsersStreakBreaking(ctx, j.clock.Today())
	if err != nil {
		return fmt.Errorf("list breaking streaks: %w", err)
	}
	res := j.dispatcher.Broadcast(ctx, ReminderText, ids)
	j.log.Info("reminders sent", "job", ReminderJob, "sent", res.Sent, "failed", res.Failed)
	return nil
}

// NotifyBroken tells users whose last completion is stale.
func (j *Jobs) NotifyBroken(ctx context.Context) error {
	ids, err := j.store.ListUsersStreakBroken(ctx, j.clock.Today())
	if err != nil {
		return fmt.Errorf("list broken streaks: %w", err)
	}
	res := j.dispatcher.Broadcast(ctx, BrokenText, ids)
	j.log.Info("broken streak notices sent", "job", BrokenJob, "sent", res.Sent, "failed", res.Failed)
	return nil
}

func (j *Jobs) Rollover(ctx context.Context) error {
	sum := j.ledger.RolloverAllUsers(ctx)
	if sum.Failed > 0 {
		j.log.Warn("rollover had failures", "job", RolloverJob, "failed", sum.Failed)
	}
	return nil
}

// RelayReflections sends every consenting user one random reflection written
// by somebody else.
func (j *Jobs) RelayReflections(ctx context.Context) error {
	ids, err := j.store.ListReflectionRecipients(ctx)
	if err != nil {
		return fmt.Errorf("list reflection recipients: %w", err)
	}

	var msgs []broadcast.Message
	for _, id := range ids {
		r, err := j.store.RandomReflection(ctx, id)
		if err != nil {
			j.log.Error("pick reflection", "user", id, "err", err)
			continue
		}
		if r == nil || r.AuthorID == id {
			j.log.Debug("no reflection available", "user", id)
			continue
		}
		msgs = append(msgs, broadcast.Message{ChatID: id, Text: ReflectionPrefix + r.Text})
	}

	res := j.dispatcher.Dispatch(ctx, msgs)
	j.log.Info("reflections relayed", "job", ReflectionJob, "sent", res.Sent, "failed", res.Failed)
	return nil
}
