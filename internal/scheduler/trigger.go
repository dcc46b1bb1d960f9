package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Trigger decides when a job fires.
type Trigger interface {
	// Next returns the first fire time strictly after t.
	Next(t time.Time) time.Time
	definition(now time.Time) (gocron.JobDefinition, []gocron.JobOption)
	fmt.Stringer
}

// DailyAt fires once a day at Hour:Minute in a fixed UTC offset.
type DailyAt struct {
	Hour   int
	Minute int
	Offset time.Duration
}

func (d DailyAt) String() string {
	return fmt.Sprintf("daily %02d:%02d UTC%+.1fh", d.Hour, d.Minute, d.Offset.Hours())
}

// utc converts the wall-clock time to the equivalent UTC hour and minute.
func (d DailyAt) utc() (hour, minute int) {
	mins := d.Hour*60 + d.Minute - int(d.Offset.Minutes())
	mins = ((mins % 1440) + 1440) % 1440
	return mins / 60, mins % 60
}

func (d DailyAt) Next(t time.Time) time.Time {
	h, m := d.utc()
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (d DailyAt) definition(time.Time) (gocron.JobDefinition, []gocron.JobOption) {
	h, m := d.utc()
	return gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(h), uint(m), 0))), nil
}

// Every fires at Anchor + k*Interval.
type Every struct {
	Anchor   time.Time
	Interval time.Duration
}

func (e Every) String() string {
	return fmt.Sprintf("every %s from %s", e.Interval, e.Anchor.UTC().Format(time.RFC3339))
}

func (e Every) Next(t time.Time) time.Time {
	if t.Before(e.Anchor) {
		return e.Anchor
	}
	k := t.Sub(e.Anchor)/e.Interval + 1
	return e.Anchor.Add(k * e.Interval)
}

func (e Every) definition(now time.Time) (gocron.JobDefinition, []gocron.JobOption) {
	return gocron.DurationJob(e.Interval), []gocron.JobOption{
		gocron.WithStartAt(gocron.WithStartDateTime(e.Next(now))),
	}
}
