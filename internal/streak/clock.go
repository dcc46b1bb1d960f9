package streak

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DayLayout     = "2006-01-02"
	DefaultOffset = 5 * time.Hour
)

// ClockError reports a stored calendar date that cannot be parsed.
type ClockError struct {
	Value string
	Err   error
}

func (e *ClockError) Error() string {
	return fmt.Sprintf("streak: malformed date %q: %v", e.Value, e.Err)
}

func (e *ClockError) Unwrap() error { return e.Err }

// Clock decides calendar days under a fixed UTC offset. Named zones are
// never used so day boundaries do not move with DST or the host locale.
type Clock struct {
	clock clockwork.Clock
	loc   *time.Location
}

func NewClock(c clockwork.Clock, offset time.Duration) Clock {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	mins := int(offset.Minutes()) % 60
	if mins < 0 {
		mins = -mins
	}
	name := fmt.Sprintf("UTC%+03d:%02d", int(offset.Hours()), mins)
	return Clock{clock: c, loc: time.FixedZone(name, int(offset.Seconds()))}
}

func (c Clock) Location() *time.Location { return c.loc }

func (c Clock) Now() time.Time { return c.clock.Now().In(c.loc) }

// Today returns midnight of the current calendar day.
func (c Clock) Today() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

func (c Clock) Yesterday() time.Time { return c.Today().AddDate(0, 0, -1) }

// DaysSince counts whole calendar days between day and today.
func (c Clock) DaysSince(day time.Time) int {
	d := day.In(c.loc)
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
	// Fixed offsets have no DST, so every day is exactly 24h.
	return int(c.Today().Sub(d).Hours() / 24)
}

// IsStale reports whether last is unset or more than graceDays days ago.
func (c Clock) IsStale(last *time.Time, graceDays int) bool {
	if last == nil {
		return true
	}
	return c.DaysSince(*last) > graceDays
}

func (c Clock) FormatDay(t time.Time) string { return t.In(c.loc).Format(DayLayout) }

// ParseDay reads a stored date. An empty value means the habit was never
// completed and yields nil without error.
func (c Clock) ParseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DayLayout, s, c.loc)
	if err != nil {
		return nil, &ClockError{Value: s, Err: err}
	}
	return &t, nil
}
