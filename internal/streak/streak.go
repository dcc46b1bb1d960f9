package streak

import (
	"fmt"
	"strings"
)

// Streak is the per-day completion history of a user, oldest day first.
type Streak []bool

// ParseStreak decodes the stored "0"/"1" form.
func ParseStreak(s string) (Streak, error) {
	st := make(Streak, 0, len(s))
	for i, ch := range s {
		switch ch {
		case '1':
			st = append(st, true)
		case '0':
			st = append(st, false)
		default:
			return nil, fmt.Errorf("streak: invalid flag %q at %d", ch, i)
		}
	}
	return st, nil
}

// Append returns the streak extended by one day.
func (s Streak) Append(done bool) Streak {
	out := make(Streak, len(s), len(s)+1)
	copy(out, s)
	return append(out, done)
}

func (s Streak) Len() int { return len(s) }

// String encodes the streak for persistence.
func (s Streak) String() string {
	var b strings.Builder
	b.Grow(len(s))
	for _, done := range s {
		if done {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Segments splits the streak on every pair of consecutive misses, scanning
// left to right without overlap. Empty segments are dropped.
func (s Streak) Segments() []Streak {
	var (
		segs  []Streak
		start int
	)
	for i := 0; i < len(s); {
		if i+1 < len(s) && !s[i] && !s[i+1] {
			if i > start {
				segs = append(segs, s[start:i])
			}
			i += 2
			start = i
			continue
		}
		i++
	}
	if start < len(s) {
		segs = append(segs, s[start:])
	}
	return segs
}
