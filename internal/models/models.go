package models

import (
	"telegram-habit-streaks/internal/streak"
)

var Categories = []string{"Flexibility", "Strength", "Cardio", "Diet"}

// User is a tracked participant, keyed by the telegram user id.
type User struct {
	ID                int64         `db:"telegram_id"        json:"telegram_id"`
	Handle            string        `db:"handle"             json:"handle"`
	Habit             string        `db:"habit"              json:"habit"`
	Location          string        `db:"location"           json:"location"`
	TimePeriod        string        `db:"time_period"        json:"time_period"`
	Category          string        `db:"category"           json:"category"`
	ReflectionConsent bool          `db:"reflection_consent" json:"reflection_consent"`
	LastDone          string        `db:"last_done"          json:"last_done"` // YYYY-MM-DD, "" = never
	Streak            streak.Streak `db:"streak"             json:"streak"`
	Points            int           `db:"points"             json:"points"`
	CreatedAt         int64         `db:"created_at"         json:"created_at"`
}

// Reflection is a note a user shared about their habit.
type Reflection struct {
	ID        int64  `db:"id"`
	AuthorID  int64  `db:"telegram_id"`
	Text      string `db:"text"`
	CreatedAt string `db:"created_at"` // UTC+5 "YYYY-MM-DD HH:MM:SS"
}

type LeaderboardEntry struct {
	Handle string `db:"handle"`
	Points int    `db:"points"`
}

func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}
