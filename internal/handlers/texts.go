package handlers

import (
	"fmt"
	"strings"

	"telegram-habit-streaks/internal/models"
	"telegram-habit-streaks/internal/streak"
)

const (
	startText = "To get started, use the /onboard command.\n" +
		"/complete - to log your habit completion for the day\n" +
		"/reflect - to add a reflection for the day\n" +
		"/leaderboard - to view the current leaderboard"
	helpText = "To get started, use the /onboard command.\n" +
		"/onboard habit | location | time | category | yes/no\n" +
		"/complete - to log your habit completion for the day\n" +
		"/reflect <text> - to add a reflection for the day\n" +
		"/streak - to see your habit progress\n" +
		"/edit_habit <text> - to modify your habit\n" +
		"/leaderboard - to view the current leaderboard\n" +
		"/leave - to delete your data"

	onboardUsage      = "Tell us about your habit in one line:\n/onboard what | where | when | category | yes/no\n\nCategories: "
	onboardDone       = "Your onboarding data has been successfully captured! Lets work towards greatness together :)"
	alreadyOnboarded  = "Your onboarding has already been captured! If you would like to edit your habit, use the /edit_habit command!"
	invalidCategory   = "Sorry, the category you chose is not a valid option, please choose again!"
	invalidConsent    = "Sorry, we didn't quite get that. Please answer yes or no to sharing your reflections."
	notOnboarded      = "You haven't onboarded yet! Use /onboard to get started."
	completeCredited  = "Great Job! Keep going at it :)"
	completeDuplicate = "You've already logged your habit today. See you tomorrow!"
	noStreak          = "You currently don't have an ongoing streak!"
	reflectUsage      = "Tell me more about what you learnt! Usage: /reflect <text>"
	reflectDone       = "Thank you for sharing!"
	editUsage         = "Tell us what you would like to change your habit to: /edit_habit <text>"
	editDone          = "Got it! Keep going at it!"
	wrongPassword     = "Incorrect password!"
	broadcastUsage    = "Usage: /broadcast <password> <message>"
	broadcastQueued   = "Your request has been sent!"
	leaveDone         = "Your data has been removed. Use /onboard to start again."
	unknownCommand    = "Sorry, I don't know that command. Try /help."
	somethingWrong    = "Oops! Something went wrong. Please try again later."
	noLeaderboard     = "No leaderboard entries available."
	brokenWarning     = "\n\nYour streak is broken, but you can restart it today!"
)

// formatStreak renders one 🔥 per completed day and one ❌ per missed day.
func formatStreak(s streak.Streak) string {
	if s.Len() == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Each 🔥 emoji represents a day where you completed the habit, and each ❌ is a missed day. \n\n")
	for _, done := range s {
		if done {
			b.WriteString("🔥")
		} else {
			b.WriteString("❌")
		}
	}
	return b.String()
}

// formatLeaderboard ranks entries by points; equal points share a rank.
func formatLeaderboard(entries []models.LeaderboardEntry) string {
	if len(entries) == 0 {
		return noLeaderboard
	}
	var b strings.Builder
	b.WriteString("🏆 Leaderboard 🏆\n\n")

	rank := 0
	for i, e := range entries {
		if i == 0 || e.Points != entries[i-1].Points {
			rank = i + 1
		}
		fmt.Fprintf(&b, "%d. @%s - %d point(s)\n", rank, e.Handle, e.Points)
	}
	return b.String()
}
