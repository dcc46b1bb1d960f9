package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"telegram-habit-streaks/internal/broadcast"
	"telegram-habit-streaks/internal/ledger"
	"telegram-habit-streaks/internal/models"
	"telegram-habit-streaks/internal/streak"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const leaderboardSize = 10

type Store interface {
	AddUser(ctx context.Context, u *models.User) error
	IsRegistered(ctx context.Context, id int64) (bool, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpdateHabit(ctx context.Context, id int64, habit, location, timePeriod string) error
	AddReflection(ctx context.Context, r *models.Reflection) error
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	ClearData(ctx context.Context, id int64) error
}

type Ledger interface {
	RecordCompletion(ctx context.Context, userID int64) (bool, error)
	Broken(u *models.User) bool
}

type Messenger interface {
	broadcast.Sender
	SendKeyboard(ctx context.Context, chatID int64, text string, rows ...[]string) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, text string, recipients []int64) broadcast.Result
}

type Handler struct {
	Out           Messenger
	DB            Store
	Ledger        Ledger
	Dispatcher    Broadcaster
	Clock         streak.Clock
	AdminPassword string
	Log           *log.Logger

	wg sync.WaitGroup
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return
	}
	h.HandleCommand(ctx, msg.Chat.ID, msg.From.ID, msg.From.UserName, msg.Command(), msg.CommandArguments())
}

// HandleCommand runs one command and replies to chatID.
func (h *Handler) HandleCommand(ctx context.Context, chatID, userID int64, handle, cmd, args string) {
	args = strings.TrimSpace(args)

	switch cmd {
	case "start":
		h.menu(ctx, chatID)
	case "help":
		h.send(ctx, chatID, helpText)
	case "onboard":
		h.send(ctx, chatID, h.onboard(ctx, userID, handle, args))
	case "complete":
		h.send(ctx, chatID, h.complete(ctx, userID))
	case "streak", "get_streak":
		h.send(ctx, chatID, h.streak(ctx, userID))
	case "leaderboard":
		h.send(ctx, chatID, h.leaderboard(ctx))
	case "reflect", "add_reflection":
		h.send(ctx, chatID, h.reflect(ctx, userID, args))
	case "edit_habit":
		h.send(ctx, chatID, h.editHabit(ctx, userID, args))
	case "broadcast", "admin_broadcast":
		h.send(ctx, chatID, h.adminBroadcast(ctx, args))
	case "leave":
		h.send(ctx, chatID, h.leave(ctx, userID))
	default:
		h.send(ctx, chatID, unknownCommand)
	}
}

// Wait blocks until background broadcasts started by admins have finished.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) menu(ctx context.Context, chatID int64) {
	err := h.Out.SendKeyboard(ctx, chatID, startText,
		[]string{"/complete", "/streak"},
		[]string{"/reflect", "/leaderboard"},
	)
	if err != nil {
		h.Log.Warn("send menu", "chat", chatID, "err", err)
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if err := h.Out.Send(ctx, chatID, text); err != nil {
		h.Log.Warn("reply failed", "chat", chatID, "err", err)
	}
}

func (h *Handler) onboard(ctx context.Context, userID int64, handle, args string) string {
	registered, err := h.DB.IsRegistered(ctx, userID)
	if err != nil {
		h.Log.Error("onboard: lookup", "user", userID, "err", err)
		return somethingWrong
	}
	if registered {
		return alreadyOnboarded
	}

	parts := strings.Split(args, "|")
	if len(parts) != 5 {
		return onboardUsage + strings.Join(models.Categories, ", ")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if !models.ValidCategory(parts[3]) {
		return invalidCategory
	}
	consent, ok := parseConsent(parts[4])
	if !ok {
		return invalidConsent
	}

	// Starting from yesterday keeps the first rollover from recording a miss.
	u := &models.User{
		ID:                userID,
		Handle:            handle,
		Habit:             parts[0],
		Location:          parts[1],
		TimePeriod:        parts[2],
		Category:          parts[3],
		ReflectionConsent: consent,
		LastDone:          h.Clock.FormatDay(h.Clock.Yesterday()),
	}
	if err := h.DB.AddUser(ctx, u); err != nil {
		h.Log.Error("onboard: add user", "user", userID, "err", err)
		return somethingWrong
	}
	h.Log.Info("user onboarded", "user", userID, "category", u.Category)
	return onboardDone
}

func parseConsent(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "yes", "y", "i'm down to share!":
		return true, true
	case "no", "n", "i'd rather just reflect myself.":
		return false, true
	}
	return false, false
}

func (h *Handler) complete(ctx context.Context, userID int64) string {
	credited, err := h.Ledger.RecordCompletion(ctx, userID)
	switch {
	case errors.Is(err, ledger.ErrUnknownUser):
		return notOnboarded
	case err != nil:
		h.Log.Error("record completion", "user", userID, "err", err)
		return somethingWrong
	case !credited:
		return completeDuplicate
	}
	return completeCredited
}

func (h *Handler) streak(ctx context.Context, userID int64) string {
	u, err := h.DB.GetUser(ctx, userID)
	if err != nil {
		h.Log.Error("get streak", "user", userID, "err", err)
		return somethingWrong
	}
	if u == nil {
		return notOnboarded
	}
	text := formatStreak(u.Streak)
	if text == "" {
		return noStreak
	}
	text += "\n\nPoints: " + strconv.Itoa(u.Points)
	if h.Ledger.Broken(u) {
		text += brokenWarning
	}
	return text
}

func (h *Handler) leaderboard(ctx context.Context) string {
	entries, err := h.DB.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		h.Log.Error("leaderboard", "err", err)
		return somethingWrong
	}
	return formatLeaderboard(entries)
}

func (h *Handler) reflect(ctx context.Context, userID int64, text string) string {
	if text == "" {
		return reflectUsage
	}
	registered, err := h.DB.IsRegistered(ctx, userID)
	if err != nil {
		h.Log.Error("reflect: lookup", "user", userID, "err", err)
		return somethingWrong
	}
	if !registered {
		return notOnboarded
	}
	r := &models.Reflection{
		AuthorID:  userID,
		Text:      text,
		CreatedAt: h.Clock.Now().Format("2006-01-02 15:04:05"),
	}
	if err := h.DB.AddReflection(ctx, r); err != nil {
		h.Log.Error("add reflection", "user", userID, "err", err)
		return somethingWrong
	}
	return reflectDone
}

func (h *Handler) editHabit(ctx context.Context, userID int64, habit string) string {
	if habit == "" {
		return editUsage
	}
	registered, err := h.DB.IsRegistered(ctx, userID)
	if err != nil {
		h.Log.Error("edit habit: lookup", "user", userID, "err", err)
		return somethingWrong
	}
	if !registered {
		return notOnboarded
	}
	if err := h.DB.UpdateHabit(ctx, userID, habit, "", ""); err != nil {
		h.Log.Error("edit habit", "user", userID, "err", err)
		return somethingWrong
	}
	return editDone
}

// adminBroadcast queues a message to every user. The send runs in the
// background so update handling is not held up by pacing.
func (h *Handler) adminBroadcast(ctx context.Context, args string) string {
	password, text, _ := strings.Cut(args, " ")
	if password == "" {
		return broadcastUsage
	}
	if h.AdminPassword == "" || password != h.AdminPassword {
		return wrongPassword
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return broadcastUsage
	}

	ids, err := h.DB.ListUserIDs(ctx)
	if err != nil {
		h.Log.Error("admin broadcast: list users", "err", err)
		return somethingWrong
	}
	if len(ids) == 0 {
		h.Log.Warn("admin broadcast: no users")
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		res := h.Dispatcher.Broadcast(context.WithoutCancel(ctx), text, ids)
		h.Log.Info("admin broadcast done", "sent", res.Sent, "failed", res.Failed)
	}()
	return broadcastQueued
}

func (h *Handler) leave(ctx context.Context, userID int64) string {
	if err := h.DB.ClearData(ctx, userID); err != nil {
		h.Log.Error("clear data", "user", userID, "err", err)
		return somethingWrong
	}
	return leaveDone
}
