package messages

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends plain text messages through the Bot API.
type Telegram struct {
	Bot *tgbotapi.BotAPI
}

func NewTelegram(bot *tgbotapi.BotAPI) *Telegram {
	return &Telegram{Bot: bot}
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.Bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendKeyboard sends text with a one-time reply keyboard, one row per slice.
func (t *Telegram) SendKeyboard(ctx context.Context, chatID int64, text string, rows ...[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var kbRows [][]tgbotapi.KeyboardButton
	for _, r := range rows {
		var btns []tgbotapi.KeyboardButton
		for _, label := range r {
			btns = append(btns, tgbotapi.NewKeyboardButton(label))
		}
		kbRows = append(kbRows, tgbotapi.NewKeyboardButtonRow(btns...))
	}
	kb := tgbotapi.NewReplyKeyboard(kbRows...)
	kb.OneTimeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	_, err := t.Bot.Send(msg)
	return err
}
