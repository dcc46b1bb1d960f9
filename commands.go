package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"telegram-habit-streaks/internal/app"
	"telegram-habit-streaks/internal/config"
	"telegram-habit-streaks/internal/handlers"
	"telegram-habit-streaks/internal/jobs"
	"telegram-habit-streaks/internal/messages"
	"telegram-habit-streaks/internal/streak"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func newBot(logger *log.Logger) (*tgbotapi.BotAPI, error) {
	token, err := config.BotToken()
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot init: %w", err)
	}
	logger.Info("bot authorized", "user", bot.Self.UserName)
	return bot, nil
}

type ServeCmd struct{}

func (ServeCmd) Run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := newBot(logger)
	if err != nil {
		return err
	}
	out := messages.NewTelegram(bot)

	a, err := app.New(cfg, logger, out)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.Scheduler()
	if err != nil {
		return err
	}
	s.Start()

	h := &handlers.Handler{
		Out:           out,
		DB:            a.DB,
		Ledger:        a.Ledger,
		Dispatcher:    a.Dispatcher,
		Clock:         a.Clock,
		AdminPassword: cfg.AdminPassword,
		Log:           logger.WithPrefix("handlers"),
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message"}
	updates := bot.GetUpdatesChan(updateConfig)

	logger.Info("bot is running")
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case upd, ok := <-updates:
			if !ok {
				break loop
			}
			h.HandleUpdate(ctx, upd)
		}
	}

	logger.Info("shutting down")
	bot.StopReceivingUpdates()
	h.Wait()
	return s.Shutdown()
}

type RolloverCmd struct{}

func (RolloverCmd) Run(cfg *config.Config, logger *log.Logger) error {
	a, err := app.New(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	sum := a.Ledger.RolloverAllUsers(context.Background())
	fmt.Printf("users=%d appended=%d untouched=%d failed=%d\n", sum.Users, sum.Appended, sum.Untouched, sum.Failed)
	return nil
}

type RunJobCmd struct {
	Name string `arg:"" enum:"streak-reminder,broken-streak,streak-rollover,reflection-relay" help:"Job to fire."`
}

func (c RunJobCmd) Run(cfg *config.Config, logger *log.Logger) error {
	if c.Name == jobs.ReflectionJob && cfg.ReflectionEvery == 0 {
		return fmt.Errorf("%s is disabled", c.Name)
	}
	bot, err := newBot(logger)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, logger, messages.NewTelegram(bot))
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.Scheduler()
	if err != nil {
		return err
	}
	defer s.Shutdown()
	return s.RunNow(context.Background(), c.Name)
}

type BroadcastCmd struct {
	Text string `arg:"" help:"Message text."`
}

func (c BroadcastCmd) Run(cfg *config.Config, logger *log.Logger) error {
	bot, err := newBot(logger)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, logger, messages.NewTelegram(bot))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Broadcast(context.Background(), c.Text)
	if err != nil {
		return err
	}
	fmt.Printf("sent=%d failed=%d\n", res.Sent, res.Failed)
	return nil
}

type ScoreCmd struct {
	Streak string `arg:"" help:"Streak as 0/1 characters, oldest day first."`
}

func (c ScoreCmd) Run() error {
	s, err := streak.ParseStreak(c.Streak)
	if err != nil {
		return err
	}
	fmt.Println(streak.Score(s))
	return nil
}
