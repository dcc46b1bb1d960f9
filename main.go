package main

import (
	"telegram-habit-streaks/internal/config"
	"telegram-habit-streaks/internal/logger"
	"telegram-habit-streaks/internal/utils"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

type CLI struct {
	config.Config `embed:""`

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the bot and its scheduled jobs."`
	Rollover  RolloverCmd  `cmd:"" help:"Run the streak rollover once."`
	RunJob    RunJobCmd    `cmd:"" name:"run-job" help:"Fire one scheduled job now."`
	Broadcast BroadcastCmd `cmd:"" help:"Send a message to every user."`
	Score     ScoreCmd     `cmd:"" help:"Print the points a streak encoding is worth."`
}

func main() {
	_ = godotenv.Load() // TELEGRAM_BOT_TOKEN, ADMIN_PW etc.

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("habit-streaks"),
		kong.Description("Telegram habit streak tracker with scheduled reminders."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(cli.Config.Validate())

	log, err := logger.New(logger.Config{Debug: cli.Debug, LogDir: cli.LogDir})
	utils.Must(err)

	ctx.FatalIfErrorf(ctx.Run(&cli.Config, log))
}
