package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"telegram-habit-streaks/internal/broadcast"
	"telegram-habit-streaks/internal/jobs"
	"telegram-habit-streaks/internal/scheduler"
)

const secretPath = "/run/secrets/telegram_bot_token"

var ErrNoToken = errors.New("bot token not found: neither Docker secret nor TELEGRAM_BOT_TOKEN is set")

// Config is filled by kong from flags, then environment (including .env).
type Config struct {
	DBPath        string `name:"db" env:"STREAKS_DB" default:"/root/data/bot.db" help:"SQLite database file."`
	LogDir        string `name:"log-dir" env:"STREAKS_LOG_DIR" default:".root/logs" help:"Directory for rotating log files. Empty disables file logging."`
	Debug         bool   `env:"STREAKS_DEBUG" help:"Verbose logging."`
	AdminPassword string `name:"admin-password" env:"ADMIN_PW" help:"Password for /broadcast."`

	OffsetHours int    `name:"utc-offset" env:"STREAKS_UTC_OFFSET" default:"5" help:"Fixed UTC offset in hours that defines a calendar day."`
	RolloverAt  string `name:"rollover-at" env:"STREAKS_ROLLOVER_AT" default:"06:13" help:"Daily streak rollover (HH:MM, local offset)."`
	BrokenAt    string `name:"broken-at" env:"STREAKS_BROKEN_AT" default:"06:14" help:"Daily broken-streak notice (HH:MM, local offset)."`
	ReminderAt  string `name:"reminder-at" env:"STREAKS_REMINDER_AT" default:"17:00" help:"Daily reminder (HH:MM, local offset)."`

	ReflectionAnchor string        `name:"reflection-anchor" env:"STREAKS_REFLECTION_ANCHOR" default:"2024-03-23T00:00:00Z" help:"First reflection relay (RFC3339)."`
	ReflectionEvery  time.Duration `name:"reflection-every" env:"STREAKS_REFLECTION_EVERY" default:"72h" help:"Reflection relay interval. 0 disables it."`

	SendDelay  time.Duration `name:"send-delay" env:"STREAKS_SEND_DELAY" default:"100ms" help:"Pause after every outbound message."`
	BurstPause time.Duration `name:"burst-pause" env:"STREAKS_BURST_PAUSE" default:"1s" help:"Extra pause after every burst."`
	BurstSize  int           `name:"burst-size" env:"STREAKS_BURST_SIZE" default:"29" help:"Messages per burst."`
	Watchdog   time.Duration `name:"watchdog" env:"STREAKS_WATCHDOG" default:"10m" help:"Longest a scheduled job may run before it is reported as hung."`
}

func (c *Config) Validate() error {
	if c.OffsetHours < -12 || c.OffsetHours > 14 {
		return fmt.Errorf("utc-offset %d out of range", c.OffsetHours)
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("burst-size must be positive, got %d", c.BurstSize)
	}
	if c.SendDelay < 0 || c.BurstPause < 0 {
		return errors.New("send-delay and burst-pause must not be negative")
	}
	if c.ReflectionEvery < 0 {
		return errors.New("reflection-every must not be negative")
	}
	_, err := c.Schedule()
	return err
}

func (c *Config) Offset() time.Duration {
	return time.Duration(c.OffsetHours) * time.Hour
}

func (c *Config) Dispatch() broadcast.Config {
	return broadcast.Config{Delay: c.SendDelay, Pause: c.BurstPause, BurstSize: c.BurstSize}
}

func (c *Config) Schedule() (jobs.Schedule, error) {
	var (
		sch jobs.Schedule
		err error
	)
	if sch.Rollover, err = c.daily("rollover-at", c.RolloverAt); err != nil {
		return sch, err
	}
	if sch.Broken, err = c.daily("broken-at", c.BrokenAt); err != nil {
		return sch, err
	}
	if sch.Reminder, err = c.daily("reminder-at", c.ReminderAt); err != nil {
		return sch, err
	}

	if c.ReflectionEvery == 0 {
		sch.DisableReflections = true
		return sch, nil
	}
	anchor, err := time.Parse(time.RFC3339, c.ReflectionAnchor)
	if err != nil {
		return sch, fmt.Errorf("reflection-anchor: %w", err)
	}
	sch.Reflections = scheduler.Every{Anchor: anchor, Interval: c.ReflectionEvery}
	return sch, nil
}

func (c *Config) daily(flag, hm string) (scheduler.DailyAt, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hm))
	if err != nil {
		return scheduler.DailyAt{}, fmt.Errorf("%s: want HH:MM, got %q", flag, hm)
	}
	return scheduler.DailyAt{Hour: t.Hour(), Minute: t.Minute(), Offset: c.Offset()}, nil
}

// BotToken prefers the Docker secret over the environment.
func BotToken() (string, error) {
	return botToken(secretPath)
}

func botToken(secret string) (string, error) {
	if data, err := os.ReadFile(secret); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token, nil
		}
	}
	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "BOT_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(key)); token != "" {
			return token, nil
		}
	}
	return "", ErrNoToken
}
