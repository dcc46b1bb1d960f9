package app

import (
	"context"
	"fmt"

	"telegram-habit-streaks/internal/broadcast"
	"telegram-habit-streaks/internal/config"
	"telegram-habit-streaks/internal/jobs"
	"telegram-habit-streaks/internal/ledger"
	"telegram-habit-streaks/internal/scheduler"
	"telegram-habit-streaks/internal/storage"
	"telegram-habit-streaks/internal/streak"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
)

// App wires the engine once at process start. Every component gets its
// collaborators from here.
type App struct {
	Config     *config.Config
	Log        *log.Logger
	Clock      streak.Clock
	DB         *storage.DB
	Ledger     *ledger.Ledger
	Dispatcher *broadcast.Dispatcher
	Jobs       *jobs.Jobs

	wall clockwork.Clock
}

// New opens the store and builds the engine. sender may be nil for commands
// that never send messages.
func New(cfg *config.Config, logger *log.Logger, sender broadcast.Sender) (*App, error) {
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}

	wall := clockwork.NewRealClock()
	clock := streak.NewClock(wall, cfg.Offset())
	l := ledger.New(db, clock, logger.WithPrefix("ledger"))
	d := broadcast.NewDispatcher(sender, cfg.Dispatch(), wall, logger.WithPrefix("broadcast"))

	return &App{
		Config:     cfg,
		Log:        logger,
		Clock:      clock,
		DB:         db,
		Ledger:     l,
		Dispatcher: d,
		Jobs:       jobs.New(db, l, d, clock, logger.WithPrefix("jobs")),
		wall:       wall,
	}, nil
}

// Scheduler builds a scheduler with every job registered. It is not started.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	sch, err := a.Config.Schedule()
	if err != nil {
		return nil, err
	}
	s, err := scheduler.New(a.wall, a.Config.Watchdog, a.Log.WithPrefix("scheduler"))
	if err != nil {
		return nil, err
	}
	if err := a.Jobs.Register(s, sch); err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	return s, nil
}

func (a *App) Broadcast(ctx context.Context, text string) (broadcast.Result, error) {
	ids, err := a.DB.ListUserIDs(ctx)
	if err != nil {
		return broadcast.Result{}, err
	}
	return a.Dispatcher.Broadcast(ctx, text, ids), nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
