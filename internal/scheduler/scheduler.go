package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const DefaultWatchdog = 10 * time.Minute

var (
	ErrUnknownJob   = errors.New("scheduler: unknown job")
	ErrDuplicateJob = errors.New("scheduler: job already registered")
	ErrSkipped      = errors.New("scheduler: previous run still firing")
)

type State int

const (
	Idle State = iota
	Armed
	Firing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Firing:
		return "firing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Job is a named action with its trigger.
type Job struct {
	Name    string
	Trigger Trigger
	Run     func(ctx context.Context) error
}

type job struct {
	Job
	mu      sync.Mutex
	state   State
	skipped int
	cron    gocron.Job
}

// Scheduler fires jobs on their triggers. A job never runs concurrently
// with itself; different jobs may overlap.
type Scheduler struct {
	cron     gocron.Scheduler
	clock    clockwork.Clock
	log      *log.Logger
	watchdog time.Duration

	mu   sync.Mutex
	jobs map[string]*job
}

func New(clock clockwork.Clock, watchdog time.Duration, logger *log.Logger) (*Scheduler, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if watchdog <= 0 {
		watchdog = DefaultWatchdog
	}
	s := &Scheduler{
		clock:    clock,
		log:      logger,
		watchdog: watchdog,
		jobs:     make(map[string]*job),
	}

	cron, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(cronLogger{logger}),
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithError(func(id uuid.UUID, name string, err error) {
					if !errors.Is(err, ErrSkipped) {
						logger.Error("job failed", "job", name, "id", id, "err", err)
					}
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	s.cron = cron
	return s, nil
}

// Add registers a job. Jobs added after Start are armed immediately.
func (s *Scheduler) Add(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, j.Name)
	}

	jb := &job{Job: j}
	def, opts := j.Trigger.definition(s.clock.Now())
	opts = append(opts, gocron.WithName(j.Name))
	cj, err := s.cron.NewJob(def, gocron.NewTask(func() error {
		return s.fire(context.Background(), jb)
	}), opts...)
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", j.Name, err)
	}
	jb.cron = cj
	s.jobs[j.Name] = jb

	s.log.Info("job registered", "job", j.Name, "trigger", j.Trigger, "id", cj.ID())
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	s.log.Info("scheduler started", "jobs", n)
}

func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}

// RunNow fires a job outside its trigger and waits for it. It honours the
// same overlap rule as scheduled firings.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	jb, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.fire(ctx, jb)
}

func (s *Scheduler) State(name string) (State, error) {
	jb, err := s.lookup(name)
	if err != nil {
		return Idle, err
	}
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return jb.state, nil
}

// Skipped reports how many firings were dropped because of overlap.
func (s *Scheduler) Skipped(name string) (int, error) {
	jb, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return jb.skipped, nil
}

func (s *Scheduler) NextRun(name string) (time.Time, error) {
	jb, err := s.lookup(name)
	if err != nil {
		return time.Time{}, err
	}
	return jb.cron.NextRun()
}

func (s *Scheduler) lookup(name string) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jb, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return jb, nil
}

// fire moves a job Idle -> Armed -> Firing -> Idle. A hung body is logged
// once the watchdog expires; the job stays Firing until the body returns.
func (s *Scheduler) fire(parent context.Context, jb *job) error {
	jb.mu.Lock()
	if jb.state != Idle {
		jb.skipped++
		jb.mu.Unlock()
		s.log.Warn("skipping overlapping run", "job", jb.Name)
		return ErrSkipped
	}
	jb.state = Armed
	jb.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.watchdog)
	started := s.clock.Now()

	jb.mu.Lock()
	jb.state = Firing
	jb.mu.Unlock()
	s.log.Info("job firing", "job", jb.Name)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- jb.Run(ctx)
	}()

	finish := func(err error) {
		cancel()
		jb.mu.Lock()
		jb.state = Idle
		jb.mu.Unlock()
		s.log.Info("job finished", "job", jb.Name, "took", s.clock.Since(started), "err", err)
	}

	select {
	case err := <-done:
		finish(err)
		return err
	case <-ctx.Done():
		s.log.Error("job exceeded watchdog", "job", jb.Name, "watchdog", s.watchdog)
		go func() { finish(<-done) }()
		return fmt.Errorf("job %s: %w", jb.Name, ctx.Err())
	}
}

// cronLogger adapts charm log to gocron's Logger interface.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Debug(msg string, args ...any) { c.l.Debug(msg, args...) }
func (c cronLogger) Info(msg string, args ...any)  { c.l.Info(msg, args...) }
func (c cronLogger) Warn(msg string, args ...any)  { c.l.Warn(msg, args...) }
func (c cronLogger) Error(msg string, args ...any) { c.l.Error(msg, args...) }
