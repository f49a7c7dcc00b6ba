package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"SentimentPipeline/internal/ports"
	"SentimentPipeline/pkg/logger"
)

var errAlreadyStarted = errors.New("scheduler already started")

// immediateEvery fires at the first opportunity and then every interval.
type immediateEvery struct {
	interval time.Duration
	fired    bool
}

func (s *immediateEvery) Next(t time.Time) time.Time {
	if !s.fired {
		s.fired = true
		return t
	}
	return t.Add(s.interval)
}

type entry struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context)
}

// CronScheduler runs named jobs on fixed intervals via robfig/cron.
// Runs of one job never overlap and a panicking run does not affect others.
type CronScheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries []entry
	names   map[string]struct{}
	started bool
	logger  *slog.Logger
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds an idle scheduler.
func NewCronScheduler(log *slog.Logger) *CronScheduler {
	if log == nil {
		log = slog.Default()
	}
	bridge := logger.NewCron(log)
	return &CronScheduler{
		cron: cron.New(
			cron.WithLogger(bridge),
			cron.WithChain(cron.Recover(bridge), cron.SkipIfStillRunning(bridge)),
		),
		names:  map[string]struct{}{},
		logger: log,
	}
}

// Every registers job under a unique name. Jobs must be registered before Start.
func (c *CronScheduler) Every(name string, interval time.Duration, job func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	if job == nil {
		return fmt.Errorf("job %s: nil func", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errAlreadyStarted
	}
	if _, dup := c.names[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	c.names[name] = struct{}{}
	c.entries = append(c.entries, entry{name: name, interval: interval, job: job})
	return nil
}

// Start schedules every job with its first run due immediately. Jobs receive ctx.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errAlreadyStarted
	}
	c.started = true

	for _, e := range c.entries {
		c.cron.Schedule(&immediateEvery{interval: e.interval}, cron.FuncJob(func() {
			e.job(ctx)
		}))
		c.logger.Info("job scheduled", "job", e.name, "interval", e.interval)
	}

	c.cron.Start()
	return nil
}

// Stop prevents new runs and waits for in-flight runs until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil
	}

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}
