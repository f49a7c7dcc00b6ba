package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"SentimentPipeline/internal/crawler"
	"SentimentPipeline/internal/metrics"
	"SentimentPipeline/internal/ports"
)

// CrawlScheduler runs every crawl job on its own interval through the driver.
type CrawlScheduler struct {
	driver  ports.Scheduler
	runner  *crawler.Runner
	jobs    []crawler.Job
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCrawlScheduler wires jobs to the interval driver.
func NewCrawlScheduler(driver ports.Scheduler, runner *crawler.Runner, jobs []crawler.Job, m *metrics.Metrics, log *slog.Logger) *CrawlScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &CrawlScheduler{driver: driver, runner: runner, jobs: jobs, metrics: m, logger: log}
}

// Run starts all jobs and blocks until ctx is cancelled, then waits for
// in-flight runs to finish.
func (s *CrawlScheduler) Run(ctx context.Context) error {
	for _, job := range s.jobs {
		if err := s.driver.Every(job.SourceName, job.Interval, s.runJob(job)); err != nil {
			return fmt.Errorf("schedule %s: %w", job.SourceName, err)
		}
	}
	if err := s.driver.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.logger.Info("crawl scheduler started", "jobs", len(s.jobs))

	<-ctx.Done()
	s.logger.Info("stopping crawl scheduler, waiting for running jobs")
	return s.driver.Stop(context.WithoutCancel(ctx))
}

func (s *CrawlScheduler) runJob(job crawler.Job) func(ctx context.Context) {
	return func(ctx context.Context) {
		runLog := s.logger.With("run_id", uuid.NewString())
		log := runLog.With("source", job.SourceName)
		started := time.Now()

		defer func() {
			if rec := recover(); rec != nil {
				s.metrics.CrawlFinished(job.SourceName, 0, true)
				log.Error("crawl run failed", "panic", rec, "duration", time.Since(started))
			}
		}()

		log.Info("crawl run started")
		stored := s.runner.WithLogger(runLog).Crawl(ctx, job.Source)
		s.metrics.CrawlFinished(job.SourceName, len(stored), false)
		log.Info("crawl run finished", "stored", len(stored), "duration", time.Since(started))
	}
}
