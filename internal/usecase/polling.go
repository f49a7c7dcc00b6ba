package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SentimentPipeline/internal/ports"
)

// errPassIncomplete reports that some articles of a pass are still unanalyzed.
var errPassIncomplete = errors.New("pass incomplete")

// PollingStrategy repeatedly queries for unanalyzed articles:
// query, process each, sleep, repeat.
type PollingStrategy struct {
	articles ports.ArticleStore
	interval time.Duration
	logger   *slog.Logger
}

// NewPollingStrategy polls articles every interval.
func NewPollingStrategy(articles ports.ArticleStore, interval time.Duration, log *slog.Logger) *PollingStrategy {
	if log == nil {
		log = slog.Default()
	}
	return &PollingStrategy{articles: articles, interval: interval, logger: log}
}

// Consume runs until ctx is cancelled. Query failures are retried after the
// same interval used between batches.
func (p *PollingStrategy) Consume(ctx context.Context, process ProcessFunc) error {
	p.logger.Info("polling for unanalyzed articles", "interval", p.interval)

	for ctx.Err() == nil {
		processed, err := p.Pass(ctx, process)
		switch {
		case errors.Is(err, errPassIncomplete):
			p.logger.Warn("batch partially processed", "articles", processed, "error", err)
		case err != nil:
			p.logger.Error("poll failed", "error", err)
		case processed > 0:
			p.logger.Info("batch processed", "articles", processed)
		}

		if !sleep(ctx, p.interval) {
			break
		}
	}
	return nil
}

// Pass processes every article currently unanalyzed and reports how many
// succeeded. Article failures are logged and do not stop the batch; when any
// occurred the returned error wraps errPassIncomplete.
func (p *PollingStrategy) Pass(ctx context.Context, process ProcessFunc) (int, error) {
	articles, err := p.articles.FindUnanalyzed(ctx)
	if err != nil {
		return 0, fmt.Errorf("query unanalyzed: %w", err)
	}

	processed, failed := 0, 0
	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		if err := process(context.WithoutCancel(ctx), article); err != nil {
			p.logger.Warn("article enrichment failed", "article_id", article.ID, "error", err)
			failed++
			continue
		}
		processed++
	}
	if processed+failed < len(articles) {
		return processed, fmt.Errorf("pass interrupted: %w", ctx.Err())
	}
	if failed > 0 {
		return processed, fmt.Errorf("%w: %d of %d articles failed", errPassIncomplete, failed, len(articles))
	}
	return processed, nil
}

// sleep waits d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
