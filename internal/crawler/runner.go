package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/metrics"
)

// Stage names used in logs and metrics.
const (
	stageDedup   = "dedup"
	stageFetch   = "fetch"
	stageParse   = "parse"
	stageExtract = "extract"
	stageStore   = "store"
	stagePanic   = "panic"
)

// Runner executes the fixed crawl lifecycle for any Source.
type Runner struct {
	gate    *Gate
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRunner wires the dedup gate; metrics may be nil.
func NewRunner(gate *Gate, m *metrics.Metrics, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{gate: gate, metrics: m, logger: log}
}

// WithLogger returns a copy of r that logs through log.
func (r *Runner) WithLogger(log *slog.Logger) *Runner {
	cp := *r
	cp.logger = log
	return &cp
}

// Crawl runs discovery and then every URL in order, returning the newly stored
// articles. Failures are contained to the URL that caused them. Cancellation
// is honoured between URLs; a URL already started runs to completion.
func (r *Runner) Crawl(ctx context.Context, src Source) []domain.Article {
	log := r.logger.With("source", src.Name())

	urls := src.DiscoverURLs(ctx)
	log.Info("discovered urls", "count", len(urls))

	stored := make([]domain.Article, 0)
	skipped := 0
	for i, url := range urls {
		if ctx.Err() != nil {
			log.Warn("crawl interrupted", "remaining", len(urls)-i)
			break
		}

		article, outcome := r.crawlOne(context.WithoutCancel(ctx), log, src, url)
		switch outcome {
		case Stored:
			stored = append(stored, article)
		case Skipped:
			skipped++
		}
	}

	log.Info("crawl finished", "discovered", len(urls), "stored", len(stored), "skipped", skipped)
	return stored
}

func (r *Runner) crawlOne(ctx context.Context, log *slog.Logger, src Source, url string) (article domain.Article, outcome Outcome) {
	log = log.With("url", url)

	defer func() {
		if rec := recover(); rec != nil {
			r.drop(log, src, stagePanic, fmt.Errorf("%v", rec))
			outcome = 0
		}
	}()

	seen, err := r.gate.Seen(ctx, url)
	if err != nil {
		r.drop(log, src, stageDedup, err)
		return article, 0
	}
	if seen {
		log.Debug("article already stored, skipping")
		r.metrics.Skipped(src.Name())
		return article, Skipped
	}

	raw, err := src.FetchRaw(ctx, url)
	if err != nil {
		r.drop(log, src, stageFetch, err)
		return article, 0
	}

	doc, err := src.Parse(raw)
	if err != nil || doc == nil {
		r.drop(log, src, stageParse, err)
		return article, 0
	}

	fields, ok := src.ExtractFields(doc)
	if !ok || !hasTitle(fields) {
		r.drop(log, src, stageExtract, nil)
		return article, 0
	}

	article = src.Format(url, src.Clean(fields))

	article, outcome, err = r.gate.StoreIfAbsent(ctx, article)
	if err != nil {
		r.drop(log, src, stageStore, err)
		return article, 0
	}
	if outcome == Skipped {
		r.metrics.Skipped(src.Name())
		return article, Skipped
	}

	log.Info("article stored", "id", article.ID, "title", article.Title)
	return article, Stored
}

func (r *Runner) drop(log *slog.Logger, src Source, stage string, err error) {
	r.metrics.StageFailed(src.Name(), stage)
	if err != nil {
		log.Warn("url dropped", "stage", stage, "error", err)
		return
	}
	log.Warn("url dropped", "stage", stage)
}
