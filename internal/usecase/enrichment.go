package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/metrics"
	"SentimentPipeline/internal/ports"
)

// ProcessFunc enriches a single article.
type ProcessFunc func(ctx context.Context, article domain.Article) error

// EnricherDeps wires the driven adapters used by the Enricher.
type EnricherDeps struct {
	Articles  ports.ArticleStore
	Facts     ports.SentimentStore
	Extractor ports.EntityExtractor
	Scorer    ports.SentimentScorer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Enricher turns one article into sentiment facts and marks it analyzed.
// Both consumer strategies share it.
type Enricher struct {
	articles  ports.ArticleStore
	facts     ports.SentimentStore
	extractor ports.EntityExtractor
	scorer    ports.SentimentScorer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewEnricher constructs the enrichment component.
func NewEnricher(deps EnricherDeps) *Enricher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Enricher{
		articles:  deps.Articles,
		facts:     deps.Facts,
		extractor: deps.Extractor,
		scorer:    deps.Scorer,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

// Process extracts tickers, scores the body and writes one fact per
// qualifying ticker before flagging the article. A failed fact write is
// logged and skipped; extraction, scoring or flag failures leave the article
// unanalyzed and are returned.
func (e *Enricher) Process(ctx context.Context, article domain.Article) error {
	log := e.logger.With("article_id", article.ID)

	if article.IsAnalyzed {
		log.Debug("article already analyzed")
		return nil
	}

	tickers, err := e.extractor.Extract(ctx, article.Title, article.Body)
	if err != nil {
		e.metrics.EnrichmentFailed()
		return fmt.Errorf("extract entities for %s: %w", article.ID, err)
	}

	sentiment, err := e.scorer.Score(ctx, article.Body)
	if err != nil {
		e.metrics.EnrichmentFailed()
		return fmt.Errorf("score %s: %w", article.ID, err)
	}

	qualifying := lo.Filter(lo.Uniq(tickers), func(t string, _ int) bool {
		return domain.QualifiesAsTicker(t)
	})

	analyzedAt := e.now().UTC()
	written := 0
	for _, ticker := range qualifying {
		record := domain.NewSentimentRecord(article.ID, ticker, sentiment, analyzedAt)
		if err := e.facts.Insert(ctx, record); err != nil {
			e.metrics.FactWritten(false)
			log.Warn("sentiment fact not written", "ticker", ticker, "error", err)
			continue
		}
		e.metrics.FactWritten(true)
		written++
	}

	if err := e.articles.MarkAnalyzed(ctx, article.ID); err != nil {
		e.metrics.EnrichmentFailed()
		return fmt.Errorf("mark %s analyzed: %w", article.ID, err)
	}

	e.metrics.Enriched()
	log.Info("article enriched",
		"label", sentiment.Label,
		"score", sentiment.Score,
		"tickers", qualifying,
		"facts", written,
	)
	return nil
}
