package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/crawler"
	"SentimentPipeline/internal/infrastructure/ml"
	"SentimentPipeline/internal/infrastructure/parser"
	"SentimentPipeline/internal/infrastructure/scheduler"
	"SentimentPipeline/internal/infrastructure/storage"
	"SentimentPipeline/internal/metrics"
	"SentimentPipeline/internal/ports"
	"SentimentPipeline/internal/usecase"
)

// runner is the long-running part of a process.
type runner interface {
	Run(ctx context.Context) error
}

// Application owns the store connections of one process and its main loop.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	main    runner
	closers []func(context.Context) error
}

// NewCrawlScheduler connects to the article store and wires every configured
// source into the crawl scheduler.
func NewCrawlScheduler(ctx context.Context, cfg config.Config, log *slog.Logger) (*Application, error) {
	a := &Application{cfg: cfg, logger: log, metrics: metrics.New()}

	articles, err := a.articleStore(ctx)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	registry := parser.NewRegistry(parser.NewHTTPClient(), log.With("component", "parser"))
	jobs, err := parser.BuildJobs(registry, cfg.Sources, cfg.Crawl.IntervalSeconds, log.With("component", "sources"))
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("configure sources: %w", err))
	}

	runnerLog := log.With("component", "crawler")
	a.main = usecase.NewCrawlScheduler(
		scheduler.NewCronScheduler(log.With("component", "cron")),
		crawler.NewRunner(crawler.NewGate(articles), a.metrics, runnerLog),
		jobs,
		a.metrics,
		log.With("component", "crawl-scheduler"),
	)
	return a, nil
}

// NewEnrichmentConsumer connects to both stores and wires the configured
// consumer strategy around the enricher.
func NewEnrichmentConsumer(ctx context.Context, cfg config.Config, log *slog.Logger) (*Application, error) {
	a := &Application{cfg: cfg, logger: log, metrics: metrics.New()}

	articles, err := a.articleStore(ctx)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	facts, err := a.sentimentStore(ctx)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	inference := ml.NewClient(cfg.Inference.URL, cfg.Inference.APIKey)
	enricher := usecase.NewEnricher(usecase.EnricherDeps{
		Articles:  articles,
		Facts:     facts,
		Extractor: ml.NewEntityClient(inference),
		Scorer:    ml.NewSentimentClient(inference),
		Metrics:   a.metrics,
		Logger:    log.With("component", "enricher"),
	})

	poll := usecase.NewPollingStrategy(articles, cfg.Consumer.PollInterval(), log.With("component", "poll"))

	var strategy usecase.Strategy = poll
	if cfg.Consumer.Strategy == config.StrategyChangeStream {
		tokens, err := a.tokenStore(ctx, articles.Collection().Database())
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		strategy = usecase.NewChangeFeedStrategy(usecase.ChangeFeedDeps{
			Feed:        storage.NewMongoChangeFeed(articles.Collection()),
			Tokens:      tokens,
			Resync:      poll,
			Retry:       cfg.Consumer.PollInterval(),
			MaxAttempts: cfg.Consumer.MaxEventAttempts,
			Metrics:     a.metrics,
			Logger:      log.With("component", "changefeed"),
		})
	}

	a.main = usecase.NewConsumer(strategy, enricher, log.With("component", "consumer", "strategy", cfg.Consumer.Strategy))
	return a, nil
}

func (a *Application) articleStore(ctx context.Context) (*storage.MongoArticleStore, error) {
	client, err := storage.ConnectMongo(ctx, a.cfg.Mongo.URI)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Disconnect)

	store := storage.NewMongoArticleStore(client.Database(a.cfg.Mongo.Database).Collection(a.cfg.Mongo.Collection))
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	a.logger.Info("article store ready", "database", a.cfg.Mongo.Database, "collection", a.cfg.Mongo.Collection)
	return store, nil
}

func (a *Application) sentimentStore(ctx context.Context) (*storage.SentimentRepository, error) {
	db, err := storage.ConnectPostgres(ctx, a.cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeSQL(db))

	repo := storage.NewSentimentRepository(db, a.cfg.Postgres.SentimentTable)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.logger.Info("sentiment store ready", "table", a.cfg.Postgres.SentimentTable)
	return repo, nil
}

func (a *Application) tokenStore(ctx context.Context, db *mongo.Database) (ports.TokenStore, error) {
	name := a.cfg.Consumer.CheckpointName
	if a.cfg.Consumer.TokenStore != config.TokenStoreRedis {
		return storage.NewMongoTokenStore(db.Collection(storage.CheckpointCollection), name), nil
	}

	client, err := storage.ConnectRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRedis(client))
	return storage.NewRedisTokenStore(client, name), nil
}

// Run blocks until ctx is cancelled, serving metrics when configured.
func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.WithoutCancel(ctx))

	if a.cfg.Metrics.Addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, a.cfg.Metrics.Addr, a.logger.With("component", "metrics")); err != nil {
				a.logger.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	return a.main.Run(ctx)
}

func (a *Application) fail(ctx context.Context, err error) error {
	a.close(context.WithoutCancel(ctx))
	return err
}

func (a *Application) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("closing connections", "error", err)
	}
}

func closeSQL(db *sqlx.DB) func(context.Context) error {
	return func(context.Context) error { return db.Close() }
}

func closeRedis(client *redis.Client) func(context.Context) error {
	return func(context.Context) error { return client.Close() }
}
