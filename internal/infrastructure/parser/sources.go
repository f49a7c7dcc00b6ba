package parser

import (
	"fmt"
	"log/slog"
	"net/http"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/crawler"
)

// Source kinds understood by NewRegistry.
const (
	KindCoinDesk  = "coindesk"
	KindVietStock = "vietstock"
	KindFeed      = "feed"
)

func errMissingOption(name string) error {
	return fmt.Errorf("option %s is required", name)
}

// NewRegistry registers every built-in source kind over a shared HTTP client.
func NewRegistry(client *http.Client, log *slog.Logger) *crawler.Registry {
	if log == nil {
		log = slog.Default()
	}
	client = clientOrDefault(client)

	reg := crawler.NewRegistry()
	reg.Register(KindCoinDesk, func(cfg config.SourceConfig) (crawler.Source, error) {
		return NewCoinDeskSource(cfg, client, log.With("source", sourceName(cfg, KindCoinDesk))), nil
	})
	reg.Register(KindVietStock, func(cfg config.SourceConfig) (crawler.Source, error) {
		return NewVietStockSource(cfg, client, log.With("source", sourceName(cfg, KindVietStock))), nil
	})
	reg.Register(KindFeed, func(cfg config.SourceConfig) (crawler.Source, error) {
		return NewFeedSource(cfg, client, log.With("source", sourceName(cfg, KindFeed)))
	})
	return reg
}

// BuildJobs turns configured sources into scheduler jobs. Sources without
// their own interval use defaultSeconds.
func BuildJobs(reg *crawler.Registry, sources []config.SourceConfig, defaultSeconds int, log *slog.Logger) ([]crawler.Job, error) {
	if reg == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	jobs := make([]crawler.Job, 0, len(sources))
	seen := map[string]struct{}{}
	for _, cfg := range sources {
		src, err := reg.Build(cfg)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[src.Name()]; dup {
			return nil, fmt.Errorf("source %s is configured twice", src.Name())
		}
		seen[src.Name()] = struct{}{}

		job := crawler.Job{
			SourceName: src.Name(),
			Source:     src,
			Interval:   cfg.Interval(defaultSeconds),
		}
		if log != nil {
			log.Debug("crawl job configured", "source", job.SourceName, "kind", cfg.Kind, "interval", job.Interval)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
