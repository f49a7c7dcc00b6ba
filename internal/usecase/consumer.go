package usecase

import (
	"context"
	"log/slog"
)

// Strategy finds unanalyzed articles and hands each to process until ctx ends.
type Strategy interface {
	Consume(ctx context.Context, process ProcessFunc) error
}

// Consumer runs the enrichment loop with the configured strategy.
type Consumer struct {
	strategy Strategy
	enricher *Enricher
	logger   *slog.Logger
}

// NewConsumer pairs a strategy with the shared enricher.
func NewConsumer(strategy Strategy, enricher *Enricher, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{strategy: strategy, enricher: enricher, logger: log}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("enrichment consumer started")
	err := c.strategy.Consume(ctx, c.enricher.Process)
	c.logger.Info("enrichment consumer stopped")
	return err
}
