package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/metrics"
	"SentimentPipeline/internal/ports"
)

const defaultMaxEventAttempts = 3

var (
	errStreamEnded = errors.New("change stream ended")
	// errResyncPending ends a bounded session so the resync pass runs again.
	errResyncPending = errors.New("resync pending")
)

// ChangeFeedStrategy consumes article inserts from the change feed and
// checkpoints the resume token after each successfully processed event.
//
// When the stored token cannot be resumed from, the token is dropped, the
// stream is reopened from now and a polling pass covers anything inserted
// in between. The same pass runs once whenever Consume starts. The pass
// is repeated every Retry until it leaves no article behind; meanwhile the
// stream is drained in windows of Retry.
//
// An event that fails MaxAttempts times in a row is given up on: its token is
// saved so later inserts keep flowing, and the article is left to the resync
// pass.
type ChangeFeedStrategy struct {
	feed        ports.ChangeFeed
	tokens      ports.TokenStore
	resync      *PollingStrategy
	retry       time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// ChangeFeedDeps wires the change feed strategy.
type ChangeFeedDeps struct {
	Feed        ports.ChangeFeed
	Tokens      ports.TokenStore
	Resync      *PollingStrategy
	Retry       time.Duration
	MaxAttempts int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// NewChangeFeedStrategy builds the strategy; Retry is the reconnect delay.
func NewChangeFeedStrategy(deps ChangeFeedDeps) *ChangeFeedStrategy {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = defaultMaxEventAttempts
	}
	return &ChangeFeedStrategy{
		feed:        deps.Feed,
		tokens:      deps.Tokens,
		resync:      deps.Resync,
		retry:       deps.Retry,
		maxAttempts: deps.MaxAttempts,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// feedState survives reconnects within one Consume call.
type feedState struct {
	token      []byte
	loaded     bool
	needResync bool
	// resynced holds ids enriched by resync passes of the current cycle so
	// their insert events are not enriched a second time.
	resynced map[string]struct{}

	failedToken string
	attempts    int
}

func (s *feedState) startResync() {
	if s.needResync {
		return
	}
	s.needResync = true
	s.resynced = map[string]struct{}{}
}

// track records articles the resync pass enriched.
func (s *feedState) track(process ProcessFunc) ProcessFunc {
	return func(ctx context.Context, article domain.Article) error {
		if err := process(ctx, article); err != nil {
			return err
		}
		s.resynced[article.ID] = struct{}{}
		return nil
	}
}

// Consume runs until ctx is cancelled.
func (c *ChangeFeedStrategy) Consume(ctx context.Context, process ProcessFunc) error {
	state := &feedState{}

	for ctx.Err() == nil {
		if !state.loaded {
			loaded, err := c.tokens.Load(ctx)
			if err != nil {
				c.logger.Error("load resume token failed", "error", err)
				if !sleep(ctx, c.retry) {
					break
				}
				continue
			}
			state.token, state.loaded = loaded, true
			state.startResync()
		}

		err := c.session(ctx, process, state)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, errResyncPending):
			continue
		case errors.Is(err, ports.ErrResumeTokenInvalid) && len(state.token) > 0:
			c.logger.Warn("resume token rejected, restarting from now with a resync pass", "error", err)
			if clearErr := c.tokens.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				c.logger.Error("clear resume token failed", "error", clearErr)
			}
			c.metrics.TokenReset()
			state.token = nil
			state.startResync()
			continue
		case err != nil:
			c.logger.Error("change stream interrupted, reconnecting", "error", err, "retry_in", c.retry)
		}

		if !sleep(ctx, c.retry) {
			break
		}
	}
	return nil
}

// session opens one stream, runs a pending resync pass and drains events
// until the stream fails or ctx ends. While articles remain for the resync
// pass, draining stops after retry so the pass can run again.
func (c *ChangeFeedStrategy) session(ctx context.Context, process ProcessFunc, state *feedState) error {
	stream, err := c.feed.Watch(ctx, state.token)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stream.Close(context.WithoutCancel(ctx)); closeErr != nil {
			c.logger.Debug("close change stream", "error", closeErr)
		}
	}()

	if len(state.token) > 0 {
		c.logger.Info("change stream resumed")
	} else {
		c.logger.Info("change stream opened from now")
	}

	drainCtx, bounded := ctx, false
	stopDrain := func() {}
	defer func() { stopDrain() }()
	bound := func() {
		if !bounded {
			drainCtx, stopDrain = context.WithTimeout(ctx, c.retry)
			bounded = true
		}
	}

	if state.needResync {
		if err := c.runResync(ctx, process, state); err != nil {
			return err
		}
		if state.needResync {
			bound()
		}
	}

	for stream.Next(drainCtx) {
		event := stream.Event()
		work := context.WithoutCancel(ctx)

		skipped, err := c.handle(work, process, state, event)
		if err != nil {
			return err
		}

		if err := c.tokens.Save(work, event.Token); err != nil {
			return fmt.Errorf("save resume token: %w", err)
		}
		state.token = event.Token

		if skipped && state.needResync {
			bound()
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	switch {
	case ctx.Err() != nil:
		return nil
	case bounded && drainCtx.Err() != nil:
		return errResyncPending
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return errStreamEnded
}

// runResync clears needResync only after a pass that left nothing behind.
func (c *ChangeFeedStrategy) runResync(ctx context.Context, process ProcessFunc, state *feedState) error {
	if c.resync == nil {
		state.needResync = false
		return nil
	}

	processed, err := c.resync.Pass(ctx, state.track(process))
	switch {
	case err == nil:
		state.needResync = false
		c.logger.Info("resync pass finished", "articles", processed)
		return nil
	case errors.Is(err, errPassIncomplete):
		c.logger.Warn("resync pass incomplete, repeating", "articles", processed, "error", err, "retry_in", c.retry)
		return nil
	default:
		return fmt.Errorf("resync: %w", err)
	}
}

// handle enriches one event. It reports skipped when the event was given up
// on after maxAttempts consecutive failures.
func (c *ChangeFeedStrategy) handle(ctx context.Context, process ProcessFunc, state *feedState, event domain.ChangeEvent) (bool, error) {
	id := event.Article.ID
	if id == "" {
		return false, nil
	}
	if _, done := state.resynced[id]; done {
		delete(state.resynced, id)
		c.logger.Debug("article already enriched by resync pass", "article_id", id)
		return false, nil
	}

	err := process(ctx, event.Article)
	if err == nil {
		state.failedToken, state.attempts = "", 0
		return false, nil
	}

	if key := string(event.Token); key != state.failedToken {
		state.failedToken, state.attempts = key, 0
	}
	state.attempts++
	if state.attempts < c.maxAttempts {
		return false, fmt.Errorf("process %s (attempt %d of %d): %w", id, state.attempts, c.maxAttempts, err)
	}

	c.logger.Error("giving up on change event, article left for resync",
		"article_id", id, "attempts", state.attempts, "error", err)
	c.metrics.EventSkipped()
	state.failedToken, state.attempts = "", 0
	state.startResync()
	return true, nil
}
