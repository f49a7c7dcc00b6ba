package ports

import (
	"context"
	"errors"
	"time"

	"SentimentPipeline/internal/domain"
)

var (
	// ErrDuplicateArticle signals that another writer stored the same URL first.
	ErrDuplicateArticle = errors.New("article already stored")
	// ErrResumeTokenInvalid signals that the change feed cannot resume from the stored token.
	ErrResumeTokenInvalid = errors.New("resume token invalid or expired")
)

// ArticleStore is the document store holding raw articles keyed by URL.
type ArticleStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, article domain.Article) (string, error)
	FindUnanalyzed(ctx context.Context) ([]domain.Article, error)
	MarkAnalyzed(ctx context.Context, id string) error
}

// SentimentStore appends per-(article, entity) fact rows.
type SentimentStore interface {
	Insert(ctx context.Context, record domain.SentimentRecord) error
}

// EntityExtractor returns ticker symbols mentioned in an article.
type EntityExtractor interface {
	Extract(ctx context.Context, title, body string) ([]string, error)
}

// SentimentScorer scores free text; empty input yields a neutral result.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (domain.Sentiment, error)
}

// ChangeStream is an open cursor over article insert events.
type ChangeStream interface {
	Next(ctx context.Context) bool
	Event() domain.ChangeEvent
	Err() error
	Close(ctx context.Context) error
}

// ChangeFeed opens change streams; a nil token starts from now.
type ChangeFeed interface {
	Watch(ctx context.Context, resumeAfter []byte) (ChangeStream, error)
}

// TokenStore persists the last fully processed change feed position.
type TokenStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, token []byte) error
	Clear(ctx context.Context) error
}

// Scheduler drives named jobs on fixed intervals.
type Scheduler interface {
	Every(name string, interval time.Duration, job func(ctx context.Context)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
