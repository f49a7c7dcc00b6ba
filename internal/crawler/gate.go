package crawler

import (
	"context"
	"errors"
	"fmt"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/ports"
)

// Store is the part of the article store the gate needs.
type Store interface {
	Exists(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, article domain.Article) (string, error)
}

// Outcome reports what StoreIfAbsent did.
type Outcome int

const (
	Stored Outcome = iota + 1
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Gate is the only write path for new articles; it refuses URLs already present.
//
// Two crawlers racing on the same URL can both pass Seen. The store's unique
// index turns the loser's insert into ports.ErrDuplicateArticle, reported as Skipped.
type Gate struct {
	store Store
}

// NewGate wraps an article store.
func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Seen reports whether url is already stored.
func (g *Gate) Seen(ctx context.Context, url string) (bool, error) {
	exists, err := g.store.Exists(ctx, url)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", url, err)
	}
	return exists, nil
}

// StoreIfAbsent inserts article unless its URL is already present.
func (g *Gate) StoreIfAbsent(ctx context.Context, article domain.Article) (domain.Article, Outcome, error) {
	seen, err := g.Seen(ctx, article.URL)
	if err != nil {
		return article, 0, err
	}
	if seen {
		return article, Skipped, nil
	}

	id, err := g.store.Insert(ctx, article)
	if errors.Is(err, ports.ErrDuplicateArticle) {
		return article, Skipped, nil
	}
	if err != nil {
		return article, 0, fmt.Errorf("insert %s: %w", article.URL, err)
	}

	article.ID = id
	return article, Stored, nil
}
