// Package crawler defines the six-stage source contract and the shared crawl orchestration.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"SentimentPipeline/internal/domain"
)

// Source is implemented by every news site. Sources differ only in their
// stage implementations; the Runner owns the orchestration.
type Source interface {
	Name() string
	// DiscoverURLs returns candidate article URLs. A failing listing page ends
	// discovery early but keeps the URLs collected so far.
	DiscoverURLs(ctx context.Context) []string
	// FetchRaw performs a single bounded network fetch without retries.
	FetchRaw(ctx context.Context, url string) (Raw, error)
	// Parse fails cleanly on malformed input.
	Parse(raw Raw) (*Document, error)
	// ExtractFields reports false when nothing usable was found.
	ExtractFields(doc *Document) (Fields, bool)
	// Clean must be pure and idempotent.
	Clean(fields Fields) Fields
	Format(url string, fields Fields) domain.Article
}

// Raw is the unparsed payload of an article page.
type Raw struct {
	URL  string
	Body []byte
}

// Document is a parsed article page.
type Document struct {
	URL string
	Raw []byte
	DOM *goquery.Document
}

// Fields are the values pulled out of a document.
type Fields struct {
	Title       string
	Body        string
	PublishedAt time.Time
}

// Job binds a source to its crawl cadence.
type Job struct {
	SourceName string
	Source     Source
	Interval   time.Duration
}

var errEmptyPayload = errors.New("empty payload")

// ParseHTML is the default parse stage for HTML sources.
func ParseHTML(raw Raw) (*Document, error) {
	if len(bytes.TrimSpace(raw.Body)) == 0 {
		return nil, errEmptyPayload
	}
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{URL: raw.URL, Raw: raw.Body, DOM: dom}, nil
}

// NewArticle assembles the persisted shape shared by all sources.
func NewArticle(sourceName, url string, fields Fields) domain.Article {
	published := fields.PublishedAt
	if published.IsZero() {
		published = time.Now().UTC()
	}
	return domain.Article{
		URL:           url,
		Title:         fields.Title,
		Body:          fields.Body,
		SourceName:    sourceName,
		ContentLength: utf8.RuneCountInString(fields.Body),
		IsAnalyzed:    false,
		PublishedAt:   published,
	}
}

// hasTitle mirrors the orchestration rule: items without a title are discarded.
func hasTitle(f Fields) bool {
	return strings.TrimSpace(f.Title) != ""
}
