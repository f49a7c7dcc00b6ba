package domain

import (
	"strings"
	"time"
)

// Article is a crawled news item, unique by URL.
type Article struct {
	ID            string
	URL           string
	Title         string
	Body          string
	SourceName    string
	ContentLength int
	IsAnalyzed    bool
	PublishedAt   time.Time
}

// Sentiment is the scorer output for a piece of text.
type Sentiment struct {
	Label      string
	Score      float64
	Confidence float64
}

// Sentiment labels emitted by the scorer.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// NeutralSentiment is returned for empty input.
func NeutralSentiment() Sentiment {
	return Sentiment{Label: LabelNeutral}
}

// SentimentRecord is one (article, entity) observation persisted to the fact store.
type SentimentRecord struct {
	ArticleID      string
	TargetEntity   string
	SentimentScore float64
	SentimentLabel string
	Weight         float64
	ConfidentScore float64
	AnalyzedAt     time.Time
}

// DefaultWeight is applied to every record until relevance weighting exists.
const DefaultWeight = 1.0

// NewSentimentRecord builds the fact row for a single ticker.
func NewSentimentRecord(articleID, ticker string, s Sentiment, at time.Time) SentimentRecord {
	return SentimentRecord{
		ArticleID:      articleID,
		TargetEntity:   ticker,
		SentimentScore: s.Score,
		SentimentLabel: s.Label,
		Weight:         DefaultWeight,
		ConfidentScore: s.Confidence,
		AnalyzedAt:     at,
	}
}

const (
	minTickerLength    = 3
	continuationMarker = "##"
)

// QualifiesAsTicker rejects short symbols and NER sub-token fragments.
func QualifiesAsTicker(symbol string) bool {
	return len(symbol) >= minTickerLength && !strings.HasPrefix(symbol, continuationMarker)
}

// ChangeEvent is an insert notification read from the article change feed.
type ChangeEvent struct {
	Token   []byte
	Article Article
}
