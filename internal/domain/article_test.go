package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQualifiesAsTicker(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"BTC":   true,
		"USDT":  true,
		"##x":   false,
		"##BTC": false,
		"AB":    false,
		"":      false,
	}

	for symbol, want := range cases {
		assert.Equal(t, want, QualifiesAsTicker(symbol), symbol)
	}
}

func TestNewSentimentRecord(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.December, 26, 16, 0, 0, 0, time.UTC)
	rec := NewSentimentRecord("a1", "USDT", Sentiment{Label: LabelPositive, Score: 0.82, Confidence: 0.82}, at)

	assert.Equal(t, "a1", rec.ArticleID)
	assert.Equal(t, "USDT", rec.TargetEntity)
	assert.InDelta(t, 0.82, rec.SentimentScore, 1e-9)
	assert.Equal(t, LabelPositive, rec.SentimentLabel)
	assert.InDelta(t, DefaultWeight, rec.Weight, 1e-9)
	assert.InDelta(t, 0.82, rec.ConfidentScore, 1e-9)
	assert.Equal(t, at, rec.AnalyzedAt)
}
