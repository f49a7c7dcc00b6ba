package ml

import (
	"context"
	"math"
	"strings"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/ports"
)

// SentimentClient scores text through the financial sentiment model.
type SentimentClient struct {
	client *Client
}

var _ ports.SentimentScorer = (*SentimentClient)(nil)

// NewSentimentClient wraps the shared inference client.
func NewSentimentClient(c *Client) *SentimentClient {
	return &SentimentClient{client: c}
}

// Score returns the signed sentiment of text. Blank text is neutral and never
// reaches the model.
func (s *SentimentClient) Score(ctx context.Context, text string) (domain.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.NeutralSentiment(), nil
	}

	var resp struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := s.client.post(ctx, "/sentiment", map[string]string{"text": text}, &resp); err != nil {
		return domain.Sentiment{}, err
	}

	return Normalize(resp.Label, resp.Score), nil
}

// Normalize signs the model confidence by label and rounds it to four places.
func Normalize(label string, confidence float64) domain.Sentiment {
	label = strings.ToLower(strings.TrimSpace(label))

	var score float64
	switch label {
	case domain.LabelPositive:
		score = confidence
	case domain.LabelNegative:
		score = -confidence
	}

	return domain.Sentiment{
		Label:      label,
		Score:      math.Round(score*10000) / 10000,
		Confidence: confidence,
	}
}
