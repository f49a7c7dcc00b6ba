package ml

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"SentimentPipeline/internal/ports"
)

// Entity is one named-entity span returned by the NER model.
type Entity struct {
	Group string  `json:"entity_group"`
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

var tickerByName = map[string]string{
	"bitcoin":  "BTC",
	"btc":      "BTC",
	"ethereum": "ETH",
	"eth":      "ETH",
	"tether":   "USDT",
	"usdt":     "USDT",
	"binance":  "BNB",
	"bnb":      "BNB",
	"solana":   "SOL",
	"sol":      "SOL",
	"ripple":   "XRP",
	"xrp":      "XRP",
}

var knownTickers = []string{"BTC", "ETH", "USDT", "BNB", "SOL", "XRP"}

const maxTickerLength = 5

// EntityClient turns NER output into ticker symbols.
type EntityClient struct {
	client *Client
}

var _ ports.EntityExtractor = (*EntityClient)(nil)

// NewEntityClient wraps the shared inference client.
func NewEntityClient(c *Client) *EntityClient {
	return &EntityClient{client: c}
}

// Extract returns the distinct tickers found in the article, in first-seen order.
func (e *EntityClient) Extract(ctx context.Context, title, body string) ([]string, error) {
	text := title + "." + body

	var resp struct {
		Entities []Entity `json:"entities"`
	}
	if err := e.client.post(ctx, "/entities", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}

	return Tickers(resp.Entities, text), nil
}

// Tickers maps ORG and MISC entities through the ticker lexicon and adds any
// known ticker written literally in text.
func Tickers(entities []Entity, text string) []string {
	fromEntities := lo.FilterMap(entities, func(ent Entity, _ int) (string, bool) {
		if ent.Group != "ORG" && ent.Group != "MISC" {
			return "", false
		}
		return tickerFor(ent.Word)
	})

	words := strings.Fields(strings.NewReplacer("/", " ", ".", " ").Replace(strings.ToUpper(text)))
	fromText := lo.Filter(knownTickers, func(ticker string, _ int) bool {
		return lo.Contains(words, ticker)
	})

	return lo.Uniq(append(fromEntities, fromText...))
}

// tickerFor may return subword pieces such as "##TC"; callers filter those
// with domain.QualifiesAsTicker.
func tickerFor(word string) (string, bool) {
	if ticker, ok := tickerByName[strings.ToLower(strings.ReplaceAll(word, "#", ""))]; ok {
		return ticker, true
	}
	if utf8.RuneCountInString(word) <= maxTickerLength && isUpper(word) {
		return word, true
	}
	return "", false
}

func isUpper(word string) bool {
	hasLetter := false
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
