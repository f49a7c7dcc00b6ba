package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentimentPipeline/internal/domain"
)

func TestEntityClientExtract(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entities", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Tether mints 1B USDT.Bitcoin faces resistance", req["text"])

		_ = json.NewEncoder(w).Encode(map[string]any{"entities": []Entity{
			{Group: "ORG", Word: "Tether", Score: 0.99},
			{Group: "PER", Word: "Satoshi", Score: 0.91},
			{Group: "MISC", Word: "USDT", Score: 0.88},
		}})
	}))
	defer srv.Close()

	extractor := NewEntityClient(NewClient(srv.URL+"/", "secret").WithHTTPClient(srv.Client()))
	tickers, err := extractor.Extract(context.Background(), "Tether mints 1B USDT", "Bitcoin faces resistance")

	require.NoError(t, err)
	assert.Equal(t, []string{"USDT"}, tickers)
}

func TestEntityClientPropagatesFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewEntityClient(NewClient(srv.URL, "").WithHTTPClient(srv.Client())).Extract(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestTickers(t *testing.T) {
	t.Parallel()

	entities := []Entity{
		{Group: "ORG", Word: "Bitcoin"},
		{Group: "ORG", Word: "##coin"},
		{Group: "MISC", Word: "##TC"},
		{Group: "ORG", Word: "SEC"},
		{Group: "ORG", Word: "BlackRock"},
		{Group: "LOC", Word: "USA"},
		{Group: "ORG", Word: "Solana"},
	}

	got := Tickers(entities, "ETH/BTC pair slides. xrp holders wait")

	assert.Equal(t, []string{"BTC", "##TC", "SEC", "SOL", "ETH", "XRP"}, got)
}

func TestSentimentClientScore(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/sentiment", r.URL.Path)
		_, _ = w.Write([]byte(`{"label":"negative","score":0.912345}`))
	}))
	defer srv.Close()

	scorer := NewSentimentClient(NewClient(srv.URL, "").WithHTTPClient(srv.Client()))

	got, err := scorer.Score(context.Background(), "Regulators ban mining")
	require.NoError(t, err)
	assert.Equal(t, domain.Sentiment{Label: "negative", Score: -0.9123, Confidence: 0.912345}, got)

	blank, err := scorer.Score(context.Background(), "  \n\t")
	require.NoError(t, err)
	assert.Equal(t, domain.NeutralSentiment(), blank)
	assert.Equal(t, int32(1), calls.Load(), "blank text must not reach the model")
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label      string
		confidence float64
		want       float64
	}{
		{"positive", 0.82, 0.82},
		{"Positive", 0.123456, 0.1235},
		{"negative", 0.5, -0.5},
		{"neutral", 0.97, 0},
		{"unknown", 0.4, 0},
	}

	for _, tc := range cases {
		got := Normalize(tc.label, tc.confidence)
		assert.InDelta(t, tc.want, got.Score, 1e-9, tc.label)
		assert.Equal(t, tc.confidence, got.Confidence)
		assert.GreaterOrEqual(t, got.Score, -1.0)
		assert.LessOrEqual(t, got.Score, 1.0)
	}
}
