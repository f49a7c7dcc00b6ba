package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/crawler"
)

const (
	defaultTimeout = 15 * time.Second
	maxPageBytes   = 10 << 20
	browserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// NewHTTPClient returns the bounded-timeout client shared by all sources.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func clientOrDefault(client *http.Client) *http.Client {
	if client == nil {
		return NewHTTPClient()
	}
	return client
}

func getPage(ctx context.Context, client *http.Client, pageURL string) (crawler.Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return crawler.Raw{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserAgent)

	body, err := doRequest(client, req)
	if err != nil {
		return crawler.Raw{}, err
	}
	return crawler.Raw{URL: pageURL, Body: body}, nil
}

func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", req.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	return body, nil
}

func sourceName(cfg config.SourceConfig, fallback string) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return fallback
}

func optionString(opts map[string]string, key, fallback string) string {
	if v, ok := opts[key]; ok && v != "" {
		return v
	}
	return fallback
}

func optionInt(opts map[string]string, key string, fallback int) int {
	v, ok := opts[key]
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
