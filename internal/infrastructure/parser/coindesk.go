package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/crawler"
	"SentimentPipeline/internal/domain"
)

const (
	coinDeskBaseURL = "https://www.coindesk.com"
	coinDeskListURL = "https://www.coindesk.com/tag/bitcoin"
	coinDeskPages   = 20

	minParagraphRunes         = 30
	minFallbackParagraphRunes = 20
)

var (
	coinDeskBoilerplate = []string{"sign me up", "terms of use", "privacy policy", "edited by"}
	repeatedNewlines    = regexp.MustCompile(`\n+`)
)

// CoinDeskSource crawls the paginated bitcoin tag listing.
type CoinDeskSource struct {
	name     string
	baseURL  string
	listURL  string
	maxPages int
	client   *http.Client
	logger   *slog.Logger
}

var _ crawler.Source = (*CoinDeskSource)(nil)

// NewCoinDeskSource reads baseUrl, listUrl and pages from the source options.
func NewCoinDeskSource(cfg config.SourceConfig, client *http.Client, log *slog.Logger) *CoinDeskSource {
	return &CoinDeskSource{
		name:     sourceName(cfg, "coindesk"),
		baseURL:  strings.TrimSuffix(optionString(cfg.Options, "baseUrl", coinDeskBaseURL), "/"),
		listURL:  strings.TrimSuffix(optionString(cfg.Options, "listUrl", coinDeskListURL), "/"),
		maxPages: optionInt(cfg.Options, "pages", coinDeskPages),
		client:   clientOrDefault(client),
		logger:   log,
	}
}

// Name identifies the source in stored articles.
func (c *CoinDeskSource) Name() string {
	return c.name
}

// DiscoverURLs walks listing pages until one is empty or fails.
func (c *CoinDeskSource) DiscoverURLs(ctx context.Context) []string {
	var (
		urls []string
		seen = map[string]struct{}{}
	)

	for page := 1; page <= c.maxPages; page++ {
		pageURL := fmt.Sprintf("%s/%d", c.listURL, page)
		c.logger.Debug("fetch listing page", "url", pageURL)

		raw, err := getPage(ctx, c.client, pageURL)
		if err != nil {
			c.logger.Error("listing page failed", "page", page, "error", err)
			break
		}
		doc, err := crawler.ParseHTML(raw)
		if err != nil {
			c.logger.Error("listing page unparsable", "page", page, "error", err)
			break
		}

		links := doc.DOM.Find("a.content-card-title")
		if links.Length() == 0 {
			c.logger.Warn("no articles found on listing page", "page", page)
			break
		}

		links.Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" {
				return
			}
			full := c.absolute(href)
			if _, dup := seen[full]; dup {
				return
			}
			seen[full] = struct{}{}
			urls = append(urls, full)
		})
	}

	return urls
}

func (c *CoinDeskSource) absolute(href string) string {
	if strings.HasPrefix(href, "/") {
		return c.baseURL + href
	}
	return href
}

// FetchRaw downloads the article page.
func (c *CoinDeskSource) FetchRaw(ctx context.Context, url string) (crawler.Raw, error) {
	return getPage(ctx, c.client, url)
}

// Parse builds the DOM.
func (c *CoinDeskSource) Parse(raw crawler.Raw) (*crawler.Document, error) {
	return crawler.ParseHTML(raw)
}

// ExtractFields prefers JSON-LD metadata and falls back to the page markup.
func (c *CoinDeskSource) ExtractFields(doc *crawler.Document) (crawler.Fields, bool) {
	if doc == nil || doc.DOM == nil {
		return crawler.Fields{}, false
	}

	title, published := c.schemaMetadata(doc.DOM)
	if title == "" {
		title = strings.TrimSpace(doc.DOM.Find("h1").First().Text())
	}

	paragraphs := bodyParagraphs(doc.DOM)
	if len(paragraphs) == 0 {
		doc.DOM.Find("article p").Each(func(_ int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if utf8.RuneCountInString(text) > minFallbackParagraphRunes {
				paragraphs = append(paragraphs, text)
			}
		})
	}

	fields := crawler.Fields{
		Title:       title,
		Body:        strings.Join(paragraphs, "\n"),
		PublishedAt: published,
	}
	return fields, title != ""
}

func (c *CoinDeskSource) schemaMetadata(dom *goquery.Document) (string, time.Time) {
	script := dom.Find(`script#schema[type="application/ld+json"]`).First()
	if script.Length() == 0 {
		return "", time.Time{}
	}

	var payload any
	if err := json.Unmarshal([]byte(script.Text()), &payload); err != nil {
		c.logger.Error("json-ld parsing error", "error", err)
		return "", time.Time{}
	}

	node := schemaNode(payload)
	if node == nil {
		return "", time.Time{}
	}

	title, _ := node["headline"].(string)
	var published time.Time
	if raw, ok := node["datePublished"].(string); ok && raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			published = t.UTC()
		}
	}
	return strings.TrimSpace(title), published
}

func schemaNode(payload any) map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			return schemaNode(graph)
		}
		return v
	case []any:
		for _, item := range v {
			if node, ok := item.(map[string]any); ok {
				if _, has := node["headline"]; has {
					return node
				}
			}
		}
	}
	return nil
}

func bodyParagraphs(dom *goquery.Document) []string {
	var (
		out  []string
		seen = map[string]struct{}{}
	)
	dom.Find(`div[class*="document-body"], div[class*="at-body"]`).Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) <= minParagraphRunes {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		lower := strings.ToLower(text)
		for _, marker := range coinDeskBoilerplate {
			if strings.Contains(lower, marker) {
				return
			}
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	return out
}

// Clean trims and collapses blank lines.
func (c *CoinDeskSource) Clean(fields crawler.Fields) crawler.Fields {
	fields.Title = strings.TrimSpace(fields.Title)
	fields.Body = repeatedNewlines.ReplaceAllString(strings.TrimSpace(fields.Body), "\n")
	return fields
}

// Format assembles the stored article.
func (c *CoinDeskSource) Format(url string, fields crawler.Fields) domain.Article {
	return crawler.NewArticle(c.name, url, fields)
}
