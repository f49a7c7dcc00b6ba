package parser

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/crawler"
	"SentimentPipeline/internal/domain"
)

const feedMaxItems = 20

// FeedSource discovers article links from an RSS or Atom feed and extracts the
// readable text of each linked page.
type FeedSource struct {
	name     string
	feedURL  string
	maxItems int
	client   *http.Client
	logger   *slog.Logger

	// published holds feed item dates from the latest DiscoverURLs call only.
	mu        sync.Mutex
	published map[string]time.Time
}

var _ crawler.Source = (*FeedSource)(nil)

// NewFeedSource requires the feedUrl option.
func NewFeedSource(cfg config.SourceConfig, client *http.Client, log *slog.Logger) (*FeedSource, error) {
	feedURL := optionString(cfg.Options, "feedUrl", "")
	if feedURL == "" {
		return nil, errMissingOption("feedUrl")
	}
	return &FeedSource{
		name:      sourceName(cfg, "feed"),
		feedURL:   feedURL,
		maxItems:  optionInt(cfg.Options, "maxItems", feedMaxItems),
		client:    clientOrDefault(client),
		logger:    log,
		published: map[string]time.Time{},
	}, nil
}

// Name identifies the source in stored articles.
func (f *FeedSource) Name() string {
	return f.name
}

// DiscoverURLs returns up to maxItems distinct item links in feed order.
func (f *FeedSource) DiscoverURLs(ctx context.Context) []string {
	raw, err := getPage(ctx, f.client, f.feedURL)
	if err != nil {
		f.logger.Error("feed fetch failed", "url", f.feedURL, "error", err)
		return nil
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw.Body))
	if err != nil {
		f.logger.Error("feed parse failed", "url", f.feedURL, "error", err)
		return nil
	}

	links := lo.Uniq(lo.FilterMap(parsed.Items, func(item *gofeed.Item, _ int) (string, bool) {
		link := itemLink(item)
		return link, link != ""
	}))
	if len(links) > f.maxItems {
		links = links[:f.maxItems]
	}

	published := make(map[string]time.Time, len(links))
	for _, item := range parsed.Items {
		if link := itemLink(item); lo.Contains(links, link) && item.PublishedParsed != nil {
			published[link] = item.PublishedParsed.UTC()
		}
	}
	f.mu.Lock()
	f.published = published
	f.mu.Unlock()

	return links
}

func itemLink(item *gofeed.Item) string {
	if item == nil {
		return ""
	}
	if item.Link != "" {
		return strings.TrimSpace(item.Link)
	}
	if strings.HasPrefix(item.GUID, "http") {
		return strings.TrimSpace(item.GUID)
	}
	return ""
}

// FetchRaw downloads the linked page.
func (f *FeedSource) FetchRaw(ctx context.Context, url string) (crawler.Raw, error) {
	return getPage(ctx, f.client, url)
}

// Parse builds the DOM.
func (f *FeedSource) Parse(raw crawler.Raw) (*crawler.Document, error) {
	return crawler.ParseHTML(raw)
}

// ExtractFields takes the title from page metadata and the body from the
// readability extraction, falling back to plain paragraphs.
func (f *FeedSource) ExtractFields(doc *crawler.Document) (crawler.Fields, bool) {
	if doc == nil || doc.DOM == nil {
		return crawler.Fields{}, false
	}

	title := metaContent(doc.DOM, `meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSpace(doc.DOM.Find("title").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(doc.DOM.Find("h1").First().Text())
	}

	fields := crawler.Fields{
		Title:       title,
		Body:        f.readableText(doc),
		PublishedAt: f.publishedAt(doc),
	}
	return fields, title != ""
}

func (f *FeedSource) readableText(doc *crawler.Document) string {
	pageURL, _ := url.Parse(doc.URL)
	article, err := readability.FromReader(bytes.NewReader(doc.Raw), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	} else {
		f.logger.Debug("readability failed", "url", doc.URL, "error", err)
	}

	paragraphs := doc.DOM.Find("p").Map(func(_ int, p *goquery.Selection) string {
		return strings.TrimSpace(p.Text())
	})
	return strings.Join(lo.Compact(paragraphs), "\n")
}

func (f *FeedSource) publishedAt(doc *crawler.Document) time.Time {
	if raw := metaContent(doc.DOM, `meta[property="article:published_time"]`); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[doc.URL]
}

func metaContent(dom *goquery.Document, selector string) string {
	v, _ := dom.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// Clean trims and collapses blank lines.
func (f *FeedSource) Clean(fields crawler.Fields) crawler.Fields {
	fields.Title = strings.TrimSpace(fields.Title)
	fields.Body = repeatedNewlines.ReplaceAllString(strings.TrimSpace(fields.Body), "\n")
	return fields
}

// Format assembles the stored article.
func (f *FeedSource) Format(url string, fields crawler.Fields) domain.Article {
	return crawler.NewArticle(f.name, url, fields)
}
