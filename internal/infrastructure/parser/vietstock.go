package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/crawler"
	"SentimentPipeline/internal/domain"
)

const (
	vietStockBaseURL   = "https://vietstock.vn"
	vietStockListPath  = "/StartPage/ChannelContentPage"
	vietStockReferer   = "https://vietstock.vn/chung-khoan.htm"
	vietStockChannelID = "144"
	vietStockPages     = 10

	vietStockDateLayout = "02/01/2006 15:04"
)

var (
	vietnamZone = time.FixedZone("ICT", 7*60*60)

	relativeAmount = regexp.MustCompile(`(\d+)`)
	absoluteDate   = regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}`)
	vietStockNoise = []string{"FILI - ", "FILI"}
)

// VietStockSource crawls the stock-market channel through its paging endpoint.
type VietStockSource struct {
	name      string
	baseURL   string
	channelID string
	maxPages  int
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time
}

var _ crawler.Source = (*VietStockSource)(nil)

// NewVietStockSource reads baseUrl, channelId and pages from the source options.
func NewVietStockSource(cfg config.SourceConfig, client *http.Client, log *slog.Logger) *VietStockSource {
	return &VietStockSource{
		name:      sourceName(cfg, "vietstock"),
		baseURL:   strings.TrimSuffix(optionString(cfg.Options, "baseUrl", vietStockBaseURL), "/"),
		channelID: optionString(cfg.Options, "channelId", vietStockChannelID),
		maxPages:  optionInt(cfg.Options, "pages", vietStockPages),
		client:    clientOrDefault(client),
		logger:    log,
		now:       time.Now,
	}
}

// Name identifies the source in stored articles.
func (v *VietStockSource) Name() string {
	return v.name
}

// DiscoverURLs requests listing fragments page by page and stops at the first
// blank or failed page.
func (v *VietStockSource) DiscoverURLs(ctx context.Context) []string {
	var (
		urls []string
		seen = map[string]struct{}{}
	)

	for page := 1; page <= v.maxPages; page++ {
		fragment, err := v.listingPage(ctx, page)
		if err != nil {
			v.logger.Error("listing page failed", "page", page, "error", err)
			break
		}
		if strings.TrimSpace(string(fragment)) == "" {
			v.logger.Debug("listing exhausted", "page", page)
			break
		}

		doc, err := crawler.ParseHTML(crawler.Raw{URL: v.baseURL + vietStockListPath, Body: fragment})
		if err != nil {
			v.logger.Error("listing page unparsable", "page", page, "error", err)
			break
		}

		found := 0
		doc.DOM.Find("div.single_post.post_type12.type20.mb20.channelContent").Each(func(_ int, item *goquery.Selection) {
			href, ok := item.Find("h4 a").First().Attr("href")
			if !ok || href == "" {
				return
			}
			full := href
			if strings.HasPrefix(href, "/") {
				full = v.baseURL + href
			}
			found++
			if _, dup := seen[full]; dup {
				return
			}
			seen[full] = struct{}{}
			urls = append(urls, full)
		})

		if found == 0 {
			v.logger.Warn("no articles found on listing page", "page", page)
			break
		}
	}

	return urls
}

func (v *VietStockSource) listingPage(ctx context.Context, page int) ([]byte, error) {
	form := url.Values{}
	form.Set("channelID", v.channelID)
	form.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+vietStockListPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("User-Agent", browserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", vietStockReferer)

	return doRequest(v.client, req)
}

// FetchRaw downloads the article page.
func (v *VietStockSource) FetchRaw(ctx context.Context, url string) (crawler.Raw, error) {
	return getPage(ctx, v.client, url)
}

// Parse builds the DOM.
func (v *VietStockSource) Parse(raw crawler.Raw) (*crawler.Document, error) {
	return crawler.ParseHTML(raw)
}

// ExtractFields reads the headline, publish date and article paragraphs.
func (v *VietStockSource) ExtractFields(doc *crawler.Document) (crawler.Fields, bool) {
	if doc == nil || doc.DOM == nil {
		return crawler.Fields{}, false
	}

	title := strings.TrimSpace(doc.DOM.Find("h1").First().Text())
	published := v.parseDate(strings.TrimSpace(doc.DOM.Find("span.date").First().Text()))

	var paragraphs []string
	doc.DOM.Find("#vst_detail p").Each(func(_ int, p *goquery.Selection) {
		if p.Find("img").Length() > 0 || p.HasClass("pTitle") || p.HasClass("pSubTitle") {
			return
		}
		text := strings.TrimSpace(p.Text())
		if text == "" || strings.HasPrefix(text, "Nguồn:") || strings.HasPrefix(text, "Đvt:") {
			return
		}
		paragraphs = append(paragraphs, text)
	})

	fields := crawler.Fields{
		Title:       title,
		Body:        strings.Join(paragraphs, "\n"),
		PublishedAt: published,
	}
	return fields, title != ""
}

// parseDate understands "5 phút trước", "2 giờ trước" and "26/12/2025 16:01".
// Unparsable values yield the zero time.
func (v *VietStockSource) parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "trước") {
		m := relativeAmount.FindString(lower)
		if m == "" {
			return time.Time{}
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return time.Time{}
		}
		now := v.now().In(vietnamZone)
		switch {
		case strings.Contains(lower, "phút"):
			return now.Add(-time.Duration(n) * time.Minute).UTC()
		case strings.Contains(lower, "giờ"):
			return now.Add(-time.Duration(n) * time.Hour).UTC()
		}
		return time.Time{}
	}

	if m := absoluteDate.FindString(raw); m != "" {
		t, err := time.ParseInLocation(vietStockDateLayout, strings.Join(strings.Fields(m), " "), vietnamZone)
		if err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Clean strips agency prefixes and surrounding whitespace.
func (v *VietStockSource) Clean(fields crawler.Fields) crawler.Fields {
	body := fields.Body
	for _, noise := range vietStockNoise {
		body = strings.ReplaceAll(body, noise, "")
	}
	fields.Title = strings.TrimSpace(fields.Title)
	fields.Body = strings.TrimSpace(body)
	return fields
}

// Format assembles the stored article.
func (v *VietStockSource) Format(url string, fields crawler.Fields) domain.Article {
	return crawler.NewArticle(v.name, url, fields)
}
