package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/crawler"
)

func TestVietStockDiscoverPostsFormAndStopsOnBlankPage(t *testing.T) {
	t.Parallel()

	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/StartPage/ChannelContentPage" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			http.Error(w, "missing xhr header", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("channelID") != "144" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		pages.Add(1)
		if r.PostForm.Get("page") != "1" {
			fmt.Fprint(w, "   ")
			return
		}
		fmt.Fprint(w, `
		<div class="single_post post_type12 type20 mb20 channelContent"><h4><a href="/2025/12/vn-index-1.htm">One</a></h4></div>
		<div class="single_post post_type12 type20 mb20 channelContent"><h4><a href="/2025/12/vn-index-2.htm">Two</a></h4></div>
		<div class="single_post post_type12 type20 mb20 channelContent"><h4><a href="/2025/12/vn-index-1.htm">One again</a></h4></div>`)
	}))
	defer srv.Close()

	src := NewVietStockSource(config.SourceConfig{Name: "vietstock", Options: map[string]string{"baseUrl": srv.URL}}, srv.Client(), discardLogger())
	urls := src.DiscoverURLs(context.Background())

	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %v", urls)
	}
	if urls[0] != srv.URL+"/2025/12/vn-index-1.htm" || urls[1] != srv.URL+"/2025/12/vn-index-2.htm" {
		t.Fatalf("unexpected urls: %v", urls)
	}
	if got := pages.Load(); got != 2 {
		t.Fatalf("expected discovery to stop after the blank page, got %d requests", got)
	}
}

func TestVietStockExtractFields(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<h1>VN-Index tăng mạnh</h1>
	<span class="date">26/12/2025 16:01</span>
	<div id="vst_detail">
	  <p class="pTitle">Tiêu đề phụ</p>
	  <p class="pSubTitle">Sapo</p>
	  <p>FILI - Thị trường khởi sắc.</p>
	  <p><img src="chart.png"/>Chart</p>
	  <p>Đvt: tỷ đồng</p>
	  <p>Dòng tiền cải thiện.</p>
	  <p>Nguồn: Vietstock</p>
	</div>
	</body></html>`

	src := NewVietStockSource(config.SourceConfig{}, nil, discardLogger())
	doc, err := src.Parse(crawler.Raw{URL: "https://vietstock.vn/a.htm", Body: []byte(page)})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	fields, ok := src.ExtractFields(doc)
	if !ok {
		t.Fatalf("expected fields to be extracted")
	}
	fields = src.Clean(fields)

	if fields.Title != "VN-Index tăng mạnh" {
		t.Fatalf("unexpected title: %q", fields.Title)
	}
	if fields.Body != "Thị trường khởi sắc.\nDòng tiền cải thiện." {
		t.Fatalf("unexpected body: %q", fields.Body)
	}
	want := time.Date(2025, time.December, 26, 9, 1, 0, 0, time.UTC)
	if !fields.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %v", fields.PublishedAt)
	}
}

func TestVietStockParseDate(t *testing.T) {
	t.Parallel()

	src := NewVietStockSource(config.SourceConfig{}, nil, discardLogger())
	src.now = func() time.Time { return time.Date(2025, time.December, 26, 10, 0, 0, 0, time.UTC) }

	cases := map[string]time.Time{
		"5 phút trước":     time.Date(2025, time.December, 26, 9, 55, 0, 0, time.UTC),
		"2 giờ trước":      time.Date(2025, time.December, 26, 8, 0, 0, 0, time.UTC),
		"26/12/2025 16:01": time.Date(2025, time.December, 26, 9, 1, 0, 0, time.UTC),
		"3 ngày trước":     {},
		"hôm qua":          {},
		"":                 {},
	}

	for raw, want := range cases {
		if got := src.parseDate(raw); !got.Equal(want) {
			t.Fatalf("parseDate(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestVietStockCleanIsIdempotent(t *testing.T) {
	t.Parallel()

	src := NewVietStockSource(config.SourceConfig{}, nil, discardLogger())
	once := src.Clean(crawler.Fields{Title: " Tin ", Body: " FILI - Cổ phiếu FILI tăng "})
	if once.Title != "Tin" || once.Body != "Cổ phiếu  tăng" {
		t.Fatalf("unexpected cleaned fields: %+v", once)
	}
	if twice := src.Clean(once); twice != once {
		t.Fatalf("clean is not idempotent: %+v vs %+v", twice, once)
	}
}
