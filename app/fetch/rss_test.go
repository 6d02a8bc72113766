package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Tech News</title>
  <link>https://news.example.com</link>
  <item>
    <title>LLM 기반 신규 서비스 출시</title>
    <link>https://news.example.com/a?utm_source=rss</link>
    <description>Short summary</description>
    <content:encoded><![CDATA[<p>Full <b>article</b> body</p>]]></content:encoded>
    <pubDate>Mon, 03 Mar 2025 09:00:00 +0000</pubDate>
  </item>
  <item>
    <description>entry with neither link nor title</description>
  </item>
  <item>
    <title>Description only</title>
    <link>https://news.example.com/b</link>
    <description>Only a description here</description>
  </item>
</channel>
</rss>`

func rssSource(url string) database.Source {
	return database.Source{ID: "news", URL: url, Type: database.SourceTypeRSS, CrawlIntervalMinutes: 60}
}

func TestRssFetcherParsesEntries(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	f := NewRssFetcher(server.Client(), "CrawlEngine/1.0")
	docs, err := f.Fetch(context.Background(), rssSource(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	if gotUA != "CrawlEngine/1.0" {
		t.Errorf("Expected user agent to be sent, got %q", gotUA)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents (malformed entry skipped), got %d", len(docs))
	}

	first := docs[0]
	if first.Title != "LLM 기반 신규 서비스 출시" {
		t.Errorf("Unexpected title: %q", first.Title)
	}
	if first.Body != "<p>Full <b>article</b> body</p>" {
		t.Errorf("Expected encoded content as body, got %q", first.Body)
	}
	if first.Summary != "Short summary" {
		t.Errorf("Expected description as summary, got %q", first.Summary)
	}
	if first.PublishedAt == nil || !first.PublishedAt.Equal(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected published time: %v", first.PublishedAt)
	}

	second := docs[1]
	if second.Body != "Only a description here" || second.Summary != "" {
		t.Errorf("Expected description as body with no summary, got body=%q summary=%q", second.Body, second.Summary)
	}
}

func TestRssFetcherMalformedFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer server.Close()

	_, err := NewRssFetcher(server.Client(), "test").Fetch(context.Background(), rssSource(server.URL))

	kind, ok := apperr.FetchKindOf(err)
	if !ok || kind != apperr.ParseFailure {
		t.Errorf("Expected ParseFailure, got %v", err)
	}
}

func TestRssFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewRssFetcher(server.Client(), "test").Fetch(context.Background(), rssSource(server.URL))

	kind, ok := apperr.FetchKindOf(err)
	if !ok || kind != apperr.NetworkFailure {
		t.Errorf("Expected NetworkFailure, got %v", err)
	}
}

func TestRssFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewRssFetcher(server.Client(), "test").Fetch(ctx, rssSource(server.URL))

	kind, ok := apperr.FetchKindOf(err)
	if !ok || kind != apperr.Timeout {
		t.Errorf("Expected Timeout, got %v", err)
	}
}

func TestRssFetcherCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRssFetcher(server.Client(), "test").Fetch(ctx, rssSource(server.URL))

	kind, ok := apperr.FetchKindOf(err)
	if !ok || kind != apperr.Cancelled {
		t.Errorf("Expected Cancelled, got %v", err)
	}
}

func TestFetchersFor(t *testing.T) {
	rss := NewRssFetcher(nil, "test")
	set := Fetchers{RSS: rss}

	got, err := set.For(database.SourceTypeRSS)
	if err != nil || got != rss {
		t.Errorf("Expected rss fetcher, got %v %v", got, err)
	}
	if _, err := set.For(database.SourceTypeWeb); err == nil {
		t.Error("Expected error for unconfigured web fetcher")
	}
	if _, err := set.For("ftp"); err == nil {
		t.Error("Expected error for unknown source type")
	}
}
