package fetch

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
)

const maxFeedBytes = 10 << 20

var _ Fetcher = (*RssFetcher)(nil)

type RssFetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewRssFetcher(httpClient *http.Client, userAgent string) *RssFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RssFetcher{httpClient: httpClient, userAgent: userAgent}
}

func (f *RssFetcher) Fetch(ctx context.Context, source database.Source) ([]RawDocument, error) {
	data, err := f.download(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.NewFetchError(apperr.ParseFailure, source.URL, err)
	}

	docs := make([]RawDocument, 0, len(feed.Items))
	skipped := 0
	for _, item := range feed.Items {
		doc, ok := toRawDocument(item)
		if !ok {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}

	if skipped > 0 {
		slog.Debug("Skipped malformed feed entries", "source", source.ID, "skipped", skipped)
	}

	return docs, nil
}

func (f *RssFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.NewFetchError(apperr.NetworkFailure, url, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, Classify(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NewFetchError(apperr.NetworkFailure, url, fmt.Errorf("HTTP error: %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to read response body: %w", err), url)
	}

	return data, nil
}

// toRawDocument rejects entries that carry neither a link nor a title.
func toRawDocument(item *gofeed.Item) (RawDocument, bool) {
	if item == nil {
		return RawDocument{}, false
	}

	link := strings.TrimSpace(item.Link)
	title := strings.TrimSpace(item.Title)
	if link == "" && title == "" {
		return RawDocument{}, false
	}

	doc := RawDocument{
		URL:   link,
		Title: title,
		Body:  cmp.Or(item.Content, item.Description),
	}
	if item.Content != "" {
		doc.Summary = item.Description
	}

	switch {
	case item.PublishedParsed != nil:
		doc.PublishedAt = item.PublishedParsed
	case item.UpdatedParsed != nil:
		doc.PublishedAt = item.UpdatedParsed
	}

	return doc, true
}
