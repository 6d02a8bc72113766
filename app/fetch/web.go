package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
)

var _ Fetcher = (*WebFetcher)(nil)

type WebFetcher struct {
	browser         Browser
	extractor       *ContentExtractor
	defaultMaxLinks int
}

func NewWebFetcher(browser Browser, extractor *ContentExtractor, defaultMaxLinks int) *WebFetcher {
	if extractor == nil {
		extractor = NewContentExtractor()
	}
	if defaultMaxLinks <= 0 {
		defaultMaxLinks = 20
	}
	return &WebFetcher{browser: browser, extractor: extractor, defaultMaxLinks: defaultMaxLinks}
}

// Fetch renders the source page. A source with a link selector is a listing
// page: the links it selects are rendered as articles, one level deep only.
func (f *WebFetcher) Fetch(ctx context.Context, source database.Source) ([]RawDocument, error) {
	pageURL, err := url.Parse(source.URL)
	if err != nil {
		return nil, apperr.NewFetchError(apperr.ParseFailure, source.URL, fmt.Errorf("invalid source URL: %w", err))
	}

	html, err := f.browser.Render(ctx, source.URL, source.Web.WaitSelector)
	if err != nil {
		return nil, Classify(err, source.URL)
	}

	if source.Web.LinkSelector == "" {
		doc, err := f.extract(html, pageURL)
		if err != nil {
			return nil, apperr.NewFetchError(apperr.ParseFailure, source.URL, err)
		}
		return []RawDocument{doc}, nil
	}

	maxLinks := source.Web.MaxLinks
	if maxLinks <= 0 {
		maxLinks = f.defaultMaxLinks
	}

	links, err := ExtractLinks(html, pageURL, source.Web.LinkSelector, maxLinks)
	if err != nil {
		return nil, apperr.NewFetchError(apperr.ParseFailure, source.URL, err)
	}
	if len(links) == 0 {
		slog.Warn("Listing page yielded no links", "source", source.ID, "selector", source.Web.LinkSelector)
		return []RawDocument{}, nil
	}

	docs := make([]RawDocument, 0, len(links))
	var lastErr error
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, Classify(err, link.String())
		}

		doc, err := f.fetchArticle(ctx, link, source.Web.WaitSelector)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, Classify(err, link.String())
			}
			slog.Debug("Skipping article", "source", source.ID, "url", link.String(), "error", err)
			lastErr = err
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 && lastErr != nil {
		return nil, Classify(lastErr, source.URL)
	}

	return docs, nil
}

func (f *WebFetcher) fetchArticle(ctx context.Context, link *url.URL, waitSelector string) (RawDocument, error) {
	html, err := f.browser.Render(ctx, link.String(), waitSelector)
	if err != nil {
		return RawDocument{}, err
	}

	doc, err := f.extract(html, link)
	if err != nil {
		return RawDocument{}, apperr.NewFetchError(apperr.ParseFailure, link.String(), err)
	}
	return doc, nil
}

func (f *WebFetcher) extract(html string, pageURL *url.URL) (RawDocument, error) {
	extracted, err := f.extractor.Run(html, pageURL)
	if err != nil {
		return RawDocument{}, err
	}

	return RawDocument{
		URL:     pageURL.String(),
		Title:   extracted.Title,
		Body:    extracted.Text,
		Summary: extracted.Excerpt,
	}, nil
}

// ExtractLinks resolves the hrefs matched by selector against base. Matched
// elements that are not anchors contribute their first descendant anchor.
// Fragment-only and non-HTTP links are ignored; the result is de-duplicated
// and capped at limit.
func ExtractLinks(html string, base *url.URL, selector string, limit int) ([]*url.URL, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	seen := make(map[string]bool)
	var links []*url.URL

	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			href, ok = sel.Find("a[href]").First().Attr("href")
		}
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		abs.Fragment = ""

		key := abs.String()
		if seen[key] || key == base.String() {
			return true
		}
		seen[key] = true
		links = append(links, abs)

		return limit <= 0 || len(links) < limit
	})

	return links, nil
}
