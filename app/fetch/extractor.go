package fetch

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

type Extracted struct {
	Title   string
	Text    string
	Excerpt string
}

type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Run pulls the main article out of a rendered page. When readability finds
// nothing usable it falls back to the visible body text.
func (e *ContentExtractor) Run(html string, pageURL *url.URL) (*Extracted, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		slog.Debug("Content extracted successfully",
			"url", pageURL.String(),
			"title", article.Title,
			"content_length", len(article.TextContent))

		return &Extracted{
			Title:   strings.TrimSpace(article.Title),
			Text:    article.TextContent,
			Excerpt: strings.TrimSpace(article.Excerpt),
		}, nil
	}

	doc, qerr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if qerr != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", qerr)
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	return &Extracted{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  doc.Find("body").Text(),
	}, nil
}
