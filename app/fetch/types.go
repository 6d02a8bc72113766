package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/crawlai/crawl-engine/app/database"
)

// RawDocument is one fetched item before normalization. Body may contain HTML.
type RawDocument struct {
	URL         string
	Title       string
	Body        string
	Summary     string
	PublishedAt *time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context, source database.Source) ([]RawDocument, error)
}

// Fetchers is the closed set of adapters, selected by source type.
type Fetchers struct {
	RSS Fetcher
	Web Fetcher
}

func (f Fetchers) For(t database.SourceType) (Fetcher, error) {
	var fetcher Fetcher
	switch t {
	case database.SourceTypeRSS:
		fetcher = f.RSS
	case database.SourceTypeWeb:
		fetcher = f.Web
	default:
		return nil, fmt.Errorf("unsupported source type %q", t)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for source type %q", t)
	}
	return fetcher, nil
}
