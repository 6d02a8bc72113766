package ingest

import (
	"context"
	"fmt"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/fetch"
)

// KeyChecker is the part of the content store the deduplicator needs.
type KeyChecker interface {
	HasContentKey(ctx context.Context, dedupKey string) (bool, error)
}

// Deduplicator normalizes the documents of one run. It remembers keys it has
// already accepted so siblings in the same run can't both get through.
type Deduplicator struct {
	keys KeyChecker
	seen map[string]bool
}

func NewDeduplicator(keys KeyChecker) *Deduplicator {
	return &Deduplicator{keys: keys, seen: make(map[string]bool)}
}

// Normalize returns a candidate, a *apperr.ValidationError for empty or
// known content, or a store error.
func (d *Deduplicator) Normalize(ctx context.Context, doc fetch.RawDocument, source database.Source) (*Candidate, error) {
	c, err := Prepare(doc, source)
	if err != nil {
		return nil, err
	}

	if d.seen[c.DedupKey] {
		return nil, &apperr.ValidationError{Kind: apperr.DuplicateContent, URL: c.URL}
	}

	exists, err := d.keys.HasContentKey(ctx, c.DedupKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if exists {
		return nil, &apperr.ValidationError{Kind: apperr.DuplicateContent, URL: c.URL}
	}

	d.seen[c.DedupKey] = true
	return c, nil
}
