package ingest

import (
	"strings"
	"time"

	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/keyword"
)

type Scorer struct {
	notifyThreshold float64
}

func NewScorer(notifyThreshold float64) *Scorer {
	return &Scorer{notifyThreshold: notifyThreshold}
}

// ScoringText is what the keyword index sees for a candidate.
func ScoringText(c Candidate) string {
	return strings.Join([]string{c.Title, c.Summary, c.Body}, "\n")
}

// Score turns a candidate into a content record. It depends only on its
// arguments.
func (s *Scorer) Score(c Candidate, idx *keyword.Index, id string, collectedAt time.Time) database.Content {
	result := idx.Score(ScoringText(c))

	return database.Content{
		ID:              id,
		SourceID:        c.SourceID,
		URL:             c.URL,
		Title:           c.Title,
		Summary:         c.Summary,
		Body:            c.Body,
		ContentHash:     c.ContentHash,
		DedupKey:        c.DedupKey,
		PublishedAt:     c.PublishedAt,
		CollectedAt:     collectedAt,
		ImportanceScore: result.Score,
		MatchedKeywords: result.MatchedKeywords,
		Categories:      result.Categories,
		NotifyEligible:  result.Score > 0 && result.Score >= s.notifyThreshold,
	}
}
