package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/ingest"
)

// Message is the payload delivered for one eligible content item.
type Message struct {
	SourceID        string    `json:"source_id"`
	SourceName      string    `json:"source_name"`
	ContentID       string    `json:"content_id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	ImportanceScore float64   `json:"importance_score"`
	MatchedKeywords []string  `json:"matched_keywords"`
	Categories      []string  `json:"categories"`
	CollectedAt     time.Time `json:"collected_at"`
}

func NewMessages(source database.Source, contents []database.Content) []Message {
	messages := make([]Message, 0, len(contents))
	for _, c := range contents {
		messages = append(messages, Message{
			SourceID:        source.ID,
			SourceName:      source.Name,
			ContentID:       c.ID,
			URL:             c.URL,
			Title:           c.Title,
			ImportanceScore: c.ImportanceScore,
			MatchedKeywords: c.MatchedKeywords,
			Categories:      c.Categories,
			CollectedAt:     c.CollectedAt,
		})
	}
	return messages
}

var (
	_ ingest.Notifier = (*LogNotifier)(nil)
	_ ingest.Notifier = (Multi)(nil)
)

type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, source database.Source, contents []database.Content) error {
	for _, c := range contents {
		slog.Info("Relevant content collected",
			"source", source.ID,
			"title", c.Title,
			"url", c.URL,
			"score", c.ImportanceScore,
			"keywords", c.MatchedKeywords)
	}
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []ingest.Notifier

func (m Multi) Notify(ctx context.Context, source database.Source, contents []database.Content) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, source, contents); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
