package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
)

type CrawlSourceTask struct {
	Task
	sources database.SourceRepository
	runner  Runner
	slot    *slot
}

// NewCrawlSourceTask builds a crawl for an already claimed slot. Crawl
// failures feed the health tracker instead of being retried.
func NewCrawlSourceTask(sourceID string, sources database.SourceRepository, runner Runner, s *slot) *CrawlSourceTask {
	task := NewTask(TaskTypeCrawlSource, sourceID)
	task.MaxRetries = 0

	return &CrawlSourceTask{
		Task:    task,
		sources: sources,
		runner:  runner,
		slot:    s,
	}
}

func (t *CrawlSourceTask) Execute(ctx context.Context) error {
	defer t.slot.release()

	runCtx, cancel, ok := t.slot.begin(ctx)
	if !ok {
		slog.Debug("Crawl cancelled before start", "source", t.SourceID)
		return nil
	}
	defer cancel()

	// Re-read so an administrative change made while queued is honored.
	source, err := t.sources.GetSource(runCtx, t.SourceID)
	if err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}
	if source == nil {
		return fmt.Errorf("source %s: %w", t.SourceID, apperr.ErrNotFound)
	}
	if source.Status == database.StatusInactive {
		slog.Debug("Source inactive, skipping crawl", "source", t.SourceID)
		return nil
	}

	report, err := t.runner.Run(runCtx, *source)
	if err != nil {
		if kind, ok := apperr.FetchKindOf(err); ok && kind == apperr.Cancelled {
			slog.Info("Task cancelled", "type", string(t.Type), "source", t.SourceID, "duration", t.GetDuration())
			return nil
		}
		return fmt.Errorf("failed to crawl source: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"source", t.SourceID,
		"run", report.RunID,
		"fetched", report.Fetched,
		"new", report.New,
		"duplicates", report.Duplicates,
		"empty", report.Empty,
		"filtered", report.Filtered,
		"notified", report.Notified,
		"status", report.Status,
		"duration", t.GetDuration())

	return nil
}
