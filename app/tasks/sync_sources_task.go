package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crawlai/crawl-engine/app/database"
)

type SyncSourcesTask struct {
	Task
	syncer  SourceSyncer
	sources database.SourceRepository
}

func NewSyncSourcesTask(syncer SourceSyncer, sources database.SourceRepository) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:    NewTask(TaskTypeSyncSources, ""),
		syncer:  syncer,
		sources: sources,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.syncer.Run(); err != nil {
		return fmt.Errorf("failed to load source configs: %w", err)
	}

	if err := t.syncer.Sync(ctx, t.sources); err != nil {
		return fmt.Errorf("failed to sync source configs to database: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration())

	return nil
}
