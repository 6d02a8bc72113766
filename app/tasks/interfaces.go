package tasks

import (
	"context"

	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/ingest"
)

// Runner performs one crawl of a source. *ingest.Pipeline is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, source database.Source) (*ingest.Report, error)
}

// SourceSyncer reloads source definitions and writes them to the store.
type SourceSyncer interface {
	Run() error
	Sync(ctx context.Context, repo database.SourceRepository) error
}

// TaskSchedulerInterface is the command surface used by the HTTP API and the
// process runtime.
type TaskSchedulerInterface interface {
	Start() error
	Stop()
	EnqueueTask(task TaskInterface) error
	Tick(ctx context.Context) (*TickReport, error)
	Trigger(ctx context.Context, sourceID string) error
	Cancel(sourceID string) bool
	Stats() Stats
}
