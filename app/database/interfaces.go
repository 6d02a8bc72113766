package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	// UpsertSource writes configuration fields. Health fields of an existing
	// source are left untouched.
	UpsertSource(ctx context.Context, source Source) error
	GetSource(ctx context.Context, id string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)

	// UpdateSourceHealth always records last_crawled_at. Status, error count
	// and last error are skipped for inactive sources.
	UpdateSourceHealth(ctx context.Context, id string, health SourceHealth) error
	TouchSource(ctx context.Context, id string, crawledAt time.Time) error
	SetSourceStatus(ctx context.Context, id string, status SourceStatus) error
}

type ContentRepository interface {
	HasContentKey(ctx context.Context, dedupKey string) (bool, error)
	// InsertContents inserts every item whose dedup key is absent and returns
	// the ones actually written.
	InsertContents(ctx context.Context, contents []Content) ([]Content, error)
	ListContents(ctx context.Context, query ContentQuery) ([]Content, error)
	GetContentCount(ctx context.Context) (int, error)
}

type StatsRepository interface {
	CountSourcesByStatus(ctx context.Context) (map[SourceStatus]int, error)
	ListContentDigests(ctx context.Context, since time.Time) ([]ContentDigest, error)
}
