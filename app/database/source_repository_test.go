package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/database/dbtest"
)

func testSource(id string) database.Source {
	return database.Source{
		ID:                   id,
		Name:                 "Source " + id,
		URL:                  "https://example.com/" + id + ".xml",
		Type:                 database.SourceTypeRSS,
		CrawlIntervalMinutes: 30,
	}
}

func TestUpsertAndGetSource(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()

	src := testSource("tech")
	src.Type = database.SourceTypeWeb
	src.Web = database.WebOptions{LinkSelector: "a.article", WaitSelector: "main", MaxLinks: 5}

	if err := store.Sources.UpsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}

	got, err := store.Sources.GetSource(ctx, "tech")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Expected source, got nil")
	}
	if got.Status != database.StatusActive {
		t.Errorf("Expected default status active, got %s", got.Status)
	}
	if got.DedupBy != database.DedupByURL {
		t.Errorf("Expected default dedup_by url, got %s", got.DedupBy)
	}
	if got.Web.LinkSelector != "a.article" || got.Web.MaxLinks != 5 {
		t.Errorf("Unexpected web options: %+v", got.Web)
	}
	if got.LastCrawledAt != nil {
		t.Errorf("Expected nil last_crawled_at, got %v", got.LastCrawledAt)
	}
}

func TestGetSourceMissing(t *testing.T) {
	store := dbtest.New(t)

	got, err := store.Sources.GetSource(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing source, got %+v", got)
	}
}

func TestUpsertPreservesHealth(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"))

	crawled := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	err := store.Sources.UpdateSourceHealth(ctx, "a", database.SourceHealth{
		Status:        database.StatusError,
		ErrorCount:    3,
		LastCrawledAt: crawled,
		LastError:     "fetch timeout",
	})
	if err != nil {
		t.Fatal(err)
	}

	updated := testSource("a")
	updated.Name = "Renamed"
	updated.CrawlIntervalMinutes = 90
	if err := store.Sources.UpsertSource(ctx, updated); err != nil {
		t.Fatal(err)
	}

	got, err := store.Sources.GetSource(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Renamed" || got.CrawlIntervalMinutes != 90 {
		t.Errorf("Expected configuration to update, got %+v", got)
	}
	if got.Status != database.StatusError || got.ErrorCount != 3 {
		t.Errorf("Expected health to survive upsert, got status=%s error_count=%d", got.Status, got.ErrorCount)
	}
	if got.LastCrawledAt == nil || !got.LastCrawledAt.Equal(crawled) {
		t.Errorf("Expected last_crawled_at %v, got %v", crawled, got.LastCrawledAt)
	}
	if got.LastError != "fetch timeout" {
		t.Errorf("Expected last error to be kept, got %q", got.LastError)
	}
}

func TestUpdateSourceHealthSkipsInactive(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"))

	if err := store.Sources.SetSourceStatus(ctx, "a", database.StatusInactive); err != nil {
		t.Fatal(err)
	}

	crawled := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	err := store.Sources.UpdateSourceHealth(ctx, "a", database.SourceHealth{
		Status:        database.StatusActive,
		ErrorCount:    1,
		LastCrawledAt: crawled,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := store.Sources.GetSource(ctx, "a")
	if got.Status != database.StatusInactive || got.ErrorCount != 0 {
		t.Errorf("Expected inactive source health untouched, got status=%s error_count=%d", got.Status, got.ErrorCount)
	}
	if got.LastCrawledAt == nil || !got.LastCrawledAt.Equal(crawled) {
		t.Errorf("Expected last_crawled_at to be recorded, got %v", got.LastCrawledAt)
	}
}

func TestUpdateSourceHealthKeepsLastSuccess(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"))

	success := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Sources.UpdateSourceHealth(ctx, "a", database.SourceHealth{
		Status: database.StatusActive, LastCrawledAt: success, LastSuccessAt: &success,
	}); err != nil {
		t.Fatal(err)
	}

	failed := success.Add(time.Hour)
	if err := store.Sources.UpdateSourceHealth(ctx, "a", database.SourceHealth{
		Status: database.StatusActive, ErrorCount: 1, LastCrawledAt: failed, LastError: "boom",
	}); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Sources.GetSource(ctx, "a")
	if got.LastSuccessAt == nil || !got.LastSuccessAt.Equal(success) {
		t.Errorf("Expected last_success_at %v, got %v", success, got.LastSuccessAt)
	}
	if got.ErrorCount != 1 || got.LastError != "boom" {
		t.Errorf("Unexpected failure fields: %+v", got)
	}
}

func TestSetSourceStatus(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"))

	if err := store.Sources.UpdateSourceHealth(ctx, "a", database.SourceHealth{
		Status: database.StatusError, ErrorCount: 5, LastCrawledAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	if err := store.Sources.SetSourceStatus(ctx, "a", database.StatusActive); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Sources.GetSource(ctx, "a")
	if got.Status != database.StatusActive || got.ErrorCount != 0 {
		t.Errorf("Expected reactivation to reset error count, got %s/%d", got.Status, got.ErrorCount)
	}

	err := store.Sources.SetSourceStatus(ctx, "missing", database.StatusInactive)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Sources.SetSourceStatus(ctx, "a", "paused"); err == nil {
		t.Error("Expected invalid status error")
	}
}

func TestListSources(t *testing.T) {
	store := dbtest.New(t)
	dbtest.Seed(t, store, testSource("b"), testSource("a"))

	sources, err := store.Sources.ListSources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].ID != "a" || sources[1].ID != "b" {
		t.Errorf("Expected sources ordered by id, got %s, %s", sources[0].ID, sources[1].ID)
	}
}
