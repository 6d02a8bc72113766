package database_test

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/database/dbtest"
)

func testContent(id, key string, collected time.Time) database.Content {
	return database.Content{
		ID:              id,
		SourceID:        "a",
		URL:             "https://example.com/" + id,
		Title:           "Title " + id,
		Body:            "body",
		ContentHash:     "hash-" + id,
		DedupKey:        key,
		CollectedAt:     collected,
		ImportanceScore: 0.5,
		MatchedKeywords: []string{"AI", "LLM"},
		Categories:      []string{"AI Core"},
	}
}

func TestInsertContentsSkipsKnownKeys(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"))
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	inserted, err := store.Contents.InsertContents(ctx, []database.Content{
		testContent("1", "k1", now),
		testContent("2", "k2", now),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(inserted) != 2 {
		t.Fatalf("Expected 2 inserted, got %d", len(inserted))
	}

	inserted, err = store.Contents.InsertContents(ctx, []database.Content{
		testContent("3", "k1", now),
		testContent("4", "k3", now),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(inserted) != 1 || inserted[0].ID != "4" {
		t.Errorf("Expected only the new key to be inserted, got %+v", inserted)
	}

	exists, err := store.Contents.HasContentKey(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("Expected k1 to exist")
	}
	exists, _ = store.Contents.HasContentKey(ctx, "nope")
	if exists {
		t.Error("Did not expect unknown key to exist")
	}

	count, err := store.Contents.GetContentCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected 3 contents, got %d", count)
	}
}

func TestInsertContentsConcurrentSameKey(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"))
	now := time.Now()

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, err := store.Contents.InsertContents(ctx, []database.Content{
				testContent(string(rune('a'+i)), "same-key", now),
			})
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = len(inserted)
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range results {
		total += n
	}
	if total != 1 {
		t.Errorf("Expected exactly one writer to win, got %d", total)
	}
}

func TestListContents(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"), testSource("b"))
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	low := testContent("1", "k1", base)
	low.ImportanceScore = 0.1
	high := testContent("2", "k2", base.Add(time.Hour))
	high.ImportanceScore = 0.9
	published := base.Add(-time.Hour)
	high.PublishedAt = &published
	other := testContent("3", "k3", base.Add(2*time.Hour))
	other.SourceID = "b"

	if _, err := store.Contents.InsertContents(ctx, []database.Content{low, high, other}); err != nil {
		t.Fatal(err)
	}

	all, err := store.Contents.ListContents(ctx, database.ContentQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "3" {
		t.Fatalf("Expected newest first, got %d items", len(all))
	}

	scored, err := store.Contents.ListContents(ctx, database.ContentQuery{SourceID: "a", MinScore: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 || scored[0].ID != "2" {
		t.Fatalf("Expected only high scoring item, got %+v", scored)
	}
	if !reflect.DeepEqual(scored[0].MatchedKeywords, []string{"AI", "LLM"}) {
		t.Errorf("Expected keywords to round trip, got %v", scored[0].MatchedKeywords)
	}
	if scored[0].PublishedAt == nil || !scored[0].PublishedAt.Equal(published) {
		t.Errorf("Expected published_at %v, got %v", published, scored[0].PublishedAt)
	}

	recent, err := store.Contents.ListContents(ctx, database.ContentQuery{Since: base.Add(90 * time.Minute), Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].ID != "3" {
		t.Errorf("Expected only content after since, got %+v", recent)
	}
}

func TestStatsRepository(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	dbtest.Seed(t, store, testSource("a"), testSource("b"), testSource("c"))

	if err := store.Sources.SetSourceStatus(ctx, "c", database.StatusInactive); err != nil {
		t.Fatal(err)
	}

	counts, err := store.Stats.CountSourcesByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[database.StatusActive] != 2 || counts[database.StatusInactive] != 1 {
		t.Errorf("Unexpected status counts: %v", counts)
	}

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	old := testContent("1", "k1", base.Add(-48*time.Hour))
	fresh := testContent("2", "k2", base)
	fresh.Categories = nil
	if _, err := store.Contents.InsertContents(ctx, []database.Content{old, fresh}); err != nil {
		t.Fatal(err)
	}

	digests, err := store.Stats.ListContentDigests(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(digests) != 1 {
		t.Fatalf("Expected 1 digest, got %d", len(digests))
	}
	if !digests[0].CollectedAt.Equal(base) {
		t.Errorf("Expected collected_at %v, got %v", base, digests[0].CollectedAt)
	}
	if len(digests[0].Categories) != 0 {
		t.Errorf("Expected empty categories, got %v", digests[0].Categories)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	store := dbtest.New(t)

	version, dirty, err := database.RunMigrations(store.DB)
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 || dirty {
		t.Errorf("Expected clean version 1, got %d dirty=%v", version, dirty)
	}
}
