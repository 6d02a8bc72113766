// Package dbtest opens throwaway migrated stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/crawlai/crawl-engine/app/database"
)

func New(t testing.TB) *database.Store {
	t.Helper()

	store, err := database.OpenStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

// Seed upserts sources, applying any non-default status.
func Seed(t testing.TB, store *database.Store, sources ...database.Source) {
	t.Helper()
	ctx := context.Background()

	for _, s := range sources {
		if err := store.Sources.UpsertSource(ctx, s); err != nil {
			t.Fatalf("failed to seed source %s: %v", s.ID, err)
		}
	}
}
