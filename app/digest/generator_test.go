package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/crawlai/crawl-engine/app/database"
)

func TestGeneratorRun(t *testing.T) {
	published := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	contents := []database.Content{
		{
			ID: "c1", URL: "https://example.com/llm?a=1&b=2", Title: "LLM <beta> launch",
			Summary: "New model", PublishedAt: &published, CollectedAt: published.Add(time.Hour),
			ImportanceScore: 0.9, Categories: []string{"AI Core", "Big Tech"},
		},
		{
			ID: "c2", URL: "https://example.com/robot", Title: "Robot",
			Body: strings.Repeat("가", 400), CollectedAt: published,
		},
	}

	out, err := NewGenerator().Run(Channel{
		Title:    "Important",
		Link:     "https://example.com",
		SelfLink: "http://localhost:8080/feed?min_score=0.7",
	}, contents)
	if err != nil {
		t.Fatal(err)
	}

	// The output must be readable by a regular feed parser.
	feed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("Expected valid RSS, got %v\n%s", err, out)
	}

	if feed.Title != "Important" {
		t.Errorf("Expected title 'Important', got '%s'", feed.Title)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(feed.Items))
	}

	first := feed.Items[0]
	if first.Title != "LLM <beta> launch" {
		t.Errorf("Expected escaped title to round-trip, got '%s'", first.Title)
	}
	if first.Link != "https://example.com/llm?a=1&b=2" {
		t.Errorf("Unexpected link '%s'", first.Link)
	}
	if first.GUID != "c1" {
		t.Errorf("Expected guid 'c1', got '%s'", first.GUID)
	}
	if first.PublishedParsed == nil || !first.PublishedParsed.Equal(published) {
		t.Errorf("Expected pubDate %v, got %v", published, first.PublishedParsed)
	}
	if len(first.Categories) != 3 || first.Categories[2] != "score:0.90" {
		t.Errorf("Unexpected categories %v", first.Categories)
	}

	second := feed.Items[1]
	if n := len([]rune(second.Description)); n != excerptRunes+1 {
		t.Errorf("Expected body excerpt of %d runes, got %d", excerptRunes+1, n)
	}
}

func TestGeneratorEmpty(t *testing.T) {
	out, err := NewGenerator().Run(Channel{Title: "Empty"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<description>Relevant content collected by the crawl engine</description>") {
		t.Errorf("Expected default description, got %s", out)
	}
	if strings.Contains(out, "<item>") {
		t.Error("Expected no items")
	}
}
