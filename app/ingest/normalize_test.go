package ingest

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/fetch"
)

func TestCanonicalURL(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/feed.xml")

	tests := []struct {
		in   string
		want string
	}{
		{"https://News.Example.com/a/?utm_source=rss&utm_medium=x", "https://news.example.com/a"},
		{"HTTPS://news.example.com:443/a#section", "https://news.example.com/a"},
		{"http://news.example.com:80", "http://news.example.com/"},
		{"http://news.example.com:8080/a", "http://news.example.com:8080/a"},
		{"/posts/1?b=2&a=1&fbclid=xyz", "https://news.example.com/posts/1?a=1&b=2"},
		{"https://news.example.com/?ref=home", "https://news.example.com/"},
		{"  ", ""},
	}

	for _, tt := range tests {
		got, err := CanonicalURL(tt.in, base)
		if err != nil {
			t.Errorf("CanonicalURL(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalURLRejectsNonHTTP(t *testing.T) {
	if _, err := CanonicalURL("mailto:someone@example.com", nil); err == nil {
		t.Error("Expected error for mailto URL")
	}
}

func TestPrepareRejectsEmptyBody(t *testing.T) {
	source := database.Source{ID: "s", URL: "https://example.com/feed"}

	for _, body := range []string{"", "   \n\t", "<p>  </p>", "<script>var x = 1;</script>"} {
		_, err := Prepare(fetch.RawDocument{URL: "https://example.com/a", Title: "T", Body: body}, source)
		if !apperr.IsValidation(err, apperr.EmptyContent) {
			t.Errorf("Expected EmptyContent for body %q, got %v", body, err)
		}
	}
}

func TestPrepareDerivesTitleAndStripsHTML(t *testing.T) {
	source := database.Source{ID: "s", URL: "https://example.com/feed"}
	doc := fetch.RawDocument{
		URL:     "https://example.com/a?utm_campaign=x",
		Title:   "  ",
		Body:    "<p>First   line here</p><p>Second &amp; more</p>",
		Summary: "<b>short</b>",
	}

	c, err := Prepare(doc, source)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "First line here" {
		t.Errorf("Expected derived title, got %q", c.Title)
	}
	if c.Body != "First line here\nSecond & more" {
		t.Errorf("Unexpected body: %q", c.Body)
	}
	if c.Summary != "short" {
		t.Errorf("Unexpected summary: %q", c.Summary)
	}
	if c.URL != "https://example.com/a" {
		t.Errorf("Unexpected canonical URL: %q", c.URL)
	}
}

func TestPrepareDerivedTitleIsTruncated(t *testing.T) {
	source := database.Source{ID: "s"}
	c, err := Prepare(fetch.RawDocument{URL: "https://example.com/a", Body: strings.Repeat("가", 300)}, source)
	if err != nil {
		t.Fatal(err)
	}
	if got := len([]rune(c.Title)); got != maxDerivedTitleRunes {
		t.Errorf("Expected %d rune title, got %d", maxDerivedTitleRunes, got)
	}
}

func TestPrepareDedupKeys(t *testing.T) {
	byURL := database.Source{ID: "s", URL: "https://example.com/"}
	byContent := database.Source{ID: "s", URL: "https://example.com/", DedupBy: database.DedupByContent}

	a := fetch.RawDocument{URL: "https://example.com/a?utm_source=x", Title: "T", Body: "body one"}
	b := fetch.RawDocument{URL: "https://example.com/a", Title: "T", Body: "body two"}

	ca, _ := Prepare(a, byURL)
	cb, _ := Prepare(b, byURL)
	if ca.DedupKey != cb.DedupKey {
		t.Error("Expected same canonical URL to share a dedup key")
	}

	ca, _ = Prepare(a, byContent)
	cb, _ = Prepare(b, byContent)
	if ca.DedupKey == cb.DedupKey {
		t.Error("Expected different bodies to differ when deduplicating by content")
	}

	other := database.Source{ID: "other", URL: "https://example.com/"}
	co, _ := Prepare(a, other)
	cs, _ := Prepare(a, byURL)
	if co.DedupKey == cs.DedupKey {
		t.Error("Expected dedup keys to be scoped by source")
	}

	noURL, _ := Prepare(fetch.RawDocument{Title: "T", Body: "body one"}, byURL)
	if noURL.URL != "" || noURL.DedupKey == "" {
		t.Errorf("Expected content key for missing URL, got %+v", noURL)
	}
}

type fakeKeys struct {
	known map[string]bool
	err   error
	calls int
}

func (f *fakeKeys) HasContentKey(ctx context.Context, key string) (bool, error) {
	f.calls++
	return f.known[key], f.err
}

func TestDeduplicatorRejectsKnownAndSiblingKeys(t *testing.T) {
	source := database.Source{ID: "s", URL: "https://example.com/"}
	known, _ := Prepare(fetch.RawDocument{URL: "https://example.com/old", Body: "x"}, source)
	keys := &fakeKeys{known: map[string]bool{known.DedupKey: true}}
	d := NewDeduplicator(keys)
	ctx := context.Background()

	if _, err := d.Normalize(ctx, fetch.RawDocument{URL: "https://example.com/old", Body: "changed"}, source); !apperr.IsValidation(err, apperr.DuplicateContent) {
		t.Errorf("Expected duplicate for stored key, got %v", err)
	}

	if _, err := d.Normalize(ctx, fetch.RawDocument{URL: "https://example.com/new", Body: "x"}, source); err != nil {
		t.Fatalf("Expected new document to pass, got %v", err)
	}
	if _, err := d.Normalize(ctx, fetch.RawDocument{URL: "https://example.com/new/", Body: "x"}, source); !apperr.IsValidation(err, apperr.DuplicateContent) {
		t.Errorf("Expected sibling duplicate, got %v", err)
	}
}

func TestDeduplicatorSkipsStoreForEmpty(t *testing.T) {
	keys := &fakeKeys{}
	d := NewDeduplicator(keys)

	_, err := d.Normalize(context.Background(), fetch.RawDocument{URL: "https://example.com/a"}, database.Source{ID: "s"})
	if !apperr.IsValidation(err, apperr.EmptyContent) {
		t.Errorf("Expected EmptyContent, got %v", err)
	}
	if keys.calls != 0 {
		t.Errorf("Expected no store lookups, got %d", keys.calls)
	}
}

func TestDeduplicatorStoreError(t *testing.T) {
	boom := errors.New("disk full")
	d := NewDeduplicator(&fakeKeys{err: boom})

	_, err := d.Normalize(context.Background(), fetch.RawDocument{URL: "https://example.com/a", Body: "x"}, database.Source{ID: "s"})
	if !errors.Is(err, boom) {
		t.Errorf("Expected store error, got %v", err)
	}
}
