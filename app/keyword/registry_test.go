package keyword

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/crawlai/crawl-engine/app/apperr"
)

func TestRegistryStartsEmpty(t *testing.T) {
	r := NewRegistry(DefaultNormalization)

	result := r.Index().Score("AI everywhere")
	if result.Score != 0 {
		t.Errorf("Expected empty index to score 0, got %f", result.Score)
	}
}

func TestRegistryRebuildKeepsPreviousOnError(t *testing.T) {
	r := NewRegistry(DefaultNormalization)
	if err := r.Rebuild(aiCoreGroups()); err != nil {
		t.Fatal(err)
	}
	before := r.Index()

	err := r.Rebuild([]Group{{Name: "", Keywords: []Keyword{{Keyword: "x"}}}})
	if err == nil {
		t.Fatal("Expected rebuild error")
	}

	if r.Index() != before {
		t.Error("Expected previous index to stay active")
	}
	if got := r.Index().Score("LLM news"); !reflect.DeepEqual(got.MatchedKeywords, []string{"AI"}) {
		t.Errorf("Expected old index to keep matching, got %v", got.MatchedKeywords)
	}
	if len(r.Groups()) != 1 {
		t.Errorf("Expected previous groups to be kept, got %d", len(r.Groups()))
	}
}

func TestRegistrySnapshotSurvivesSwap(t *testing.T) {
	r := NewRegistry(DefaultNormalization)
	if err := r.Rebuild(aiCoreGroups()); err != nil {
		t.Fatal(err)
	}

	snapshot := r.Index()
	if err := r.Rebuild([]Group{{Name: "Other", Keywords: []Keyword{{Keyword: "robot"}}}}); err != nil {
		t.Fatal(err)
	}

	if got := snapshot.Score("AI"); len(got.MatchedKeywords) != 1 {
		t.Errorf("Expected snapshot to keep old patterns, got %v", got.MatchedKeywords)
	}
	if got := r.Index().Score("AI"); len(got.MatchedKeywords) != 0 {
		t.Errorf("Expected new index without AI, got %v", got.MatchedKeywords)
	}
}

func TestRegistryConcurrentReadersAndRebuilds(t *testing.T) {
	r := NewRegistry(DefaultNormalization)
	if err := r.Rebuild(DefaultGroups()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				result := r.Index().Score("OpenAI and Google")
				if result.Score < 0 || result.Score > 1 {
					t.Errorf("Score out of range: %f", result.Score)
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		if err := r.Rebuild(DefaultGroups()); err != nil {
			t.Error(err)
		}
	}
	wg.Wait()
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	groups, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != len(DefaultGroups()) {
		t.Errorf("Expected default groups, got %d", len(groups))
	}
}

func TestLoadFileAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yml")
	content := `
groups:
  - name: "AI Core"
    description: "Core AI terms"
    keywords:
      - keyword: "AI"
        synonyms: ["인공지능", "LLM"]
        weight: 2
  - name: "Robots"
    keywords:
      - keyword: "Humanoid"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	groups, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if groups[0].Keywords[0].Weight != 2 {
		t.Errorf("Expected weight 2, got %f", groups[0].Keywords[0].Weight)
	}
	if len(groups[0].Keywords[0].Synonyms) != 2 {
		t.Errorf("Expected 2 synonyms, got %v", groups[0].Keywords[0].Synonyms)
	}

	r := NewRegistry(DefaultNormalization)
	if err := Reload(r, path); err != nil {
		t.Fatal(err)
	}
	if got := r.Index().Score("휴머노이드 아닌 humanoid"); !reflect.DeepEqual(got.Categories, []string{"Robots"}) {
		t.Errorf("Expected Robots category, got %v", got.Categories)
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yml")
	if err := os.WriteFile(path, []byte("groups: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	var cfgErr *apperr.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != apperr.InvalidKeywordGroup {
		t.Errorf("Expected InvalidKeywordGroup ConfigError, got %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(aiCoreGroups())
	if err != nil {
		t.Fatal(err)
	}
	groups, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if groups[0].Name != "AI Core" || groups[0].Keywords[0].Synonyms[1] != "LLM" {
		t.Errorf("Unexpected groups after round trip: %+v", groups)
	}
}
