package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/ingest"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

// Run loads every *.yml file in the sources directory. A missing directory
// yields an empty cache.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		id := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(id)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", id, "type", config.Type, "enabled", config.IsEnabled(), "interval", config.CrawlIntervalMinutes)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(id string) (*Config, error) {
	config, err := cc.parseConfig(cc.getConfigFilePath(id))
	if err != nil {
		return nil, &apperr.ConfigError{Kind: apperr.InvalidSource, Name: id, Err: err}
	}

	config.ID = id
	if config.Name == "" {
		config.Name = id
	}

	if err := config.Validate(); err != nil {
		return nil, &apperr.ConfigError{Kind: apperr.InvalidSource, Name: id, Err: err}
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[id] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(id string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[id]
	if !ok {
		return nil, fmt.Errorf("source config with id '%s' not found", id)
	}
	return config, nil
}

// GetConfigs returns the cached configurations ordered by id.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, c := range cc.cache {
		configs = append(configs, c)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

// Sync upserts every cached source. Health fields of existing rows are kept.
// A disabled source is forced inactive; re-enabling an inactive one makes it
// active again.
func (cc *ConfigCache) Sync(ctx context.Context, repo database.SourceRepository) error {
	for _, config := range cc.GetConfigs() {
		source := config.Source()

		existing, err := repo.GetSource(ctx, source.ID)
		if err != nil {
			return err
		}

		if err := repo.UpsertSource(ctx, source); err != nil {
			return fmt.Errorf("failed to sync source %s: %w", source.ID, err)
		}

		if existing == nil {
			slog.Info("Source registered", "source", source.ID, "type", source.Type)
			continue
		}

		// Only a file flipping back to enabled lifts inactive; a source
		// deactivated through the API stays down across restarts.
		switch {
		case !config.IsEnabled() && existing.Status != database.StatusInactive:
			err = repo.SetSourceStatus(ctx, source.ID, database.StatusInactive)
		case config.IsEnabled() && existing.Disabled && existing.Status == database.StatusInactive:
			err = repo.SetSourceStatus(ctx, source.ID, database.StatusActive)
		}
		if err != nil {
			return fmt.Errorf("failed to sync source status %s: %w", source.ID, err)
		}
	}

	return nil
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Type == "" {
		config.Type = database.SourceTypeRSS
	}
	if config.CrawlIntervalMinutes == 0 {
		config.CrawlIntervalMinutes = DefaultCrawlInterval
	}
	if config.Type == database.SourceTypeWeb && config.Web.MaxLinks == 0 {
		config.Web.MaxLinks = DefaultMaxLinks
	}
	if config.DedupBy == "" {
		config.DedupBy = database.Source{Type: config.Type, Web: database.WebOptions{LinkSelector: config.Web.LinkSelector}}.Dedup()
	}

	return &config, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Type, validation.In(database.SourceTypeRSS, database.SourceTypeWeb)),
		validation.Field(&c.CrawlIntervalMinutes, validation.Min(1)),
		validation.Field(&c.DedupBy, validation.In(database.DedupByURL, database.DedupByContent)),
		validation.Field(&c.Web),
		validation.Field(&c.Filters),
	)
}

func (f FilterConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Field, validation.Required,
			validation.In(ingest.FilterFieldTitle, ingest.FilterFieldSummary, ingest.FilterFieldBody, ingest.FilterFieldURL)),
		validation.Field(&f.Includes, validation.When(len(f.Excludes) == 0,
			validation.Required.Error("a filter needs includes or excludes"))),
	)
}

func (w WebConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.MaxLinks, validation.Min(0)),
	)
}

func (cc *ConfigCache) getConfigFilePath(id string) string {
	return filepath.Join(cc.sourcesDir, id+".yml")
}
