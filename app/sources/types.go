package sources

import (
	"github.com/crawlai/crawl-engine/app/database"
)

const (
	DefaultCrawlInterval = 60
	DefaultMaxLinks      = 20
)

type Config struct {
	ID                   string              `yaml:"-"`
	Name                 string              `yaml:"name"`
	URL                  string              `yaml:"url"`
	Type                 database.SourceType `yaml:"type"`
	CrawlIntervalMinutes int                 `yaml:"crawl_interval_minutes"`
	DedupBy              database.DedupMode  `yaml:"dedup_by"`
	Enabled              *bool               `yaml:"enabled"`
	Web                  WebConfig           `yaml:"web"`
	Filters              []FilterConfig      `yaml:"filters"`
}

type FilterConfig struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

type WebConfig struct {
	LinkSelector string `yaml:"link_selector"`
	WaitSelector string `yaml:"wait_selector"`
	MaxLinks     int    `yaml:"max_links"`
}

func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *Config) Source() database.Source {
	status := database.StatusActive
	if !c.IsEnabled() {
		status = database.StatusInactive
	}

	var filters []database.Filter
	for _, f := range c.Filters {
		filters = append(filters, database.Filter{Field: f.Field, Includes: f.Includes, Excludes: f.Excludes})
	}

	return database.Source{
		ID:                   c.ID,
		Name:                 c.Name,
		URL:                  c.URL,
		Type:                 c.Type,
		CrawlIntervalMinutes: c.CrawlIntervalMinutes,
		Status:               status,
		DedupBy:              c.DedupBy,
		Web: database.WebOptions{
			LinkSelector: c.Web.LinkSelector,
			WaitSelector: c.Web.WaitSelector,
			MaxLinks:     c.Web.MaxLinks,
		},
		Filters:  filters,
		Disabled: !c.IsEnabled(),
	}
}
