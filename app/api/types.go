package api

import (
	"context"
	"time"

	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/digest"
	"github.com/crawlai/crawl-engine/app/keyword"
	"github.com/crawlai/crawl-engine/app/stats"
	"github.com/crawlai/crawl-engine/app/tasks"
)

type GeneratorInterface interface {
	Run(channel digest.Channel, contents []database.Content) (string, error)
}

var _ GeneratorInterface = (*digest.Generator)(nil)

type StatsComputer interface {
	Compute(ctx context.Context, days int) (*stats.Report, error)
}

var _ StatsComputer = (*stats.Aggregator)(nil)

type Handler struct {
	sources      database.SourceRepository
	contents     database.ContentRepository
	keywords     *keyword.Registry
	keywordsFile string
	stats        StatsComputer
	generator    GeneratorInterface
	syncer       tasks.SourceSyncer
	scheduler    tasks.TaskSchedulerInterface
}

type SourceView struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	URL                  string                `json:"url"`
	Type                 database.SourceType   `json:"type"`
	Status               database.SourceStatus `json:"status"`
	ErrorCount           int                   `json:"error_count"`
	CrawlIntervalMinutes int                   `json:"crawl_interval_minutes"`
	DedupBy              database.DedupMode    `json:"dedup_by"`
	LastCrawledAt        *time.Time            `json:"last_crawled_at"`
	LastSuccessAt        *time.Time            `json:"last_success_at"`
	LastError            string                `json:"last_error,omitempty"`
	NextDueAt            *time.Time            `json:"next_due_at"`
	Filters              []database.Filter     `json:"filters,omitempty"`
}

func newSourceView(s database.Source) SourceView {
	view := SourceView{
		ID:                   s.ID,
		Name:                 s.Name,
		URL:                  s.URL,
		Type:                 s.Type,
		Status:               s.Status,
		ErrorCount:           s.ErrorCount,
		CrawlIntervalMinutes: s.CrawlIntervalMinutes,
		DedupBy:              s.DedupBy,
		LastCrawledAt:        s.LastCrawledAt,
		LastSuccessAt:        s.LastSuccessAt,
		LastError:            s.LastError,
		Filters:              s.Filters,
	}
	if s.LastCrawledAt != nil {
		due := s.DueAt()
		view.NextDueAt = &due
	}
	return view
}

type ContentView struct {
	ID              string     `json:"id"`
	SourceID        string     `json:"source_id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	Summary         string     `json:"summary,omitempty"`
	PublishedAt     *time.Time `json:"published_at"`
	CollectedAt     time.Time  `json:"collected_at"`
	ImportanceScore float64    `json:"importance_score"`
	MatchedKeywords []string   `json:"matched_keywords"`
	Categories      []string   `json:"categories"`
	NotifyEligible  bool       `json:"notify_eligible"`
}

func newContentView(c database.Content) ContentView {
	return ContentView{
		ID:              c.ID,
		SourceID:        c.SourceID,
		URL:             c.URL,
		Title:           c.Title,
		Summary:         c.Summary,
		PublishedAt:     c.PublishedAt,
		CollectedAt:     c.CollectedAt,
		ImportanceScore: c.ImportanceScore,
		MatchedKeywords: c.MatchedKeywords,
		Categories:      c.Categories,
		NotifyEligible:  c.NotifyEligible,
	}
}

type statusRequest struct {
	Status database.SourceStatus `json:"status" binding:"required"`
}

type keywordsRequest struct {
	Groups []keyword.Group `json:"groups"`
}
