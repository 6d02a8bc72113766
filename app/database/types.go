package database

import (
	"time"
)

type SourceType string

const (
	SourceTypeRSS SourceType = "rss"
	SourceTypeWeb SourceType = "web"
)

type SourceStatus string

const (
	StatusActive   SourceStatus = "active"
	StatusInactive SourceStatus = "inactive"
	StatusError    SourceStatus = "error"
)

// Statuses lists every source status in display order.
var Statuses = []SourceStatus{StatusActive, StatusInactive, StatusError}

func (s SourceStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusError:
		return true
	}
	return false
}

type DedupMode string

const (
	DedupByURL     DedupMode = "url"
	DedupByContent DedupMode = "content"
)

type WebOptions struct {
	LinkSelector string // listing pages only; empty means the URL is a single article
	WaitSelector string
	MaxLinks     int
}

// Filter keeps or drops documents by a case-insensitive substring test on
// one field. Excludes win over includes.
type Filter struct {
	Field    string   `json:"field"`
	Includes []string `json:"includes,omitempty"`
	Excludes []string `json:"excludes,omitempty"`
}

type Source struct {
	ID                   string // Derived from the configuration file name
	Name                 string
	URL                  string
	Type                 SourceType
	CrawlIntervalMinutes int
	Status               SourceStatus
	ErrorCount           int // Consecutive failed fetches
	DedupBy              DedupMode
	Web                  WebOptions
	Filters              []Filter
	Disabled             bool // Source file said enabled: false at the last sync
	LastCrawledAt        *time.Time // End of the last completed attempt, successful or not
	LastSuccessAt        *time.Time
	LastError            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (s Source) Interval() time.Duration {
	return time.Duration(s.CrawlIntervalMinutes) * time.Minute
}

// DueAt returns the earliest time the source may run again. The zero time
// means it has never been crawled.
func (s Source) DueAt() time.Time {
	if s.LastCrawledAt == nil {
		return time.Time{}
	}
	return s.LastCrawledAt.Add(s.Interval())
}

// Dedup returns the configured dedup mode, or the default for the source: a
// single-page web source always reports its own URL, so it keys by content.
func (s Source) Dedup() DedupMode {
	if s.DedupBy != "" {
		return s.DedupBy
	}
	if s.Type == SourceTypeWeb && s.Web.LinkSelector == "" {
		return DedupByContent
	}
	return DedupByURL
}

func (s Source) IsDue(now time.Time) bool {
	return s.LastCrawledAt == nil || !now.Before(s.DueAt())
}

// SourceHealth is the outcome of a run as written back to the source.
type SourceHealth struct {
	Status        SourceStatus
	ErrorCount    int
	LastCrawledAt time.Time
	LastSuccessAt *time.Time
	LastError     string
}

type Content struct {
	ID              string
	SourceID        string
	URL             string // Canonical form
	Title           string
	Summary         string
	Body            string
	ContentHash     string
	DedupKey        string
	PublishedAt     *time.Time
	CollectedAt     time.Time
	ImportanceScore float64
	MatchedKeywords []string
	Categories      []string
	NotifyEligible  bool
}

type ContentQuery struct {
	SourceID string
	MinScore float64
	Since    time.Time
	Limit    int
}

type ContentDigest struct {
	CollectedAt     time.Time
	MatchedKeywords []string
	Categories      []string
}
