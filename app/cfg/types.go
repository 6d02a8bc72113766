package cfg

import (
	"time"
)

type Cfg struct {
	// Storage and definitions
	DBPath       string
	SourcesDir   string
	KeywordsFile string

	// HTTP API
	Port         string
	APIAccessKey string

	// Scheduling
	WorkerCount      int
	QueueSize        int
	TickSpec         string
	FailureThreshold int
	FetchTimeout     time.Duration

	// Scoring
	ScoreNormalization float64
	NotifyThreshold    float64

	// Fetching
	MaxListingLinks int
	UserAgent       string

	// Notifications
	WebhookURL   string
	RedisAddr    string
	RedisChannel string

	// Application metadata
	Timezone string
	Location *time.Location
	Debug    bool
	Version  string
}
