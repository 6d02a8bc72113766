package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage and definitions
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/crawl.db" description:"SQLite database file"`
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	KeywordsFile string `long:"keywords-file" env:"KEYWORDS_FILE" default:"./keywords.yml" description:"Keyword group file, watched for changes"`

	// HTTP API
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Scheduling
	WorkerCount      int           `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of concurrent crawl workers"`
	QueueSize        int           `long:"queue-size" env:"QUEUE_SIZE" default:"300" description:"Maximum number of queued crawls"`
	TickSpec         string        `long:"tick-spec" env:"TICK_SPEC" default:"@every 30s" description:"Cron expression for the due-source check (empty disables it)"`
	FailureThreshold int           `long:"failure-threshold" env:"FAILURE_THRESHOLD" default:"5" description:"Consecutive failures before a source is marked error"`
	FetchTimeout     time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout for a single source fetch"`

	// Scoring
	ScoreNormalization float64 `long:"score-normalization" env:"SCORE_NORMALIZATION" default:"3.0" description:"Summed keyword weight that maps to a score of 1"`
	NotifyThreshold    float64 `long:"notify-threshold" env:"NOTIFY_THRESHOLD" default:"0.7" description:"Minimum score for new content to be notified"`

	// Fetching
	MaxListingLinks int    `long:"max-listing-links" env:"MAX_LISTING_LINKS" default:"20" description:"Default number of articles followed from a listing page"`
	UserAgent       string `long:"user-agent" env:"USER_AGENT" default:"Crawl Engine/1.0" description:"User agent string for HTTP requests and the browser"`

	// Notifications
	WebhookURL   string `long:"webhook-url" env:"WEBHOOK_URL" description:"POST notifications as JSON to this URL (optional)"`
	RedisAddr    string `long:"redis-addr" env:"REDIS_ADDR" description:"Publish notifications to Redis at this address (optional)"`
	RedisChannel string `long:"redis-channel" env:"REDIS_CHANNEL" default:"crawl:contents" description:"Redis channel for notifications"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps and daily stats (e.g., UTC, Asia/Seoul)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment. It returns nil, nil when help
// was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SourcesDir:         raw.SourcesDir,
		KeywordsFile:       raw.KeywordsFile,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		WorkerCount:        raw.WorkerCount,
		QueueSize:          raw.QueueSize,
		TickSpec:           raw.TickSpec,
		FailureThreshold:   raw.FailureThreshold,
		FetchTimeout:       raw.FetchTimeout,
		ScoreNormalization: raw.ScoreNormalization,
		NotifyThreshold:    raw.NotifyThreshold,
		MaxListingLinks:    raw.MaxListingLinks,
		UserAgent:          raw.UserAgent,
		WebhookURL:         raw.WebhookURL,
		RedisAddr:          raw.RedisAddr,
		RedisChannel:       raw.RedisChannel,
		Timezone:           raw.Timezone,
		Location:           time.Local,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if loc, err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	} else if loc != nil {
		cfg.Location = loc
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c Cfg) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.WorkerCount, validation.Min(1)),
		validation.Field(&c.QueueSize, validation.Min(1)),
		validation.Field(&c.FailureThreshold, validation.Min(1)),
		validation.Field(&c.FetchTimeout, validation.Min(time.Second)),
		validation.Field(&c.ScoreNormalization, validation.Min(0.0).Exclusive()),
		validation.Field(&c.NotifyThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxListingLinks, validation.Min(1)),
		validation.Field(&c.WebhookURL, is.URL),
		validation.Field(&c.RedisChannel, validation.When(c.RedisAddr != "", validation.Required)),
	)
}

func applyTimezone(timezone string) (*time.Location, error) {
	if timezone == "" {
		return nil, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	time.Local = loc
	fmt.Printf("Timezone configured: %s\n", timezone)
	return loc, nil
}
