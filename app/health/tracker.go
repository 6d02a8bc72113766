package health

import (
	"time"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
)

const DefaultThreshold = 5

// maxErrorCount caps the streak so long-dead sources don't grow unbounded.
const maxErrorCount = 1000

type Outcome struct {
	Count int // documents fetched on success
	Err   error
}

func Success(count int) Outcome {
	return Outcome{Count: count}
}

func Failure(err error) Outcome {
	return Outcome{Err: err}
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

func (o Outcome) Kind() apperr.FetchKind {
	kind, _ := apperr.FetchKindOf(o.Err)
	return kind
}

type Tracker struct {
	threshold int
}

func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{threshold: threshold}
}

func (t *Tracker) Threshold() int {
	return t.threshold
}

// Apply returns the health a source should have after outcome. Inactive
// sources keep their status and streak; only the crawl time moves.
func (t *Tracker) Apply(source database.Source, outcome Outcome, at time.Time) database.SourceHealth {
	h := database.SourceHealth{
		Status:        source.Status,
		ErrorCount:    source.ErrorCount,
		LastCrawledAt: at,
		LastError:     source.LastError,
	}

	if source.Status == database.StatusInactive {
		return h
	}

	if outcome.Succeeded() {
		h.Status = database.StatusActive
		h.ErrorCount = 0
		h.LastError = ""
		h.LastSuccessAt = &at
		return h
	}

	h.ErrorCount = min(source.ErrorCount+1, maxErrorCount)
	h.LastError = outcome.Err.Error()
	if h.ErrorCount >= t.threshold {
		h.Status = database.StatusError
	} else if source.Status != database.StatusError {
		h.Status = database.StatusActive
	}

	return h
}
