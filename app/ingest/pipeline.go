package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/fetch"
	"github.com/crawlai/crawl-engine/app/health"
	"github.com/crawlai/crawl-engine/app/keyword"
)

const DefaultFetchTimeout = 30 * time.Second

// Notifier receives newly stored content that crossed the notify threshold.
type Notifier interface {
	Notify(ctx context.Context, source database.Source, contents []database.Content) error
}

type Report struct {
	RunID      string
	SourceID   string
	Fetched    int
	New        int
	Duplicates int
	Empty      int
	Filtered   int
	Notified   int
	Status     database.SourceStatus
	ErrorCount int
	Duration   time.Duration
}

type Pipeline struct {
	fetchers     fetch.Fetchers
	sources      database.SourceRepository
	contents     database.ContentRepository
	keywords     *keyword.Registry
	tracker      *health.Tracker
	scorer       *Scorer
	filterer     *Filterer
	notifier     Notifier
	fetchTimeout time.Duration
	now          func() time.Time
}

type Options struct {
	FetchTimeout    time.Duration
	NotifyThreshold float64
	Now             func() time.Time
}

func NewPipeline(fetchers fetch.Fetchers, sources database.SourceRepository, contents database.ContentRepository,
	keywords *keyword.Registry, tracker *health.Tracker, notifier Notifier, opts Options) *Pipeline {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		fetchers:     fetchers,
		sources:      sources,
		contents:     contents,
		keywords:     keywords,
		tracker:      tracker,
		scorer:       NewScorer(opts.NotifyThreshold),
		filterer:     NewFilterer(),
		notifier:     notifier,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
	}
}

// Run crawls source once: fetch, normalize, score, then commit the accepted
// batch and the resulting health. A cancelled run writes nothing. The
// returned error is the fetch error for failed fetches, or the store error
// that aborted the commit.
func (p *Pipeline) Run(ctx context.Context, source database.Source) (*Report, error) {
	started := p.now()
	report := &Report{RunID: uuid.NewString(), SourceID: source.ID}

	fetcher, err := p.fetchers.For(source.Type)
	if err != nil {
		// No usable fetcher is an outage for this source, not a silent skip.
		err = apperr.NewFetchError(apperr.NetworkFailure, source.URL, err)
		p.recordHealth(ctx, source, health.Failure(err), report)
		report.Duration = p.now().Sub(started)
		slog.Warn("Fetch failed", "source", source.ID, "run", report.RunID, "error", err,
			"error_count", report.ErrorCount, "status", report.Status)
		return report, err
	}

	docs, err := p.fetch(ctx, fetcher, source)
	if err != nil {
		if isCancelled(ctx, err) {
			return report, err
		}
		p.recordHealth(ctx, source, health.Failure(err), report)
		report.Duration = p.now().Sub(started)
		slog.Warn("Fetch failed", "source", source.ID, "run", report.RunID, "error", err,
			"error_count", report.ErrorCount, "status", report.Status)
		return report, err
	}
	report.Fetched = len(docs)

	idx := p.keywords.Index()
	dedup := NewDeduplicator(p.contents)
	collectedAt := p.now()
	batch := make([]database.Content, 0, len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, fetch.Classify(err, source.URL)
		}

		candidate, err := dedup.Normalize(ctx, doc, source)
		switch {
		case apperr.IsValidation(err, apperr.EmptyContent):
			report.Empty++
			slog.Debug("Rejected empty document", "source", source.ID, "url", doc.URL)
			continue
		case apperr.IsValidation(err, apperr.DuplicateContent):
			report.Duplicates++
			continue
		case err != nil:
			if isCancelled(ctx, err) {
				return report, fetch.Classify(err, source.URL)
			}
			p.touch(ctx, source.ID)
			return report, err
		}

		if dropped, reason := p.filterer.Run(*candidate, source.Filters); dropped {
			report.Filtered++
			slog.Debug("Filtered document", "source", source.ID, "url", candidate.URL, "reason", reason)
			continue
		}

		batch = append(batch, p.scorer.Score(*candidate, idx, uuid.NewString(), collectedAt))
	}

	if err := ctx.Err(); err != nil {
		return report, fetch.Classify(err, source.URL)
	}

	inserted, err := p.contents.InsertContents(ctx, batch)
	if err != nil {
		if isCancelled(ctx, err) {
			return report, fetch.Classify(err, source.URL)
		}
		p.touch(ctx, source.ID)
		return report, fmt.Errorf("failed to store contents: %w", err)
	}
	report.New = len(inserted)
	report.Duplicates += len(batch) - len(inserted)

	p.notify(ctx, source, inserted, report)
	p.recordHealth(ctx, source, health.Success(len(docs)), report)
	report.Duration = p.now().Sub(started)

	return report, nil
}

func (p *Pipeline) fetch(ctx context.Context, fetcher fetch.Fetcher, source database.Source) ([]fetch.RawDocument, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	type result struct {
		docs []fetch.RawDocument
		err  error
	}
	done := make(chan result, 1)

	go func() {
		docs, err := fetcher.Fetch(fetchCtx, source)
		done <- result{docs, err}
	}()

	// A fetcher that ignores its context is abandoned once the deadline passes.
	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, fetch.Classify(ctx.Err(), source.URL)
			}
			return nil, fetch.Classify(r.err, source.URL)
		}
		return r.docs, nil
	case <-fetchCtx.Done():
		return nil, fetch.Classify(fetchCtx.Err(), source.URL)
	}
}

// recordHealth applies outcome to the freshest copy of the source so an
// administrative change made during the run is respected.
func (p *Pipeline) recordHealth(ctx context.Context, source database.Source, outcome health.Outcome, report *Report) {
	ctx = context.WithoutCancel(ctx)

	current, err := p.sources.GetSource(ctx, source.ID)
	if err != nil {
		slog.Error("Failed to reload source", "source", source.ID, "error", err)
		current = &source
	}
	if current == nil {
		slog.Warn("Source disappeared during run", "source", source.ID)
		return
	}

	h := p.tracker.Apply(*current, outcome, p.now())
	report.Status = h.Status
	report.ErrorCount = h.ErrorCount

	if err := p.sources.UpdateSourceHealth(ctx, source.ID, h); err != nil {
		slog.Error("Failed to update source health", "source", source.ID, "error", err)
	}
}

func (p *Pipeline) touch(ctx context.Context, sourceID string) {
	if err := p.sources.TouchSource(context.WithoutCancel(ctx), sourceID, p.now()); err != nil {
		slog.Error("Failed to record crawl time", "source", sourceID, "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, source database.Source, inserted []database.Content, report *Report) {
	if p.notifier == nil {
		return
	}

	var eligible []database.Content
	for _, c := range inserted {
		if c.NotifyEligible {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return
	}

	if err := p.notifier.Notify(context.WithoutCancel(ctx), source, eligible); err != nil {
		slog.Error("Failed to send notifications", "source", source.ID, "count", len(eligible), "error", err)
		return
	}
	report.Notified = len(eligible)
}

func isCancelled(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return true
	}
	kind, ok := apperr.FetchKindOf(err)
	return ok && kind == apperr.Cancelled
}
