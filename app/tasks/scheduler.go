package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/database"
)

const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 300
)

var (
	_ TaskSchedulerInterface = (*Scheduler)(nil)

	ErrQueueFull = errors.New("task queue is full")
)

type Options struct {
	WorkerCount int
	QueueSize   int
	// TickSpec is a cron expression driving Tick. Empty disables the clock.
	TickSpec string
	Now      func() time.Time
}

type TickReport struct {
	Checked  int      `json:"checked"`
	Enqueued []string `json:"enqueued"`
	Busy     []string `json:"busy"`
	Dropped  []string `json:"dropped"`
}

type Stats struct {
	Workers     int        `json:"workers"`
	QueueSize   int        `json:"queue_size"`
	InFlight    int        `json:"in_flight"`
	TotalRuns   int64      `json:"total_runs"`
	TotalErrors int64      `json:"total_errors"`
	LastTickAt  *time.Time `json:"last_tick_at,omitempty"`
}

type Scheduler struct {
	sources     database.SourceRepository
	runner      Runner
	slots       slotArena
	clock       *cron.Cron
	tickSpec    string
	workerCount int
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	stopOnce    sync.Once

	totalRuns   atomic.Int64
	totalErrors atomic.Int64
	lastTickAt  atomic.Pointer[time.Time]
}

func NewScheduler(sources database.SourceRepository, runner Runner, opts Options) *Scheduler {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = DefaultWorkerCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		sources:     sources,
		runner:      runner,
		tickSpec:    opts.TickSpec,
		workerCount: opts.WorkerCount,
		now:         opts.Now,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, opts.QueueSize),
	}
}

func (s *Scheduler) Start() error {
	if s.tickSpec != "" {
		s.clock = cron.New()
		_, err := s.clock.AddFunc(s.tickSpec, func() {
			if _, err := s.Tick(s.ctx); err != nil && s.ctx.Err() == nil {
				slog.Error("Scheduled tick failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid tick spec %q: %w", s.tickSpec, err)
		}
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	if s.clock != nil {
		s.clock.Start()
	}

	slog.Info("Scheduler started", "workers", s.workerCount, "tick_spec", s.tickSpec)
	return nil
}

// Stop halts the clock, cancels in-flight runs and waits for workers to exit.
// Tasks still queued are discarded.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.clock != nil {
			<-s.clock.Stop().Done()
		}
		s.cancel()
		s.wg.Wait()

		for {
			select {
			case task := <-s.taskQueue:
				if crawl, ok := task.(*CrawlSourceTask); ok {
					crawl.slot.release()
				}
			default:
				slog.Info("Scheduler stopped")
				return
			}
		}
	})
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Tick evaluates every source once and enqueues the due ones, earliest due
// first. Never-crawled sources go ahead of everything else.
func (s *Scheduler) Tick(ctx context.Context) (*TickReport, error) {
	now := s.now()
	s.lastTickAt.Store(&now)

	sources, err := s.sources.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	report := &TickReport{Checked: len(sources), Enqueued: []string{}, Busy: []string{}, Dropped: []string{}}

	due := make([]database.Source, 0, len(sources))
	for _, source := range sources {
		if source.Status == database.StatusInactive || !source.IsDue(now) {
			continue
		}
		due = append(due, source)
	}

	sort.SliceStable(due, func(i, j int) bool {
		di, dj := due[i].DueAt(), due[j].DueAt()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return due[i].ID < due[j].ID
	})

	for _, source := range due {
		switch err := s.enqueueCrawl(source.ID); {
		case err == nil:
			report.Enqueued = append(report.Enqueued, source.ID)
		case errors.Is(err, apperr.ErrAlreadyRunning):
			report.Busy = append(report.Busy, source.ID)
		default:
			report.Dropped = append(report.Dropped, source.ID)
			slog.Warn("Failed to enqueue CrawlSourceTask", "source", source.ID, "error", err)
		}
	}

	slog.Debug("Tick evaluated sources", "checked", report.Checked, "enqueued", len(report.Enqueued), "busy", len(report.Busy), "dropped", len(report.Dropped))

	return report, nil
}

// Trigger enqueues a crawl regardless of the source's interval. It never
// waits on a run already in flight.
func (s *Scheduler) Trigger(ctx context.Context, sourceID string) error {
	source, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("source %s: %w", sourceID, apperr.ErrNotFound)
	}
	if source.Status == database.StatusInactive {
		return fmt.Errorf("source %s: %w", sourceID, apperr.ErrSourceInactive)
	}

	return s.enqueueCrawl(sourceID)
}

// Cancel stops the queued or running crawl of a source. It reports whether
// there was one.
func (s *Scheduler) Cancel(sourceID string) bool {
	return s.slots.get(sourceID).stop()
}

func (s *Scheduler) Stats() Stats {
	stats := Stats{
		Workers:     s.workerCount,
		QueueSize:   len(s.taskQueue),
		InFlight:    s.slots.inFlight(),
		TotalRuns:   s.totalRuns.Load(),
		TotalErrors: s.totalErrors.Load(),
	}
	if t := s.lastTickAt.Load(); t != nil {
		at := *t
		stats.LastTickAt = &at
	}
	return stats
}

func (s *Scheduler) enqueueCrawl(sourceID string) error {
	slot, ok := s.slots.acquire(sourceID)
	if !ok {
		return fmt.Errorf("source %s: %w", sourceID, apperr.ErrAlreadyRunning)
	}

	if err := s.EnqueueTask(NewCrawlSourceTask(sourceID, s.sources, s.runner, slot)); err != nil {
		slot.release()
		return err
	}

	return nil
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()
	s.totalRuns.Add(1)

	err := task.Execute(s.ctx)
	if err == nil {
		return
	}

	s.totalErrors.Add(1)
	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "source", task.GetSourceID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "error", retryErr)
			}
		}
	}()
}
