package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/crawlai/crawl-engine/app/database"
)

const (
	DefaultDays = 7
	MaxDays     = 365
	topLimit    = 10
)

type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Report struct {
	PeriodDays    int            `json:"period_days"`
	TotalContents int            `json:"total_contents"`
	StatusCounts  map[string]int `json:"status_counts"`
	DailyCounts   []DailyCount   `json:"daily_counts"`
	TopKeywords   []Count        `json:"top_keywords"`
	TopCategories []Count        `json:"top_categories"`
}

type Aggregator struct {
	repo database.StatsRepository
	loc  *time.Location
	now  func() time.Time
}

func NewAggregator(repo database.StatsRepository, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{repo: repo, loc: loc, now: time.Now}
}

// Compute builds the rollup for the trailing window of days calendar days,
// today included, in the aggregator's time zone. Days outside 1..MaxDays are
// clamped.
func (a *Aggregator) Compute(ctx context.Context, days int) (*Report, error) {
	if days < 1 {
		days = 1
	}
	if days > MaxDays {
		days = MaxDays
	}

	now := a.now().In(a.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
	start := today.AddDate(0, 0, -(days - 1))

	statusCounts, err := a.repo.CountSourcesByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}

	digests, err := a.repo.ListContentDigests(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load contents: %w", err)
	}

	report := &Report{
		PeriodDays:   days,
		StatusCounts: make(map[string]int, len(database.Statuses)),
		DailyCounts:  make([]DailyCount, days),
	}

	for _, status := range database.Statuses {
		report.StatusCounts[string(status)] = statusCounts[status]
	}

	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		report.DailyCounts[i] = DailyCount{Date: date}
		index[date] = i
	}

	keywords := newCounter()
	categories := newCounter()

	for _, d := range digests {
		date := d.CollectedAt.In(a.loc).Format(time.DateOnly)
		i, ok := index[date]
		if !ok {
			continue
		}
		report.DailyCounts[i].Count++
		report.TotalContents++

		for _, k := range d.MatchedKeywords {
			keywords.add(k)
		}
		for _, c := range d.Categories {
			categories.add(c)
		}
	}

	report.TopKeywords = keywords.top(topLimit)
	report.TopCategories = categories.top(topLimit)

	return report, nil
}

// counter tallies names and remembers first-seen order for tie breaking.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string) {
	if _, ok := c.counts[name]; !ok {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

func (c *counter) top(limit int) []Count {
	result := make([]Count, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, Count{Name: name, Count: c.counts[name]})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
