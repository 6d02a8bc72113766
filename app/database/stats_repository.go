package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ StatsRepository = (*StatsRepo)(nil)

type StatsRepo struct {
	db *DB
}

func NewStatsRepository(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) CountSourcesByStatus(ctx context.Context) (map[SourceStatus]int, error) {
	query, args, err := sq.Select("status", "COUNT(*)").From("sources").GroupBy("status").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build status query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count sources by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[SourceStatus]int, len(Statuses))
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[SourceStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	return counts, nil
}

// ListContentDigests returns score metadata of content collected at or after
// since, oldest first.
func (r *StatsRepo) ListContentDigests(ctx context.Context, since time.Time) ([]ContentDigest, error) {
	query, args, err := sq.Select("collected_at", "matched_keywords", "categories").
		From("contents").
		Where(sq.GtOrEq{"collected_at": formatTime(since)}).
		OrderBy("collected_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build digest query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content digests: %w", err)
	}
	defer rows.Close()

	var digests []ContentDigest
	for rows.Next() {
		var collected, keywords, categories string
		if err := rows.Scan(&collected, &keywords, &categories); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}

		var d ContentDigest
		if d.CollectedAt, err = parseTime(collected); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &d.MatchedKeywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &d.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
		digests = append(digests, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate digests: %w", err)
	}

	return digests, nil
}
