package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var _ ContentRepository = (*ContentRepo)(nil)

type ContentRepo struct {
	db *DB
}

func NewContentRepository(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

const contentColumns = `id, source_id, url, title, summary, body, content_hash, dedup_key,
	published_at, collected_at, importance_score, matched_keywords, categories, notify_eligible`

func (r *ContentRepo) HasContentKey(ctx context.Context, dedupKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM contents WHERE dedup_key = ?)`, dedupKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check content key: %w", err)
	}
	return exists, nil
}

// InsertContents writes the batch in one transaction. A dedup key that is
// already present is skipped, so concurrent writers of the same key cannot
// both succeed.
func (r *ContentRepo) InsertContents(ctx context.Context, contents []Content) ([]Content, error) {
	if len(contents) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contents (`+contentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]Content, 0, len(contents))
	for _, c := range contents {
		keywords, err := json.Marshal(nonNil(c.MatchedKeywords))
		if err != nil {
			return nil, fmt.Errorf("failed to encode keywords: %w", err)
		}
		categories, err := json.Marshal(nonNil(c.Categories))
		if err != nil {
			return nil, fmt.Errorf("failed to encode categories: %w", err)
		}

		res, err := stmt.ExecContext(ctx, c.ID, c.SourceID, c.URL, c.Title, c.Summary, c.Body,
			c.ContentHash, c.DedupKey, formatTimePtr(c.PublishedAt), formatTime(c.CollectedAt),
			c.ImportanceScore, string(keywords), string(categories), c.NotifyEligible)
		if err != nil {
			return nil, fmt.Errorf("failed to insert content: %w", err)
		}

		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, c)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit contents: %w", err)
	}

	return inserted, nil
}

func (r *ContentRepo) ListContents(ctx context.Context, q ContentQuery) ([]Content, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	builder := sq.Select(contentColumns).From("contents").
		OrderBy("collected_at DESC", "id").
		Limit(uint64(limit))

	if q.SourceID != "" {
		builder = builder.Where(sq.Eq{"source_id": q.SourceID})
	}
	if q.MinScore > 0 {
		builder = builder.Where(sq.GtOrEq{"importance_score": q.MinScore})
	}
	if !q.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"collected_at": formatTime(q.Since)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	defer rows.Close()

	var contents []Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		contents = append(contents, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contents: %w", err)
	}

	return contents, nil
}

func (r *ContentRepo) GetContentCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count contents: %w", err)
	}
	return count, nil
}

func scanContent(row rowScanner) (*Content, error) {
	var (
		c                    Content
		published            sql.NullString
		collected            string
		keywords, categories string
	)

	err := row.Scan(&c.ID, &c.SourceID, &c.URL, &c.Title, &c.Summary, &c.Body, &c.ContentHash, &c.DedupKey,
		&published, &collected, &c.ImportanceScore, &keywords, &categories, &c.NotifyEligible)
	if err != nil {
		return nil, err
	}

	if c.PublishedAt, err = parseTimePtr(published); err != nil {
		return nil, err
	}
	if c.CollectedAt, err = parseTime(collected); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keywords), &c.MatchedKeywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &c.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}

	return &c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
