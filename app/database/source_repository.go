package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crawlai/crawl-engine/app/apperr"
)

var _ SourceRepository = (*SourceRepo)(nil)

type SourceRepo struct {
	db  *DB
	now func() time.Time
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db, now: time.Now}
}

const sourceColumns = `id, name, url, source_type, crawl_interval_minutes, status, error_count,
	dedup_by, link_selector, wait_selector, max_links, filters, disabled,
	last_crawled_at, last_success_at, last_error, created_at, updated_at`

func (r *SourceRepo) UpsertSource(ctx context.Context, s Source) error {
	now := formatTime(r.now())
	status := s.Status
	if status == "" {
		status = StatusActive
	}
	dedupBy := s.Dedup()

	filters, err := json.Marshal(nonNilFilters(s.Filters))
	if err != nil {
		return fmt.Errorf("failed to encode filters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, url, source_type, crawl_interval_minutes, status,
			dedup_by, link_selector, wait_selector, max_links, filters, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			source_type = excluded.source_type,
			crawl_interval_minutes = excluded.crawl_interval_minutes,
			dedup_by = excluded.dedup_by,
			link_selector = excluded.link_selector,
			wait_selector = excluded.wait_selector,
			max_links = excluded.max_links,
			filters = excluded.filters,
			disabled = excluded.disabled,
			updated_at = excluded.updated_at
	`, s.ID, s.Name, s.URL, string(s.Type), s.CrawlIntervalMinutes, string(status),
		string(dedupBy), s.Web.LinkSelector, s.Web.WaitSelector, s.Web.MaxLinks, string(filters), s.Disabled, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

func (r *SourceRepo) GetSource(ctx context.Context, id string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

func (r *SourceRepo) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}

	return sources, nil
}

func (r *SourceRepo) UpdateSourceHealth(ctx context.Context, id string, h SourceHealth) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(r.now())

	res, err := tx.ExecContext(ctx, `
		UPDATE sources SET last_crawled_at = ?, updated_at = ? WHERE id = ?
	`, formatTime(h.LastCrawledAt), now, id)
	if err != nil {
		return fmt.Errorf("failed to update last crawled time: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %s: %w", id, apperr.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sources
		SET status = ?, error_count = ?, last_success_at = COALESCE(?, last_success_at), last_error = ?
		WHERE id = ? AND status != 'inactive'
	`, string(h.Status), h.ErrorCount, formatTimePtr(h.LastSuccessAt), h.LastError, id)
	if err != nil {
		return fmt.Errorf("failed to update source health: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit source health: %w", err)
	}

	return nil
}

func (r *SourceRepo) TouchSource(ctx context.Context, id string, crawledAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sources SET last_crawled_at = ?, updated_at = ? WHERE id = ?
	`, formatTime(crawledAt), formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to touch source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// SetSourceStatus is the administrative override. Re-activating a source
// clears its failure streak.
func (r *SourceRepo) SetSourceStatus(ctx context.Context, id string, status SourceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid source status %q", status)
	}

	query := `UPDATE sources SET status = ?, updated_at = ? WHERE id = ?`
	if status == StatusActive {
		query = `UPDATE sources SET status = ?, error_count = 0, updated_at = ? WHERE id = ?`
	}

	res, err := r.db.ExecContext(ctx, query, string(status), formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to set source status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %s: %w", id, apperr.ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var (
		s                         Source
		sourceType, status, dedup string
		filters                   string
		lastCrawled, lastSuccess  sql.NullString
		createdAt, updatedAt      string
	)

	err := row.Scan(&s.ID, &s.Name, &s.URL, &sourceType, &s.CrawlIntervalMinutes, &status, &s.ErrorCount,
		&dedup, &s.Web.LinkSelector, &s.Web.WaitSelector, &s.Web.MaxLinks, &filters, &s.Disabled,
		&lastCrawled, &lastSuccess, &s.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Type = SourceType(sourceType)
	s.Status = SourceStatus(status)
	s.DedupBy = DedupMode(dedup)

	if err := json.Unmarshal([]byte(filters), &s.Filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters: %w", err)
	}

	if s.LastCrawledAt, err = parseTimePtr(lastCrawled); err != nil {
		return nil, err
	}
	if s.LastSuccessAt, err = parseTimePtr(lastSuccess); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &s, nil
}

func nonNilFilters(f []Filter) []Filter {
	if f == nil {
		return []Filter{}
	}
	return f
}
