package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

const seriesColumns = "id, title, slug, status, is_adult, language_code, created_at, updated_at"

func scanSeries(row rowScanner) (*types.Series, error) {
	var (
		s                    types.Series
		status               string
		adult                int
		createdAt, updatedAt string
	)
	if err := row.Scan(&s.ID, &s.Title, &s.Slug, &status, &adult, &s.LanguageCode, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Status = types.SeriesStatus(status)
	s.Adult = adult != 0
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (t *Table) getSeries(ctx context.Context, id string) (any, error) {
	s, err := scanSeries(t.backend.q.QueryRowContext(ctx, "SELECT "+seriesColumns+" FROM series WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting series %s: %w", id, err)
	}
	return s, nil
}

func (t *Table) setSeries(ctx context.Context, id string, data any) (string, error) {
	s, ok := data.(*types.Series)
	if !ok || s == nil {
		return "", types.ErrInvalidData
	}
	title := strings.TrimSpace(s.Title)
	slug := strings.TrimSpace(s.Slug)
	if title == "" || slug == "" {
		return "", fmt.Errorf("%w: title and slug are required", types.ErrInvalidData)
	}
	status := s.Status
	if status == "" {
		status = types.SeriesOngoing
	}
	if _, err := types.ParseSeriesStatus(string(status)); err != nil {
		return "", err
	}
	lang := s.LanguageCode
	if lang == "" {
		lang = "en"
	}
	if id == "" {
		var err error
		if id, err = newID(); err != nil {
			return "", err
		}
	}

	now := t.backend.timestamp()
	_, err := t.backend.q.ExecContext(ctx,
		`INSERT INTO series (id, title, slug, status, is_adult, language_code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     title = excluded.title,
		     slug = excluded.slug,
		     status = excluded.status,
		     is_adult = excluded.is_adult,
		     language_code = excluded.language_code,
		     updated_at = excluded.updated_at`,
		id, title, slug, string(status), boolToInt(s.Adult), lang, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: slug %q is taken", types.ErrInvalidData, slug)
		}
		return "", fmt.Errorf("saving series: %w", err)
	}
	s.ID = id
	return id, nil
}

func (t *Table) fetchSeries(ctx context.Context, filter map[string]any) ([]any, error) {
	where, args, err := filterClause(filter, map[string]string{
		"status":        "status",
		"adult":         "is_adult",
		"language_code": "language_code",
		"slug":          "slug",
	})
	if err != nil {
		return nil, err
	}
	rows, err := t.backend.q.QueryContext(ctx, "SELECT "+seriesColumns+" FROM series"+where+" ORDER BY title, id", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching series: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning series: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}
