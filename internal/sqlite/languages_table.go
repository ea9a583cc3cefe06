package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

func scanLanguage(row rowScanner) (*types.Language, error) {
	var (
		l      types.Language
		active int
	)
	if err := row.Scan(&l.Code, &l.Name, &l.NativeName, &active); err != nil {
		return nil, err
	}
	l.Active = active != 0
	return &l, nil
}

func (t *Table) getLanguage(ctx context.Context, code string) (any, error) {
	l, err := scanLanguage(t.backend.q.QueryRowContext(ctx,
		"SELECT code, name, native_name, is_active FROM languages WHERE code = ?", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting language %s: %w", code, err)
	}
	return l, nil
}

func (t *Table) setLanguage(ctx context.Context, code string, data any) (string, error) {
	l, ok := data.(*types.Language)
	if !ok || l == nil {
		return "", types.ErrInvalidData
	}
	if code == "" {
		code = l.Code
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", types.ErrInvalidID
	}
	if strings.TrimSpace(l.Name) == "" {
		return "", fmt.Errorf("%w: language name is required", types.ErrInvalidData)
	}
	_, err := t.backend.q.ExecContext(ctx,
		`INSERT INTO languages (code, name, native_name, is_active) VALUES (?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		     name = excluded.name,
		     native_name = excluded.native_name,
		     is_active = excluded.is_active`,
		code, l.Name, l.NativeName, boolToInt(l.Active))
	if err != nil {
		return "", fmt.Errorf("saving language %s: %w", code, err)
	}
	l.Code = code
	return code, nil
}

func (t *Table) fetchLanguages(ctx context.Context, filter map[string]any) ([]any, error) {
	where, args, err := filterClause(filter, map[string]string{"active": "is_active"})
	if err != nil {
		return nil, err
	}
	rows, err := t.backend.q.QueryContext(ctx,
		"SELECT code, name, native_name, is_active FROM languages"+where+" ORDER BY code", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching languages: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		l, err := scanLanguage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning language: %w", err)
		}
		results = append(results, l)
	}
	return results, rows.Err()
}
