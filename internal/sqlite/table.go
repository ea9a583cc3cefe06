package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// Table implements types.Table for one reference table. Operations are
// routed on the table name to the per-entity accessors.
type Table struct {
	name    string
	backend *Backend
}

var _ types.Table = (*Table)(nil)

// Get retrieves an entity by key.
// Returns ErrInvalidID if id is empty, ErrNotFound if no row matches.
func (t *Table) Get(ctx context.Context, id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	if err := t.backend.checkOpen(); err != nil {
		return nil, err
	}

	switch t.name {
	case types.UsersTable:
		return t.getUser(ctx, id)
	case types.SeriesTable:
		return t.getSeries(ctx, id)
	case types.SettingsTable:
		return t.getSetting(ctx, id)
	case types.LanguagesTable:
		return t.getLanguage(ctx, id)
	default:
		return nil, types.ErrTableNotFound
	}
}

// Set creates or updates an entity and returns its key. Users and series get
// a UUID v7 when id is empty; settings and languages are keyed by name and
// take the key from data when id is empty.
func (t *Table) Set(ctx context.Context, id string, data any) (string, error) {
	if err := t.backend.checkOpen(); err != nil {
		return "", err
	}

	switch t.name {
	case types.UsersTable:
		return t.setUser(ctx, id, data)
	case types.SeriesTable:
		return t.setSeries(ctx, id, data)
	case types.SettingsTable:
		return t.setSetting(ctx, id, data)
	case types.LanguagesTable:
		return t.setLanguage(ctx, id, data)
	default:
		return "", types.ErrTableNotFound
	}
}

// Delete removes an entity by key.
// Returns ErrInvalidID if id is empty, ErrNotFound if no row matches.
func (t *Table) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if err := t.backend.checkOpen(); err != nil {
		return err
	}

	var stmt string
	switch t.name {
	case types.UsersTable:
		stmt = "DELETE FROM users WHERE id = ?"
	case types.SeriesTable:
		stmt = "DELETE FROM series WHERE id = ?"
	case types.SettingsTable:
		stmt = "DELETE FROM settings WHERE key = ?"
	case types.LanguagesTable:
		stmt = "DELETE FROM languages WHERE code = ?"
	default:
		return types.ErrTableNotFound
	}

	res, err := t.backend.q.ExecContext(ctx, stmt, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s %s is still referenced", types.ErrInvalidData, t.name, id)
		}
		return fmt.Errorf("deleting from %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", t.name, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// Fetch returns entities matching the filter. An empty filter matches all.
func (t *Table) Fetch(ctx context.Context, filter map[string]any) ([]any, error) {
	if err := t.backend.checkOpen(); err != nil {
		return nil, err
	}

	switch t.name {
	case types.UsersTable:
		return t.fetchUsers(ctx, filter)
	case types.SeriesTable:
		return t.fetchSeries(ctx, filter)
	case types.SettingsTable:
		return t.fetchSettings(ctx, filter)
	case types.LanguagesTable:
		return t.fetchLanguages(ctx, filter)
	default:
		return nil, types.ErrTableNotFound
	}
}

// filterClause turns the recognised keys of filter into a WHERE clause.
// columns maps a filter key to its column; values must be strings or bools.
// Unknown keys and other value types yield ErrInvalidFilter.
func filterClause(filter map[string]any, columns map[string]string) (string, []any, error) {
	var (
		conditions []string
		args       []any
	)
	for key, value := range filter {
		column, ok := columns[key]
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown key %q", types.ErrInvalidFilter, key)
		}
		switch v := value.(type) {
		case string:
			args = append(args, v)
		case bool:
			args = append(args, boolToInt(v))
		default:
			return "", nil, fmt.Errorf("%w: %q has type %T", types.ErrInvalidFilter, key, value)
		}
		conditions = append(conditions, column+" = ?")
	}
	if len(conditions) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}
