package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

func (t *Table) getSetting(ctx context.Context, key string) (any, error) {
	var (
		s         types.Setting
		updatedAt string
	)
	err := t.backend.q.QueryRowContext(ctx, "SELECT key, value, updated_at FROM settings WHERE key = ?", key).
		Scan(&s.Key, &s.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting setting %s: %w", key, err)
	}
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// setSetting accepts a *types.Setting or a plain string value.
func (t *Table) setSetting(ctx context.Context, key string, data any) (string, error) {
	var value string
	switch v := data.(type) {
	case *types.Setting:
		if v == nil {
			return "", types.ErrInvalidData
		}
		if key == "" {
			key = v.Key
		}
		value = v.Value
	case string:
		value = v
	default:
		return "", types.ErrInvalidData
	}
	if key == "" {
		return "", types.ErrInvalidID
	}
	if err := upsertSetting(ctx, t.backend.q, key, value, t.backend.timestamp()); err != nil {
		return "", err
	}
	return key, nil
}

func upsertSetting(ctx context.Context, q queryer, key, value, now string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	if err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	return nil
}

func (t *Table) fetchSettings(ctx context.Context, filter map[string]any) ([]any, error) {
	where, args, err := filterClause(filter, map[string]string{"key": "key", "value": "value"})
	if err != nil {
		return nil, err
	}
	rows, err := t.backend.q.QueryContext(ctx, "SELECT key, value, updated_at FROM settings"+where+" ORDER BY key", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching settings: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		var (
			s         types.Setting
			updatedAt string
		)
		if err := rows.Scan(&s.Key, &s.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		s.UpdatedAt = parseTime(updatedAt)
		results = append(results, &s)
	}
	return results, rows.Err()
}

// GetFlag reads a boolean feature flag. Returns ErrNotFound for an unknown
// key and ErrInvalidFlag when the stored value is not a boolean.
func (b *Backend) GetFlag(ctx context.Context, key string) (bool, error) {
	if err := b.checkOpen(); err != nil {
		return false, err
	}
	var value string
	err := b.q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, types.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("reading flag %s: %w", key, err)
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s = %q", types.ErrInvalidFlag, key, value)
	}
	return enabled, nil
}

// SetFlag stores a boolean feature flag as "true" or "false".
func (b *Backend) SetFlag(ctx context.Context, key string, enabled bool) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		return types.ErrInvalidID
	}
	return upsertSetting(ctx, b.q, key, strconv.FormatBool(enabled), b.timestamp())
}

// RecordAudit appends an administrative action to the audit log and returns
// its id.
func (b *Backend) RecordAudit(ctx context.Context, entry types.AuditEntry) (string, error) {
	if err := b.checkOpen(); err != nil {
		return "", err
	}
	if entry.ActorID == "" || entry.Action == "" {
		return "", fmt.Errorf("%w: actor and action are required", types.ErrInvalidData)
	}
	id, err := newID()
	if err != nil {
		return "", err
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = b.now()
	}
	_, err = b.q.ExecContext(ctx,
		"INSERT INTO audit_log (id, actor_id, action, target_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, entry.ActorID, entry.Action, entry.TargetID, entry.Details, formatTime(created))
	if err != nil {
		return "", fmt.Errorf("recording audit entry: %w", err)
	}
	return id, nil
}
