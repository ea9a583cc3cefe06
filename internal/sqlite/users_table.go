package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

const userColumns = "id, username, email, role, currency_balance, is_banned, created_at, updated_at"

func scanUser(row rowScanner) (*types.User, error) {
	var (
		u                    types.User
		role                 string
		banned               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &u.CurrencyBalance, &banned, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Role = types.Role(role)
	u.Banned = banned != 0
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func (t *Table) getUser(ctx context.Context, id string) (any, error) {
	u, err := scanUser(t.backend.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

// setUser inserts or updates a user. currency_balance is never written here:
// new users start at zero and only the ledger moves the balance.
func (t *Table) setUser(ctx context.Context, id string, data any) (string, error) {
	u, ok := data.(*types.User)
	if !ok || u == nil {
		return "", types.ErrInvalidData
	}
	username := strings.TrimSpace(u.Username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", types.ErrInvalidData)
	}
	role := u.Role
	if role == "" {
		role = types.RoleUser
	}
	if _, err := types.ParseRole(string(role)); err != nil {
		return "", err
	}
	if id == "" {
		var err error
		if id, err = newID(); err != nil {
			return "", err
		}
	}

	now := t.backend.timestamp()
	_, err := t.backend.q.ExecContext(ctx,
		`INSERT INTO users (id, username, email, role, currency_balance, is_banned, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     username = excluded.username,
		     email = excluded.email,
		     role = excluded.role,
		     is_banned = excluded.is_banned,
		     updated_at = excluded.updated_at`,
		id, username, u.Email, string(role), boolToInt(u.Banned), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: username %q is taken", types.ErrInvalidData, username)
		}
		return "", fmt.Errorf("saving user: %w", err)
	}
	u.ID = id
	return id, nil
}

func (t *Table) fetchUsers(ctx context.Context, filter map[string]any) ([]any, error) {
	where, args, err := filterClause(filter, map[string]string{
		"role":     "role",
		"banned":   "is_banned",
		"username": "username",
	})
	if err != nil {
		return nil, err
	}
	rows, err := t.backend.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users"+where+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching users: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}
