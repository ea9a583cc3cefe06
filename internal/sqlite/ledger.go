package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

const defaultTransactionLimit = 50

// ApplyCurrencyDelta appends one ledger row and updates the user's cached
// balance in a single transaction, returning the new balance. A
// non-administrative delta that would leave the balance negative is rejected
// with *types.InsufficientBalanceError and nothing is written.
func (b *Backend) ApplyCurrencyDelta(ctx context.Context, d types.CurrencyDelta) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	if err := validateDelta(d); err != nil {
		return 0, err
	}

	var balance int64
	err := b.withTx(ctx, func(q queryer) error {
		var err error
		balance, err = b.applyDelta(ctx, q, d)
		return err
	})
	if err != nil {
		ledgerMutations.WithLabelValues(d.Type.String(), "rejected").Inc()
		return 0, err
	}
	ledgerMutations.WithLabelValues(d.Type.String(), "applied").Inc()
	return balance, nil
}

func validateDelta(d types.CurrencyDelta) error {
	if d.UserID == "" {
		return types.ErrInvalidID
	}
	if d.Amount == 0 {
		return types.ErrInvalidAmount
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidTxType, d.Type)
	}
	return nil
}

// applyDelta is the ledger primitive. It must run inside a transaction that
// holds the write lock from its first statement.
func (b *Backend) applyDelta(ctx context.Context, q queryer, d types.CurrencyDelta) (int64, error) {
	var current int64
	err := q.QueryRowContext(ctx, "SELECT currency_balance FROM users WHERE id = ?", d.UserID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, types.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}

	if (d.Amount > 0 && current > math.MaxInt64-d.Amount) || (d.Amount < 0 && current < math.MinInt64-d.Amount) {
		return 0, fmt.Errorf("%w: balance would overflow", types.ErrInvalidAmount)
	}
	next := current + d.Amount
	if next < 0 && !d.Type.IsAdmin() {
		return 0, &types.InsufficientBalanceError{UserID: d.UserID, Balance: current, Amount: d.Amount}
	}

	id, err := newID()
	if err != nil {
		return 0, err
	}
	now := b.timestamp()
	_, err = q.ExecContext(ctx,
		`INSERT INTO currency_transactions (id, user_id, amount, type, description, related_entity_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, d.UserID, d.Amount, string(d.Type), d.Description, nullString(d.RelatedEntityID), now,
	)
	if err != nil {
		return 0, fmt.Errorf("appending ledger entry: %w", err)
	}

	res, err := q.ExecContext(ctx,
		"UPDATE users SET currency_balance = ?, updated_at = ? WHERE id = ?", next, now, d.UserID)
	if err != nil {
		return 0, fmt.Errorf("updating balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return 0, types.ErrUserNotFound
	}

	b.logger.Debug().
		Str("user_id", d.UserID).
		Int64("amount", d.Amount).
		Str("type", d.Type.String()).
		Int64("balance", next).
		Msg("currency delta applied")
	return next, nil
}

// Balance returns the user's cached balance.
func (b *Backend) Balance(ctx context.Context, userID string) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	var balance int64
	err := b.q.QueryRowContext(ctx, "SELECT currency_balance FROM users WHERE id = ?", userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, types.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	return balance, nil
}

// ListTransactions returns the user's ledger entries, newest first. A limit
// of zero or less uses a default page size.
func (b *Backend) ListTransactions(ctx context.Context, userID string, limit int) ([]types.CurrencyTransaction, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	rows, err := b.q.QueryContext(ctx,
		`SELECT id, user_id, amount, type, description, related_entity_id, created_at
		 FROM currency_transactions WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []types.CurrencyTransaction
	for rows.Next() {
		var (
			t         types.CurrencyTransaction
			typ       string
			related   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &typ, &t.Description, &related, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Type = types.TxType(typ)
		t.RelatedEntityID = related.String
		t.CreatedAt = parseTime(createdAt)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ReconcileBalance compares the cached balance with the ledger sum. It reads
// both in one statement so they come from the same snapshot.
func (b *Backend) ReconcileBalance(ctx context.Context, userID string) (types.BalanceReconciliation, error) {
	rec := types.BalanceReconciliation{UserID: userID}
	if err := b.checkOpen(); err != nil {
		return rec, err
	}
	err := b.q.QueryRowContext(ctx,
		`SELECT u.currency_balance,
		        (SELECT COALESCE(SUM(t.amount), 0) FROM currency_transactions t WHERE t.user_id = u.id)
		 FROM users u WHERE u.id = ?`, userID).Scan(&rec.Cached, &rec.LedgerSum)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, types.ErrUserNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("reconciling balance: %w", err)
	}
	if !rec.Consistent() {
		b.logger.Warn().
			Str("user_id", userID).
			Int64("cached", rec.Cached).
			Int64("ledger_sum", rec.LedgerSum).
			Msg("cached balance differs from ledger")
	}
	return rec, nil
}
