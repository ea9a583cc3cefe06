package sqlite

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

func ledgerRows(t *testing.T, b *Backend, userID string) int {
	t.Helper()
	return countRows(t, b, "SELECT COUNT(*) FROM currency_transactions WHERE user_id = ?", userID)
}

func TestLedger_PurchaseUnlockAndRejection(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	createUser(t, b, "U1", "reader")

	balance, err := b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: 100, Type: types.TxPurchase, Description: "pack"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	balance, err = b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: -30, Type: types.TxUnlockChapter, Description: "ch1"})
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)
	assert.Equal(t, 2, ledgerRows(t, b, "U1"))

	_, err = b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: -1000, Type: types.TxPurchase, Description: "x"})
	var insufficient *types.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.Equal(t, int64(70), insufficient.Balance)
	assert.Equal(t, int64(-1000), insufficient.Amount)

	balance, err = b.Balance(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)
	assert.Equal(t, 2, ledgerRows(t, b, "U1"), "a rejected delta writes nothing")

	txs, err := b.ListTransactions(ctx, "U1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(-30), txs[0].Amount, "newest first")
	assert.Equal(t, types.TxUnlockChapter, txs[0].Type)
	assert.Equal(t, "pack", txs[1].Description)
	assert.False(t, txs[1].CreatedAt.IsZero())
}

func TestLedger_AdminTypesHaveNoFloor(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	createUser(t, b, "U1", "reader")

	for _, typ := range []types.TxType{types.TxAdminDeduct, types.TxAdminAdjust, types.TxRefund} {
		_, err := b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: -10, Type: typ})
		require.NoError(t, err, typ)
	}
	balance, err := b.Balance(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(-30), balance)

	rec, err := b.ReconcileBalance(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
	assert.Equal(t, int64(-30), rec.LedgerSum)
}

func TestLedger_InvalidInput(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	createUser(t, b, "U1", "reader")

	tests := []struct {
		name  string
		delta types.CurrencyDelta
		want  error
	}{
		{"zero amount", types.CurrencyDelta{UserID: "U1", Amount: 0, Type: types.TxPurchase}, types.ErrInvalidAmount},
		{"empty user", types.CurrencyDelta{Amount: 5, Type: types.TxPurchase}, types.ErrInvalidID},
		{"unknown type", types.CurrencyDelta{UserID: "U1", Amount: 5, Type: "gift"}, types.ErrInvalidTxType},
		{"unknown user", types.CurrencyDelta{UserID: "nobody", Amount: 5, Type: types.TxPurchase}, types.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.ApplyCurrencyDelta(ctx, tt.delta)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, countRows(t, b, "SELECT COUNT(*) FROM currency_transactions"))
}

func TestLedger_OverflowRejected(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	createUser(t, b, "U1", "reader")

	_, err := b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: math.MaxInt64, Type: types.TxAdminGrant})
	require.NoError(t, err)
	_, err = b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: 1, Type: types.TxAdminGrant})
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestLedger_FailedBalanceUpdateLeavesNoLedgerRow(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	createUser(t, b, "U1", "reader")

	// Abort the balance update after the ledger insert has already run.
	_, err := b.db.Exec(`CREATE TRIGGER fail_balance BEFORE UPDATE OF currency_balance ON users
		WHEN NEW.currency_balance = 777 BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
	require.NoError(t, err)

	_, err = b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: 777, Type: types.TxPurchase})
	require.Error(t, err)

	assert.Zero(t, ledgerRows(t, b, "U1"))
	balance, err := b.Balance(ctx, "U1")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	createUser(t, b, "U1", "reader")
	_, err := b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: 50, Type: types.TxPurchase})
	require.NoError(t, err)

	var ok, rejected atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, err := b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: -10, Type: types.TxUnlockChapter})
			if err == nil {
				ok.Add(1)
			} else if assert.ErrorIs(t, err, types.ErrInsufficientBalance) {
				rejected.Add(1)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(5), rejected.Load())
	rec, err := b.ReconcileBalance(ctx, "U1")
	require.NoError(t, err)
	assert.Zero(t, rec.Cached)
	assert.True(t, rec.Consistent())
}

func TestReconcileBalance_DetectsDrift(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	createUser(t, b, "U1", "reader")
	_, err := b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: "U1", Amount: 40, Type: types.TxPurchase})
	require.NoError(t, err)

	_, err = b.db.Exec("UPDATE users SET currency_balance = 41 WHERE id = 'U1'")
	require.NoError(t, err)

	rec, err := b.ReconcileBalance(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, rec.Consistent())
	assert.Equal(t, int64(41), rec.Cached)
	assert.Equal(t, int64(40), rec.LedgerSum)

	_, err = b.ReconcileBalance(ctx, "nobody")
	assert.ErrorIs(t, err, types.ErrUserNotFound)
}

func TestProperty_CachedBalanceEqualsLedgerSum(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	var run int
	properties.Property("non-admin deltas keep balance equal to ledger sum and never negative", prop.ForAll(
		func(deltas []int64) bool {
			run++
			userID := fmt.Sprintf("prop-%d", run)
			createUser(t, b, userID, userID)

			var expected int64
			for _, d := range deltas {
				if d == 0 {
					continue
				}
				typ := types.TxPurchase
				if d < 0 {
					typ = types.TxUnlockChapter
				}
				balance, err := b.ApplyCurrencyDelta(ctx, types.CurrencyDelta{UserID: userID, Amount: d, Type: typ})
				if expected+d < 0 {
					if err == nil {
						return false
					}
					continue
				}
				if err != nil {
					return false
				}
				expected += d
				if balance != expected {
					return false
				}
			}

			rec, err := b.ReconcileBalance(ctx, userID)
			return err == nil && rec.Consistent() && rec.Cached == expected && expected >= 0
		},
		gen.SliceOf(gen.Int64Range(-150, 150)),
	))

	properties.TestingRun(t)
}
