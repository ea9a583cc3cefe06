package types

import (
	"fmt"
	"time"
)

// TxType tags a currency ledger entry with the business operation that
// produced it. The on-disk form is the string value.
type TxType string

// Ledger transaction types.
const (
	TxPurchase      TxType = "purchase"
	TxUnlockChapter TxType = "unlock_chapter"
	TxDailyReward   TxType = "daily_reward"
	TxAdminGrant    TxType = "admin_grant"
	TxAdminDeduct   TxType = "admin_deduct"
	TxAdminAdjust   TxType = "admin_adjust"
	TxRefund        TxType = "refund"
)

// adminTxTypes are exempt from the zero-balance floor. They exist so an
// operator can force a correction through, including below zero.
var adminTxTypes = map[TxType]bool{
	TxAdminGrant:  true,
	TxAdminDeduct: true,
	TxAdminAdjust: true,
	TxRefund:      true,
}

var validTxTypes = map[TxType]bool{
	TxPurchase:      true,
	TxUnlockChapter: true,
	TxDailyReward:   true,
	TxAdminGrant:    true,
	TxAdminDeduct:   true,
	TxAdminAdjust:   true,
	TxRefund:        true,
}

// ParseTxType converts a stored or user-supplied tag into a TxType.
// Returns ErrInvalidTxType for unknown tags.
func ParseTxType(s string) (TxType, error) {
	t := TxType(s)
	if !validTxTypes[t] {
		return "", fmt.Errorf("%w: %q", ErrInvalidTxType, s)
	}
	return t, nil
}

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool { return validTxTypes[t] }

// IsAdmin reports whether t is an administrative correction that may take a
// balance below zero.
func (t TxType) IsAdmin() bool { return adminTxTypes[t] }

func (t TxType) String() string { return string(t) }

// CurrencyTransaction is an immutable ledger entry. It is written exactly once,
// in the same transaction as the balance update it explains.
type CurrencyTransaction struct {
	ID              string
	UserID          string
	Amount          int64 // Signed delta applied to the balance.
	Type            TxType
	Description     string
	RelatedEntityID string // Empty when the entry has no related entity.
	CreatedAt       time.Time
}

// CurrencyDelta is the input to Engine.ApplyCurrencyDelta.
type CurrencyDelta struct {
	UserID          string
	Amount          int64
	Type            TxType
	Description     string
	RelatedEntityID string
}

// BalanceReconciliation compares the cached balance on the user row with the
// sum of the user's ledger entries.
type BalanceReconciliation struct {
	UserID    string
	Cached    int64
	LedgerSum int64
}

// Consistent reports whether the cached balance equals the ledger sum.
func (r BalanceReconciliation) Consistent() bool { return r.Cached == r.LedgerSum }
