package types

import (
	"errors"
	"fmt"
	"strings"
)

// Engine lifecycle errors.
var (
	ErrEngineClosed  = errors.New("engine is closed")
	ErrTableNotFound = errors.New("table not found")
)

// Table and entity errors.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidID       = errors.New("invalid entity ID")
	ErrInvalidData     = errors.New("invalid entity data")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrUserNotFound    = errors.New("user not found")
	ErrSeriesNotFound  = errors.New("series not found")
	ErrChapterNotFound = errors.New("chapter not found")
	ErrInvalidAmount   = errors.New("invalid currency amount")
	ErrInvalidTxType   = errors.New("invalid transaction type")
	ErrAlreadyUnlocked = errors.New("chapter already unlocked")
	ErrInvalidFlag     = errors.New("setting is not a boolean flag")
)

// Sentinels matched by the typed business-rule errors below, so callers can
// use errors.Is without knowing the concrete type.
var (
	ErrDuplicateChapter    = errors.New("duplicate chapter")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSevereCorruption    = errors.New("severe database corruption")
	ErrDiskFull            = errors.New("database or disk is full")
	ErrConstraintMissing   = errors.New("unique constraint verification failed")
)

// DuplicateChapterError reports that (SeriesID, Number) already exists.
// It is a business-rule rejection, equivalent to an HTTP 409.
type DuplicateChapterError struct {
	Key ChapterKey
}

func (e *DuplicateChapterError) Error() string {
	return fmt.Sprintf("duplicate chapter: series %q already has chapter %q", e.Key.SeriesID, e.Key.Number)
}

// Is matches ErrDuplicateChapter.
func (e *DuplicateChapterError) Is(target error) bool { return target == ErrDuplicateChapter }

// InsufficientBalanceError reports a non-administrative debit that would take
// the balance below zero. Nothing was written.
type InsufficientBalanceError struct {
	UserID  string
	Balance int64
	Amount  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: user %q has %d, delta %d", e.UserID, e.Balance, e.Amount)
}

// Is matches ErrInsufficientBalance.
func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// SchemaDriftError records a column that could not be added during additive
// migration. It is logged, never fatal.
type SchemaDriftError struct {
	Table  string
	Column string
	Err    error
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift: add column %s.%s: %v", e.Table, e.Column, e.Err)
}

func (e *SchemaDriftError) Unwrap() error { return e.Err }

// SevereCorruptionError marks a database file as unusable. The bootstrapper
// quarantines the file and starts over on a fresh one.
type SevereCorruptionError struct {
	Path   string
	Detail string
	Err    error
}

func (e *SevereCorruptionError) Error() string {
	msg := "severe corruption"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SevereCorruptionError) Unwrap() error { return e.Err }

// Is matches ErrSevereCorruption.
func (e *SevereCorruptionError) Is(target error) bool { return target == ErrSevereCorruption }

// DiskFullError is fatal to the process. No recovery is attempted; the
// operator must free space.
type DiskFullError struct {
	Path string
	Err  error
}

func (e *DiskFullError) Error() string {
	return fmt.Sprintf("disk full while using %s (free space and restart): %v", e.Path, e.Err)
}

func (e *DiskFullError) Unwrap() error { return e.Err }

// Is matches ErrDiskFull.
func (e *DiskFullError) Is(target error) bool { return target == ErrDiskFull }

// IndexInfo describes one index as read from the catalog.
type IndexInfo struct {
	Name    string
	Unique  bool
	Partial bool
	Origin  string // "c" (CREATE INDEX), "u" (UNIQUE clause) or "pk".
	Columns []string
}

// ConstraintVerificationError means a required unique index is missing or
// covers the wrong columns. The process must not serve traffic.
type ConstraintVerificationError struct {
	Table   string
	Columns []string
	Indexes []IndexInfo // What the catalog actually holds.
	Err     error
}

func (e *ConstraintVerificationError) Error() string {
	msg := fmt.Sprintf("unique constraint on %s(%s) not in place", e.Table, strings.Join(e.Columns, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstraintVerificationError) Unwrap() error { return e.Err }

// Is matches ErrConstraintMissing.
func (e *ConstraintVerificationError) Is(target error) bool { return target == ErrConstraintMissing }

// StartupError is returned when the bootstrapper gives up.
type StartupError struct {
	Path     string
	Attempts int
	State    string // State of the bootstrapper when it gave up; always "error".
	Stage    string // Pipeline step whose failure ended startup.
	Err      error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed for %s after %d attempt(s) at stage %s: %v", e.Path, e.Attempts, e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }
