package sqlite

import (
	"errors"
	"strings"
	"syscall"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// Severity buckets a database error by the recovery it calls for.
type Severity int

// Severities, from least to most destructive recovery.
const (
	SeverityUnknown Severity = iota
	SeverityRecoverableSchema
	SeverityDiskFull
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeverityRecoverableSchema:
		return "recoverable_schema"
	case SeverityDiskFull:
		return "disk_full"
	case SeveritySevere:
		return "severe"
	default:
		return "unknown"
	}
}

var (
	schemaMarkers = []string{
		"no such table",
		"no such column",
		"already exists",
		"schema has changed",
		"has no column named",
	}
	diskFullMarkers = []string{
		"database or disk is full",
		"disk is full",
		"no space left on device",
	}
	severeMarkers = []string{
		"database disk image is malformed",
		"file is not a database",
		"file is encrypted or is not a database",
		"malformed database schema",
	}
)

func containsAny(msg string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// driverCode returns the primary SQLite result code carried by err, or 0.
func driverCode(err error) (primary, extended int) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() & 0xff, se.Code()
	}
	return 0, 0
}

// Classify maps err onto a Severity. Matching runs from the least
// destructive bucket to the most destructive one, so an error that looks
// like both a schema problem and corruption is treated as a schema problem.
// Driver errors only yield SeveritySevere when no milder bucket matches.
func Classify(err error) Severity {
	if err == nil {
		return SeverityUnknown
	}
	// Errors already typed by the engine are trusted as is.
	var full *types.DiskFullError
	if errors.As(err, &full) {
		return SeverityDiskFull
	}
	var severe *types.SevereCorruptionError
	if errors.As(err, &severe) {
		return SeveritySevere
	}

	msg := strings.ToLower(err.Error())
	primary, _ := driverCode(err)

	if primary == sqlite3.SQLITE_SCHEMA || containsAny(msg, schemaMarkers) {
		return SeverityRecoverableSchema
	}

	if primary == sqlite3.SQLITE_FULL ||
		errors.Is(err, syscall.ENOSPC) || containsAny(msg, diskFullMarkers) {
		return SeverityDiskFull
	}

	if primary == sqlite3.SQLITE_CORRUPT ||
		primary == sqlite3.SQLITE_NOTADB || containsAny(msg, severeMarkers) {
		return SeveritySevere
	}
	return SeverityUnknown
}

// isConstraintViolation reports whether err is any SQLite constraint failure.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if primary, _ := driverCode(err); primary == sqlite3.SQLITE_CONSTRAINT {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	_, extended := driverCode(err)
	if extended == sqlite3.SQLITE_CONSTRAINT_UNIQUE || extended == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "is not unique")
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY failure.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if _, extended := driverCode(err); extended == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
