package types

import "context"

// Table names exposed through Engine.GetTable for plain keyed CRUD.
const (
	UsersTable     = "users"
	SeriesTable    = "series"
	SettingsTable  = "settings"
	LanguagesTable = "languages"
)

// StandardTableNames lists the CRUD table names for enumeration.
var StandardTableNames = []string{
	UsersTable,
	SeriesTable,
	SettingsTable,
	LanguagesTable,
}

// UniqueCheck is the result of verifying one required unique index.
type UniqueCheck struct {
	Table   string
	Columns []string
	OK      bool
	Matched string      // Name of the covering index when OK.
	Indexes []IndexInfo // All indexes on the table, reported on failure.
}

// UniqueConstraintReport is returned by Engine.VerifyUniqueConstraints.
type UniqueConstraintReport struct {
	OK     bool
	Checks []UniqueCheck
}

// Engine is the handle every higher-level feature goes through. It is built
// once by the bootstrapper and passed explicitly to callers.
type Engine interface {
	// ApplyCurrencyDelta atomically appends one ledger row and updates the
	// cached balance. Returns the new balance.
	ApplyCurrencyDelta(ctx context.Context, d CurrencyDelta) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]CurrencyTransaction, error)
	ReconcileBalance(ctx context.Context, userID string) (BalanceReconciliation, error)

	// CreateChapter inserts a chapter, returning *DuplicateChapterError when
	// (SeriesID, Number) is taken.
	CreateChapter(ctx context.Context, in ChapterInput) (*Chapter, error)
	// ChapterExists is a pre-flight read. A false result does not guarantee
	// a later CreateChapter succeeds.
	ChapterExists(ctx context.Context, seriesID, number string) (bool, error)
	GetChapter(ctx context.Context, id string) (*Chapter, error)
	ListChapters(ctx context.Context, seriesID string) ([]*Chapter, error)
	UpdateChapterPages(ctx context.Context, id string, pages []string) (*Chapter, error)
	UnlockChapter(ctx context.Context, userID, chapterID string) (int64, error)

	VerifyUniqueConstraints(ctx context.Context) (UniqueConstraintReport, error)
	CheckIntegrity(ctx context.Context) error

	GetFlag(ctx context.Context, key string) (bool, error)
	SetFlag(ctx context.Context, key string, enabled bool) error
	RecordAudit(ctx context.Context, entry AuditEntry) (string, error)

	// GetTable returns the CRUD Table for one of StandardTableNames.
	GetTable(name string) (Table, error)

	// Close releases the handle. Idempotent.
	Close() error
}
