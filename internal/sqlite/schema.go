// Package sqlite is the SQLite persistence engine behind pagevault: schema
// bootstrap and repair, the currency ledger, chapter identity and the
// reference tables.
package sqlite

// Table DDL. Every statement is safe to re-run against an existing file.
const (
	createUsers = `CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT 'user',
    currency_balance INTEGER NOT NULL DEFAULT 0,
    is_banned INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT ''
);`

	createSeries = `CREATE TABLE IF NOT EXISTS series (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'ongoing',
    is_adult INTEGER NOT NULL DEFAULT 0,
    language_code TEXT NOT NULL DEFAULT 'en',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT ''
);`

	createChapters = `CREATE TABLE IF NOT EXISTS chapters (
    id TEXT PRIMARY KEY,
    series_id TEXT NOT NULL,
    chapter_number TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    pages TEXT NOT NULL DEFAULT '[]',
    total_pages INTEGER NOT NULL DEFAULT 0,
    is_locked INTEGER NOT NULL DEFAULT 0,
    unlock_cost INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT '',
    UNIQUE (series_id, chapter_number),
    FOREIGN KEY (series_id) REFERENCES series(id) ON DELETE CASCADE
);`

	createCurrencyTransactions = `CREATE TABLE IF NOT EXISTS currency_transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    type TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    related_entity_id TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id)
);`

	createChapterUnlocks = `CREATE TABLE IF NOT EXISTS chapter_unlocks (
    user_id TEXT NOT NULL,
    chapter_id TEXT NOT NULL,
    cost INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    PRIMARY KEY (user_id, chapter_id),
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE CASCADE
);`

	createLanguages = `CREATE TABLE IF NOT EXISTS languages (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    native_name TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1
);`

	createRewardCycle = `CREATE TABLE IF NOT EXISTS reward_cycle (
    day INTEGER PRIMARY KEY,
    reward INTEGER NOT NULL,
    is_bonus INTEGER NOT NULL DEFAULT 0
);`

	createSettings = `CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT ''
);`

	createAuditLog = `CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    actor_id TEXT NOT NULL,
    action TEXT NOT NULL,
    target_id TEXT NOT NULL DEFAULT '',
    details TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);`
)

// Secondary index DDL. These run after additive migration because a legacy
// table may not have the indexed columns until then.
const (
	idxCurrencyTransactionsUser = `CREATE INDEX IF NOT EXISTS idx_currency_transactions_user ON currency_transactions(user_id, created_at);`
	idxChapterUnlocksChapter    = `CREATE INDEX IF NOT EXISTS idx_chapter_unlocks_chapter ON chapter_unlocks(chapter_id);`
	idxAuditLogCreated          = `CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);`
	idxSeriesStatus             = `CREATE INDEX IF NOT EXISTS idx_series_status ON series(status);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createUsers,
	createSeries,
	createChapters,
	createCurrencyTransactions,
	createChapterUnlocks,
	createLanguages,
	createRewardCycle,
	createSettings,
	createAuditLog,
}

// indexDDL lists all secondary CREATE INDEX statements.
var indexDDL = []string{
	idxCurrencyTransactionsUser,
	idxChapterUnlocksChapter,
	idxAuditLogCreated,
	idxSeriesStatus,
}

// Column describes one column the current code expects a table to have.
// Default is a literal SQL expression; NotNull is only honoured by the
// migrator when Default is set.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	Default    string
	PrimaryKey bool
}

// TableSchema is the expected column set of one table.
type TableSchema struct {
	Name    string
	Columns []Column
}

func pk(name, typ string) Column { return Column{Name: name, Type: typ, PrimaryKey: true} }

func col(name, typ, def string) Column {
	return Column{Name: name, Type: typ, NotNull: def != "", Default: def}
}

func nullable(name, typ string) Column { return Column{Name: name, Type: typ} }

// expectedSchemas mirrors schemaDDL. Columns added here are picked up by
// existing databases on the next start.
var expectedSchemas = []TableSchema{
	{Name: "users", Columns: []Column{
		pk("id", "TEXT"),
		col("username", "TEXT", "''"),
		col("email", "TEXT", "''"),
		col("role", "TEXT", "'user'"),
		col("currency_balance", "INTEGER", "0"),
		col("is_banned", "INTEGER", "0"),
		col("created_at", "TEXT", "''"),
		col("updated_at", "TEXT", "''"),
	}},
	{Name: "series", Columns: []Column{
		pk("id", "TEXT"),
		col("title", "TEXT", "''"),
		col("slug", "TEXT", "''"),
		col("status", "TEXT", "'ongoing'"),
		col("is_adult", "INTEGER", "0"),
		col("language_code", "TEXT", "'en'"),
		col("created_at", "TEXT", "''"),
		col("updated_at", "TEXT", "''"),
	}},
	{Name: "chapters", Columns: []Column{
		pk("id", "TEXT"),
		col("series_id", "TEXT", "''"),
		col("chapter_number", "TEXT", "''"),
		col("title", "TEXT", "''"),
		col("pages", "TEXT", "'[]'"),
		col("total_pages", "INTEGER", "0"),
		col("is_locked", "INTEGER", "0"),
		col("unlock_cost", "INTEGER", "0"),
		col("created_at", "TEXT", "''"),
		col("updated_at", "TEXT", "''"),
	}},
	{Name: "currency_transactions", Columns: []Column{
		pk("id", "TEXT"),
		col("user_id", "TEXT", "''"),
		col("amount", "INTEGER", "0"),
		col("type", "TEXT", "''"),
		col("description", "TEXT", "''"),
		nullable("related_entity_id", "TEXT"),
		col("created_at", "TEXT", "''"),
	}},
	{Name: "chapter_unlocks", Columns: []Column{
		pk("user_id", "TEXT"),
		pk("chapter_id", "TEXT"),
		col("cost", "INTEGER", "0"),
		col("created_at", "TEXT", "''"),
	}},
	{Name: "languages", Columns: []Column{
		pk("code", "TEXT"),
		col("name", "TEXT", "''"),
		col("native_name", "TEXT", "''"),
		col("is_active", "INTEGER", "1"),
	}},
	{Name: "reward_cycle", Columns: []Column{
		pk("day", "INTEGER"),
		col("reward", "INTEGER", "0"),
		col("is_bonus", "INTEGER", "0"),
	}},
	{Name: "settings", Columns: []Column{
		pk("key", "TEXT"),
		col("value", "TEXT", "''"),
		col("updated_at", "TEXT", "''"),
	}},
	{Name: "audit_log", Columns: []Column{
		pk("id", "TEXT"),
		col("actor_id", "TEXT", "''"),
		col("action", "TEXT", "''"),
		col("target_id", "TEXT", "''"),
		col("details", "TEXT", "''"),
		col("created_at", "TEXT", "''"),
	}},
}

// uniqueRequirement names a column set that must be covered by a unique,
// non-partial index before the engine serves traffic.
type uniqueRequirement struct {
	Table   string
	Columns []string
}

var requiredUniqueIndexes = []uniqueRequirement{
	{Table: "chapters", Columns: []string{"series_id", "chapter_number"}},
}
