package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// timeLayout is the on-disk timestamp format. The fixed-width fraction keeps
// text ordering equal to time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Options carries the collaborators Open needs besides the Config. The zero
// value is usable.
type Options struct {
	Logger *zerolog.Logger                            // Defaults to a no-op logger.
	Hook   StatementHook                              // Called after every statement, when set.
	Now    func() time.Time                           // Defaults to time.Now.
	Sleep  func(context.Context, time.Duration) error // Retry backoff; defaults to a timer.
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backend implements types.Engine on a single SQLite file. It is created by
// Open and shared by every caller; there is no package-level instance.
type Backend struct {
	mu     sync.RWMutex
	closed bool
	config types.Config
	db     *sql.DB
	q      queryer
	logger zerolog.Logger
	hook   StatementHook
	now    func() time.Time
	tables map[string]*Table
}

var _ types.Engine = (*Backend)(nil)

// dsn builds the driver connection string. Writers take the lock at BEGIN
// so concurrent read-modify-write transactions serialise instead of failing
// on upgrade.
func dsn(cfg types.Config) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	return "file:" + cfg.DBPath + "?" + params.Encode()
}

func openDB(ctx context.Context, cfg types.Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.DBPath, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", cfg.DBPath, err)
	}
	return db, nil
}

func newBackend(db *sql.DB, cfg types.Config, opts Options) *Backend {
	b := &Backend{
		config: cfg,
		db:     db,
		logger: *opts.Logger,
		hook:   opts.Hook,
		now:    opts.Now,
	}
	b.q = b.wrap(db)
	b.tables = map[string]*Table{
		types.UsersTable:     {backend: b, name: types.UsersTable},
		types.SeriesTable:    {backend: b, name: types.SeriesTable},
		types.SettingsTable:  {backend: b, name: types.SettingsTable},
		types.LanguagesTable: {backend: b, name: types.LanguagesTable},
	}
	return b
}

func (b *Backend) wrap(q queryer) queryer {
	return instrument(q, b.config.SlowQueryThreshold, b.logger, b.hook)
}

// Config returns the configuration the engine was opened with.
func (b *Backend) Config() types.Config { return b.config }

// DB exposes the underlying handle for read-only diagnostics.
func (b *Backend) DB() *sql.DB { return b.db }

func (b *Backend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return types.ErrEngineClosed
	}
	return nil
}

// GetTable returns the CRUD table for one of types.StandardTableNames.
func (b *Backend) GetTable(name string) (types.Table, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Close releases the database handle. Calling Close more than once is safe.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// withTx runs fn inside one transaction. fn's error, or a failed commit,
// rolls everything back.
func (b *Backend) withTx(ctx context.Context, fn func(q queryer) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(b.wrap(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (b *Backend) timestamp() string { return formatTime(b.now()) }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// legacyTimeLayouts are accepted when reading. SQLite's CURRENT_TIMESTAMP
// writes time.DateTime in UTC.
var legacyTimeLayouts = []string{time.RFC3339Nano, time.DateTime}

// parseTime accepts the engine's layout, anything RFC 3339 and SQLite's
// "YYYY-MM-DD HH:MM:SS". Unparseable or empty values, typical of rows
// written before a column existed, yield the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id.String(), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
