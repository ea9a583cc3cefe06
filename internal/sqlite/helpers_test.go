package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// testConfig returns a Config rooted in a fresh temp directory.
func testConfig(t *testing.T) types.Config {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "data", "pagevault.db")
	cfg.RetryBackoff = time.Millisecond
	cfg.SlowQueryThreshold = 0
	return cfg
}

// noSleep records requested backoffs without waiting.
type noSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *noSleep) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return nil
}

// statementCounter counts statements whose text starts with a prefix.
type statementCounter struct {
	mu    sync.Mutex
	stmts []string
}

func (c *statementCounter) Hook(query string, _ time.Duration, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stmts = append(c.stmts, compactSQL(query))
}

func (c *statementCounter) Count(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.stmts {
		if strings.HasPrefix(strings.ToUpper(s), prefix) {
			n++
		}
	}
	return n
}

func openTestBackend(t *testing.T, cfg types.Config, opts Options) *Backend {
	t.Helper()
	b, err := Open(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

// newTestBackend opens a ready engine in a temp directory.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	return openTestBackend(t, testConfig(t), Options{})
}

// rawDB opens the file directly, bypassing the bootstrapper.
func rawDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
}

func createUser(t *testing.T, b *Backend, id, username string) {
	t.Helper()
	users, err := b.GetTable(types.UsersTable)
	require.NoError(t, err)
	_, err = users.Set(context.Background(), id, &types.User{Username: username})
	require.NoError(t, err)
}

func createTestSeries(t *testing.T, b *Backend, id, slug string) {
	t.Helper()
	series, err := b.GetTable(types.SeriesTable)
	require.NoError(t, err)
	_, err = series.Set(context.Background(), id, &types.Series{Title: "Series " + slug, Slug: slug})
	require.NoError(t, err)
}

func countRows(t *testing.T, b *Backend, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, b.db.QueryRow(query, args...).Scan(&n))
	return n
}
