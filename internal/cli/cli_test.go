package cli

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pagevault/internal/sqlite"
	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// testEnv is an isolated config dir and database path.
type testEnv struct {
	configDir string
	dbPath    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	t.Cleanup(func() { flags = rootFlags{} })
	return testEnv{
		configDir: filepath.Join(root, "config"),
		dbPath:    filepath.Join(root, "data", "pv.db"),
	}
}

// run executes the CLI with the environment's global flags prepended.
func (e testEnv) run(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config-dir", e.configDir, "--db-path", e.dbPath}, args...)
	code = run(full, &out, &errOut)
	return out.String(), errOut.String(), code
}

func (e testEnv) backend(t *testing.T) *sqlite.Backend {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.DBPath = e.dbPath
	b, err := sqlite.Open(context.Background(), cfg, sqlite.Options{})
	require.NoError(t, err)
	return b
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	out, _, code := env.run(t, "version")
	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, out, "pagevault v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)

	out, stderr, code := env.run(t, "init")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "pagevault initialized at "+env.dbPath)

	_, err := os.Stat(env.dbPath)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(env.configDir, configFileExt))
	require.NoError(t, err)
	var written configFile
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, env.dbPath, written.DBPath)

	_, stderr, code = env.run(t, "init")
	assert.Equal(t, exitSuccess, code, "init is repeatable: %s", stderr)
}

func TestWriteConfigIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileExt)

	require.NoError(t, writeConfigIfMissing(path, configFile{DBPath: "/srv/pv.db", BackupDir: "/srv/backups"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "db_path: /srv/pv.db")
	assert.Contains(t, string(data), "backup_dir: /srv/backups")

	require.NoError(t, os.WriteFile(path, []byte("db_path: /custom.db\n"), 0o644))
	require.NoError(t, writeConfigIfMissing(path, configFile{DBPath: "/other.db"}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db_path: /custom.db\n", string(data), "existing config is kept")
}

func TestResolveConfig_ConfigFile(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.configDir, 0o755))
	yamlDB := filepath.Join(t.TempDir(), "from-yaml.db")
	content := "db_path: " + yamlDB + "\nmax_attempts: 5\nretry_backoff: 1s\n"
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, configFileExt), []byte(content), 0o644))

	flags = rootFlags{configDir: env.configDir}
	cfg, dir, err := resolveConfig()
	require.NoError(t, err)
	assert.Equal(t, env.configDir, dir)
	assert.Equal(t, yamlDB, cfg.DBPath)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, filepath.Join(filepath.Dir(yamlDB), types.DefaultBackupDirName), cfg.BackupDir)

	flags.dbPath = env.dbPath
	cfg, _, err = resolveConfig()
	require.NoError(t, err)
	assert.Equal(t, env.dbPath, cfg.DBPath, "flag beats config.yaml")
}

func TestResolveConfig_Invalid(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, configFileExt), []byte("max_attempts: 0\n"), 0o644))

	_, stderr, code := env.run(t, "verify")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, types.ErrMaxAttemptsInvalid.Error())
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	out, stderr, code := env.run(t, "verify")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "chapters(series_id, chapter_number) enforced by")
}

func TestVerify_MissingConstraint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(env.dbPath), 0o755))
	db, err := sql.Open("sqlite", env.dbPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE chapters (id TEXT PRIMARY KEY, series_id TEXT NOT NULL, chapter_number TEXT NOT NULL, created_at TEXT NOT NULL)`,
		`INSERT INTO chapters VALUES ('c1', 'S1', '3', ''), ('c2', 'S1', '3', '')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	_, stderr, code := env.run(t, "verify")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "chapters")
}

func TestDoctor(t *testing.T) {
	env := newTestEnv(t)
	out, stderr, code := env.run(t, "doctor")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "integrity:   ok")
	assert.Contains(t, out, "constraints: true")
	assert.Contains(t, out, "quarantine:  none")
}

func TestFindArtifacts(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "pv.db")
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	stamp := "20260101T000000.000000000Z"
	files := map[string]string{
		filepath.Join(backupDir, "pv.db."+stamp+".bak"): "backup",
		dbPath + ".preserved-" + stamp:                  "preserved",
		dbPath + ".corrupted-" + stamp:                  "corrupted",
		filepath.Join(dir, "unrelated.db"):              "",
	}
	for path := range files {
		require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	}

	found, err := findArtifacts(dbPath, backupDir)
	require.NoError(t, err)
	require.Len(t, found, 3)
	for _, a := range found {
		assert.Equal(t, files[a.Path], a.Kind)
		assert.Equal(t, int64(4), a.Size)
	}
}

func TestLedgerCommands(t *testing.T) {
	env := newTestEnv(t)
	b := env.backend(t)
	users, err := b.GetTable(types.UsersTable)
	require.NoError(t, err)
	_, err = users.Set(context.Background(), "U1", &types.User{Username: "reader"})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	out, stderr, code := env.run(t, "ledger", "apply", "U1", "100", "--type", "purchase", "--related", "order-1")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "balance: 100")

	_, stderr, code = env.run(t, "ledger", "apply", "U1", "--type", "unlock_chapter", "--", "-150")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "insufficient balance")

	_, _, code = env.run(t, "ledger", "apply", "U1", "10", "--type", "bogus")
	assert.Equal(t, exitUserError, code)

	_, _, code = env.run(t, "ledger", "apply", "nobody", "10", "--type", "purchase")
	assert.Equal(t, exitUserError, code)

	for _, amount := range []string{"1e3", "12abc", "10.5", "", "99999999999999999999"} {
		_, stderr, code = env.run(t, "ledger", "apply", "U1", amount, "--type", "purchase")
		assert.Equal(t, exitUserError, code, "amount %q", amount)
		assert.Contains(t, stderr, "is not an integer", "amount %q", amount)
	}

	_, stderr, code = env.run(t, "ledger", "apply", "U1", "--", "-500")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, `required flag(s) "type" not set`)

	out, stderr, code = env.run(t, "ledger", "balance", "U1")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "balance:    100")
	assert.Contains(t, out, "ledger sum: 100")

	out, stderr, code = env.run(t, "ledger", "history", "U1")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "purchase")
	assert.Contains(t, out, "order-1")
	assert.NotContains(t, out, "unlock_chapter", "rejected debits leave no entry")
}

func TestChapterExists(t *testing.T) {
	env := newTestEnv(t)
	b := env.backend(t)
	series, err := b.GetTable(types.SeriesTable)
	require.NoError(t, err)
	_, err = series.Set(context.Background(), "S1", &types.Series{Title: "Tower", Slug: "tower"})
	require.NoError(t, err)
	_, err = b.CreateChapter(context.Background(), types.ChapterInput{SeriesID: "S1", Number: "10.5", Pages: []string{"a"}})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	out, stderr, code := env.run(t, "chapter", "exists", "S1", "10.5")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Equal(t, "true\n", out)

	out, _, code = env.run(t, "chapter", "exists", "S1", "11")
	require.Equal(t, exitSuccess, code)
	assert.Equal(t, "false\n", out)

	out, stderr, code = env.run(t, "chapter", "list", "S1")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "10.5")
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "langs.jsonl")

	out, stderr, code := env.run(t, "export", "languages", "--out", path)
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "languages: ")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code":"en"`)

	_, _, code = env.run(t, "export", "sqlite_master", "--out", path)
	assert.Equal(t, exitUserError, code)

	dir := filepath.Join(t.TempDir(), "all")
	_, stderr, code = env.run(t, "export", "--dir", dir)
	require.Equal(t, exitSuccess, code, stderr)
	_, err = os.Stat(filepath.Join(dir, "reward_cycle.jsonl"))
	assert.NoError(t, err)
}
