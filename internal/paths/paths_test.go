package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

func TestDefaultConfigDir_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only test")
	}

	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/pagevault", got)
	})

	t.Run("falls back to ~/.config when XDG unset", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		orig := platformDir.homeDir
		platformDir.homeDir = func() (string, error) { return "/home/tester", nil }
		t.Cleanup(func() { platformDir.homeDir = orig })

		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/home/tester", ".config", "pagevault"), got)
	})

	t.Run("propagates home dir errors", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		orig := platformDir.homeDir
		platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }
		t.Cleanup(func() { platformDir.homeDir = orig })

		_, err := DefaultConfigDir()
		assert.Error(t, err)
	})
}

func TestResolveConfigDir(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/from/env")
		got, err := ResolveConfigDir("/from/flag")
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", got)
	})

	t.Run("env when no flag", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/from/env")
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, "/from/env", got)
	})

	t.Run("relative flag is made absolute", func(t *testing.T) {
		got, err := ResolveConfigDir("conf")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"PAGEVAULT_DB_PATH", "PAGEVAULT_MAX_ATTEMPTS", "PAGEVAULT_RETRY_BACKOFF"} {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
		cfg, err := LoadEnv()
		require.NoError(t, err)
		assert.Equal(t, types.DefaultDBPath, cfg.DBPath)
		assert.Equal(t, types.DefaultMaxAttempts, cfg.MaxAttempts)
		assert.Equal(t, types.DefaultRetryBackoff, cfg.RetryBackoff)
		assert.Equal(t, types.DefaultBusyTimeout, cfg.BusyTimeout)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PAGEVAULT_DB_PATH", "/srv/pv.db")
		t.Setenv("PAGEVAULT_MAX_ATTEMPTS", "5")
		t.Setenv("PAGEVAULT_SLOW_QUERY_THRESHOLD", "1s")
		cfg, err := LoadEnv()
		require.NoError(t, err)
		assert.Equal(t, "/srv/pv.db", cfg.DBPath)
		assert.Equal(t, 5, cfg.MaxAttempts)
		assert.Equal(t, time.Second, cfg.SlowQueryThreshold)
	})

	t.Run("bad value", func(t *testing.T) {
		t.Setenv("PAGEVAULT_MAX_ATTEMPTS", "many")
		_, err := LoadEnv()
		assert.Error(t, err)
	})
}

func TestResolveDBPath(t *testing.T) {
	tests := []struct {
		name             string
		flag, yaml, envV string
		want             string
	}{
		{"flag", "/a.db", "/b.db", "/c.db", "/a.db"},
		{"config yaml", "", "/b.db", "/c.db", "/b.db"},
		{"env", "", "", "/c.db", "/c.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDBPath(tt.flag, tt.yaml, tt.envV)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := ResolveDBPath("", "", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "pagevault.db", filepath.Base(got))
}

func TestResolveBackupDir(t *testing.T) {
	got, err := ResolveBackupDir("", "", "", "/srv/data/pv.db")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data/backups", got)

	got, err = ResolveBackupDir("", "/yaml/backups", "/env/backups", "/srv/data/pv.db")
	require.NoError(t, err)
	assert.Equal(t, "/yaml/backups", got)
}
