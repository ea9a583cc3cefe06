// Package paths resolves the configuration directory and the database and
// backup locations for the pagevault CLI.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// AppName names the per-user configuration directory.
const AppName = "pagevault"

// EnvConfigDir overrides the configuration directory.
const EnvConfigDir = "PAGEVAULT_CONFIG_DIR"

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/pagevault (fallback ~/.config/pagevault)
// macOS:   ~/Library/Application Support/pagevault
// Windows: %APPDATA%/pagevault
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > PAGEVAULT_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if v := os.Getenv(EnvConfigDir); v != "" {
		return filepath.Abs(v)
	}
	return DefaultConfigDir()
}

// LoadEnv parses the PAGEVAULT_* variables into a Config. Unset variables
// take their documented defaults.
func LoadEnv() (types.Config, error) {
	var cfg types.Config
	if err := env.Parse(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ResolveDBPath picks the database path: flag > config.yaml value > the
// environment-or-default value. The result is absolute.
func ResolveDBPath(flag, configYAMLValue, envValue string) (string, error) {
	for _, v := range []string{flag, configYAMLValue, envValue} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return filepath.Abs(types.DefaultDBPath)
}

// ResolveBackupDir picks the backup directory with the same precedence as
// ResolveDBPath. When nothing is set it is the backups directory next to
// dbPath.
func ResolveBackupDir(flag, configYAMLValue, envValue, dbPath string) (string, error) {
	for _, v := range []string{flag, configYAMLValue, envValue} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return filepath.Join(filepath.Dir(dbPath), types.DefaultBackupDirName), nil
}
