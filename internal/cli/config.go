package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/pagevault/internal/paths"
	"github.com/mesh-intelligence/pagevault/internal/sqlite"
	"github.com/mesh-intelligence/pagevault/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDBPath             = "db_path"
	cfgKeyBackupDir          = "backup_dir"
	cfgKeyMaxAttempts        = "max_attempts"
	cfgKeyRetryBackoff       = "retry_backoff"
	cfgKeySlowQueryThreshold = "slow_query_threshold"
	cfgKeyMaxOpenConns       = "max_open_conns"
	cfgKeyBusyTimeout        = "busy_timeout"
)

// loadConfigFile reads config.yaml from configDir using Viper. A missing
// file is not an error.
func loadConfigFile(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// resolveConfig assembles the engine Config from flags, config.yaml, the
// environment and defaults, in that order of precedence.
func resolveConfig() (types.Config, string, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, "", fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfigFile(configDir)
	if err != nil {
		return types.Config{}, "", err
	}
	cfg, err := paths.LoadEnv()
	if err != nil {
		return types.Config{}, "", err
	}

	cfg.DBPath, err = paths.ResolveDBPath(flags.dbPath, v.GetString(cfgKeyDBPath), cfg.DBPath)
	if err != nil {
		return types.Config{}, "", fmt.Errorf("resolve db path: %w", err)
	}
	cfg.BackupDir, err = paths.ResolveBackupDir(flags.backupDir, v.GetString(cfgKeyBackupDir), cfg.BackupDir, cfg.DBPath)
	if err != nil {
		return types.Config{}, "", fmt.Errorf("resolve backup dir: %w", err)
	}

	if v.IsSet(cfgKeyMaxAttempts) {
		cfg.MaxAttempts = v.GetInt(cfgKeyMaxAttempts)
	}
	if v.IsSet(cfgKeyRetryBackoff) {
		cfg.RetryBackoff = v.GetDuration(cfgKeyRetryBackoff)
	}
	if v.IsSet(cfgKeySlowQueryThreshold) {
		cfg.SlowQueryThreshold = v.GetDuration(cfgKeySlowQueryThreshold)
	}
	if v.IsSet(cfgKeyMaxOpenConns) {
		cfg.MaxOpenConns = v.GetInt(cfgKeyMaxOpenConns)
	}
	if v.IsSet(cfgKeyBusyTimeout) {
		cfg.BusyTimeout = v.GetDuration(cfgKeyBusyTimeout)
	}

	if err := cfg.Validate(); err != nil {
		return types.Config{}, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, configDir, nil
}

// openEngine resolves the configuration and bootstraps the engine. The
// caller must Close the returned backend. Startup failures map to exit 1
// when the store itself is at fault and to exit 2 otherwise.
func openEngine(cmd *cobra.Command) (*sqlite.Backend, error) {
	cfg, _, err := resolveConfig()
	if err != nil {
		return nil, exitError(exitUserError, "%s", err)
	}
	logger := newLogger(cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := sqlite.Open(ctx, cfg, sqlite.Options{Logger: &logger})
	if err != nil {
		var cve *types.ConstraintVerificationError
		if errors.As(err, &cve) {
			return nil, exitError(exitUserError, "open %s: %w", filepath.Base(cfg.DBPath), err)
		}
		return nil, exitError(exitSysError, "open %s: %w", filepath.Base(cfg.DBPath), err)
	}
	return b, nil
}
