package types

import (
	"errors"
	"path/filepath"
	"time"
)

// Default configuration values. DefaultDBPath is relative to the working
// directory of the process.
const (
	DefaultDBPath             = "data/pagevault.db"
	DefaultBackupDirName      = "backups"
	DefaultMaxAttempts        = 3
	DefaultRetryBackoff       = 250 * time.Millisecond
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultMaxOpenConns       = 4
	DefaultBusyTimeout        = 5 * time.Second
)

// Config holds the engine's startup parameters. Field tags drive
// environment parsing; see internal/paths.
type Config struct {
	DBPath             string        `env:"PAGEVAULT_DB_PATH" envDefault:"data/pagevault.db" json:"db_path" yaml:"db_path"`
	BackupDir          string        `env:"PAGEVAULT_BACKUP_DIR" json:"backup_dir" yaml:"backup_dir"`
	MaxAttempts        int           `env:"PAGEVAULT_MAX_ATTEMPTS" envDefault:"3" json:"max_attempts" yaml:"max_attempts"`
	RetryBackoff       time.Duration `env:"PAGEVAULT_RETRY_BACKOFF" envDefault:"250ms" json:"retry_backoff" yaml:"retry_backoff"`
	SlowQueryThreshold time.Duration `env:"PAGEVAULT_SLOW_QUERY_THRESHOLD" envDefault:"200ms" json:"slow_query_threshold" yaml:"slow_query_threshold"`
	MaxOpenConns       int           `env:"PAGEVAULT_MAX_OPEN_CONNS" envDefault:"4" json:"max_open_conns" yaml:"max_open_conns"`
	BusyTimeout        time.Duration `env:"PAGEVAULT_BUSY_TIMEOUT" envDefault:"5s" json:"busy_timeout" yaml:"busy_timeout"`
}

// Config validation errors.
var (
	ErrDBPathEmpty         = errors.New("database path must not be empty")
	ErrMaxAttemptsInvalid  = errors.New("max attempts must be at least 1")
	ErrDurationNegative    = errors.New("durations must not be negative")
	ErrMaxOpenConnsInvalid = errors.New("max open connections must be positive")
)

// DefaultConfig returns a Config populated with the documented defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:             DefaultDBPath,
		MaxAttempts:        DefaultMaxAttempts,
		RetryBackoff:       DefaultRetryBackoff,
		SlowQueryThreshold: DefaultSlowQueryThreshold,
		MaxOpenConns:       DefaultMaxOpenConns,
		BusyTimeout:        DefaultBusyTimeout,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return ErrDBPathEmpty
	}
	if c.MaxAttempts < 1 {
		return ErrMaxAttemptsInvalid
	}
	if c.RetryBackoff < 0 || c.SlowQueryThreshold < 0 || c.BusyTimeout < 0 {
		return ErrDurationNegative
	}
	if c.MaxOpenConns < 1 {
		return ErrMaxOpenConnsInvalid
	}
	return nil
}

// ResolvedBackupDir returns BackupDir, or the backups directory next to the
// database file when BackupDir is empty.
func (c Config) ResolvedBackupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), DefaultBackupDirName)
}
