package types

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"defaults are valid", func(c *Config) {}, nil},
		{"empty db path", func(c *Config) { c.DBPath = "" }, ErrDBPathEmpty},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, ErrMaxAttemptsInvalid},
		{"negative backoff", func(c *Config) { c.RetryBackoff = -time.Second }, ErrDurationNegative},
		{"negative slow threshold", func(c *Config) { c.SlowQueryThreshold = -1 }, ErrDurationNegative},
		{"zero connections", func(c *Config) { c.MaxOpenConns = 0 }, ErrMaxOpenConnsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfigResolvedBackupDir(t *testing.T) {
	cfg := Config{DBPath: filepath.Join("var", "lib", "pv.db")}
	assert.Equal(t, filepath.Join("var", "lib", "backups"), cfg.ResolvedBackupDir())

	cfg.BackupDir = "/srv/backups"
	assert.Equal(t, "/srv/backups", cfg.ResolvedBackupDir())
}
