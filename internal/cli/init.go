package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	DBPath    string `yaml:"db_path"`
	BackupDir string `yaml:"backup_dir,omitempty"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the database and write config.yaml",
		Long: "Create the configuration directory and a default config.yaml when missing,\n" +
			"then run the startup sequence once so the database is ready for use.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, configDir, err := resolveConfig()
	if err != nil {
		return exitError(exitUserError, "%s", err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return exitError(exitSysError, "create config directory: %s", err)
	}
	configPath := filepath.Join(configDir, configFileExt)
	if err := writeConfigIfMissing(configPath, configFile{DBPath: cfg.DBPath, BackupDir: flags.backupDir}); err != nil {
		return exitError(exitSysError, "write config: %s", err)
	}

	b, err := openEngine(cmd)
	if err != nil {
		return err
	}
	if err := b.Close(); err != nil {
		return exitError(exitSysError, "close database: %s", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pagevault initialized at %s\n", cfg.DBPath)
	return nil
}

// writeConfigIfMissing creates config.yaml with the given values if the file
// does not exist. An existing file is left untouched.
func writeConfigIfMissing(path string, cfg configFile) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
