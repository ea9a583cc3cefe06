// Package cli implements the pagevault command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dbPath    string
	backupDir string
	jsonMode  bool
	verbose   bool
}

var flags rootFlags

// NewRootCmd creates the top-level "pagevault" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pagevault",
		Short: "Operate the pagevault storage engine",
		Long: "pagevault bootstraps, verifies and inspects the embedded SQLite store\n" +
			"behind the reading platform: ledger, chapters and reference data.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db-path", "", "database file (default: data/pagevault.db)")
	root.PersistentFlags().StringVar(&flags.backupDir, "backup-dir", "", "quarantine backup directory (default: <db dir>/backups)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output and log in JSON format")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newLedgerCmd())
	root.AddCommand(newChapterCmd())
	root.AddCommand(newExportCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command tree with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)

	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}

// codedError carries the exit code a failed command should produce.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// exitError wraps err so the process exits with code.
func exitError(code int, format string, args ...any) error {
	return &codedError{code: code, err: fmt.Errorf(format, args...)}
}

// newLogger builds the CLI logger on w: a console writer by default, raw
// JSON with --json. --verbose lowers the level to debug.
func newLogger(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if flags.verbose {
		level = zerolog.DebugLevel
	}
	if flags.jsonMode {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
