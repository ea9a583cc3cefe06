package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// artifact is a file left behind by a quarantine.
type artifact struct {
	Kind    string    `json:"kind"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// doctorReport is the --json output of doctor.
type doctorReport struct {
	DBPath      string     `json:"db_path"`
	Size        int64      `json:"size"`
	Integrity   string     `json:"integrity"`
	Constraints bool       `json:"constraints_ok"`
	Artifacts   []artifact `json:"artifacts"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run integrity and constraint checks and list quarantined files",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	b, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer b.Close()
	ctx := cmd.Context()
	cfg := b.Config()

	report := doctorReport{DBPath: cfg.DBPath, Integrity: "ok"}
	if info, err := os.Stat(cfg.DBPath); err == nil {
		report.Size = info.Size()
	}
	if err := b.CheckIntegrity(ctx); err != nil {
		report.Integrity = err.Error()
	}
	constraints, err := b.VerifyUniqueConstraints(ctx)
	if err != nil {
		return exitError(exitSysError, "verify constraints: %s", err)
	}
	report.Constraints = constraints.OK

	report.Artifacts, err = findArtifacts(cfg.DBPath, cfg.ResolvedBackupDir())
	if err != nil {
		return exitError(exitSysError, "list quarantined files: %s", err)
	}

	if flags.jsonMode {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "database:    %s (%s)\n", report.DBPath, humanize.Bytes(uint64(report.Size)))
		fmt.Fprintf(out, "integrity:   %s\n", report.Integrity)
		fmt.Fprintf(out, "constraints: %t\n", report.Constraints)
		if len(report.Artifacts) == 0 {
			fmt.Fprintln(out, "quarantine:  none")
		}
		for _, a := range report.Artifacts {
			fmt.Fprintf(out, "%-10s %8s  %-14s %s\n", a.Kind, humanize.Bytes(uint64(a.Size)), humanize.Time(a.ModTime), a.Path)
		}
	}

	if report.Integrity != "ok" || !report.Constraints {
		return exitError(exitUserError, "database is unhealthy")
	}
	return nil
}

// findArtifacts lists backups, preserved copies and corrupted originals of
// dbPath, oldest first.
func findArtifacts(dbPath, backupDir string) ([]artifact, error) {
	base := filepath.Base(dbPath)
	patterns := []struct {
		kind    string
		pattern string
	}{
		{"backup", filepath.Join(backupDir, base+".*.bak")},
		{"preserved", dbPath + ".preserved-*"},
		{"corrupted", dbPath + ".corrupted-*"},
	}

	var found []artifact
	for _, p := range patterns {
		matches, err := filepath.Glob(p.pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			found = append(found, artifact{Kind: p.kind, Path: m, Size: info.Size(), ModTime: info.ModTime()})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].ModTime.Before(found[j].ModTime) })
	return found, nil
}
