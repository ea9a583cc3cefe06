package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagevault/internal/sqlite"
)

func newExportCmd() *cobra.Command {
	var (
		out string
		dir string
	)
	cmd := &cobra.Command{
		Use:   "export [table]",
		Short: "Export tables as JSON Lines for review",
		Long: "Write one JSON object per row. With a table name, write that table to --out;\n" +
			"without one, write <table>.jsonl for every table into --dir.\n\n" +
			"Tables: " + strings.Join(sqlite.ExportableTables(), ", "),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer b.Close()
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				path := out
				if path == "" {
					path = args[0] + ".jsonl"
				}
				n, err := b.ExportTable(cmd.Context(), args[0], path)
				if err != nil {
					return commandError("export "+args[0], err)
				}
				fmt.Fprintf(w, "%s: %d rows -> %s\n", args[0], n, path)
				return nil
			}

			counts, err := b.ExportAll(cmd.Context(), dir)
			if err != nil {
				return commandError("export", err)
			}
			if flags.jsonMode {
				return printJSON(cmd, counts)
			}
			for _, table := range sqlite.ExportableTables() {
				fmt.Fprintf(w, "%-22s %d rows\n", table, counts[table])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file for a single table (default: <table>.jsonl)")
	cmd.Flags().StringVar(&dir, "dir", "export", "output directory when exporting every table")
	return cmd
}
