package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent double-quotes a table or column name. Names come from code, not
// from callers, but anything that is not a plain identifier is refused.
func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: identifier %q", types.ErrInvalidData, name)
	}
	return `"` + name + `"`, nil
}

// DriftReport is the outcome of migrating one table.
type DriftReport struct {
	Table   string
	Missing bool     // Table does not exist; nothing was attempted.
	Added   []string // Columns added by this run.
	Failed  []*types.SchemaDriftError
}

// tableColumns returns the lower-cased column names of table from
// PRAGMA table_info. exists is false when the table is absent.
func tableColumns(ctx context.Context, q queryer, table string) (cols map[string]bool, exists bool, err error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return nil, false, err
	}
	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+ident+")")
	if err != nil {
		return nil, false, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols = make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      any
			pkOrdinal int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pkOrdinal); err != nil {
			return nil, false, fmt.Errorf("scanning columns of %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	return cols, len(cols) > 0, nil
}

// addColumnDDL renders ALTER TABLE ... ADD COLUMN for c. SQLite rejects
// NOT NULL without a default on an existing table, so NotNull is dropped
// when Default is empty.
func addColumnDDL(table string, c Column) (string, error) {
	tIdent, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	cIdent, err := quoteIdent(c.Name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN %s %s", tIdent, cIdent, c.Type)
	if c.Default != "" {
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String(), nil
}

// MigrateTable adds every column of schema that the live table lacks. It
// never drops, renames or retypes a column. A column that cannot be added is
// logged and recorded in the report, and the remaining columns are still
// attempted. The returned error is non-nil only when the catalog cannot be
// read or the file turns out to be full or corrupt.
func MigrateTable(ctx context.Context, q queryer, logger zerolog.Logger, schema TableSchema) (DriftReport, error) {
	report := DriftReport{Table: schema.Name}

	existing, exists, err := tableColumns(ctx, q, schema.Name)
	if err != nil {
		return report, err
	}
	if !exists {
		report.Missing = true
		return report, nil
	}

	for _, c := range schema.Columns {
		if existing[strings.ToLower(c.Name)] {
			continue
		}
		if c.PrimaryKey {
			report.Failed = append(report.Failed, driftFailure(logger, schema.Name, c.Name,
				fmt.Errorf("primary key column cannot be added to an existing table")))
			continue
		}
		stmt, err := addColumnDDL(schema.Name, c)
		if err == nil {
			_, err = q.ExecContext(ctx, stmt)
		}
		if err != nil {
			if sev := Classify(err); sev == SeverityDiskFull || sev == SeveritySevere {
				return report, fmt.Errorf("adding column %s.%s: %w", schema.Name, c.Name, err)
			}
			report.Failed = append(report.Failed, driftFailure(logger, schema.Name, c.Name, err))
			continue
		}
		driftColumns.WithLabelValues("added").Inc()
		report.Added = append(report.Added, c.Name)
		logger.Info().Str("table", schema.Name).Str("column", c.Name).Msg("added missing column")
	}
	return report, nil
}

func driftFailure(logger zerolog.Logger, table, column string, err error) *types.SchemaDriftError {
	driftColumns.WithLabelValues("failed").Inc()
	drift := &types.SchemaDriftError{Table: table, Column: column, Err: err}
	logger.Warn().Err(err).Str("table", table).Str("column", column).Msg("could not add missing column")
	return drift
}
