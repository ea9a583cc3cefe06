package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// listIndexes reads every index on table from the catalog, including the
// automatic ones SQLite creates for UNIQUE clauses.
func listIndexes(ctx context.Context, q queryer, table string) ([]types.IndexInfo, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, "PRAGMA index_list("+ident+")")
	if err != nil {
		return nil, fmt.Errorf("listing indexes of %s: %w", table, err)
	}
	var indexes []types.IndexInfo
	for rows.Next() {
		var (
			seq     int
			idx     types.IndexInfo
			unique  int
			partial int
		)
		if err := rows.Scan(&seq, &idx.Name, &unique, &idx.Origin, &partial); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning indexes of %s: %w", table, err)
		}
		idx.Unique = unique != 0
		idx.Partial = partial != 0
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing indexes of %s: %w", table, err)
	}
	rows.Close()

	for i := range indexes {
		cols, err := indexColumns(ctx, q, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}
	return indexes, nil
}

func indexColumns(ctx context.Context, q queryer, index string) ([]string, error) {
	// Automatic index names (sqlite_autoindex_*) are valid identifiers.
	ident, err := quoteIdent(index)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, "PRAGMA index_info("+ident+")")
	if err != nil {
		return nil, fmt.Errorf("reading columns of index %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("scanning columns of index %s: %w", index, err)
		}
		// Expression columns have no name; keep a placeholder so the index
		// can never match a plain column set.
		if !name.Valid {
			cols = append(cols, "<expr>")
			continue
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

// sameColumnSet compares two column lists as case-insensitive sets.
func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	want := make(map[string]int, len(a))
	for _, c := range a {
		want[strings.ToLower(c)]++
	}
	for _, c := range b {
		k := strings.ToLower(c)
		if want[k] == 0 {
			return false
		}
		want[k]--
	}
	return true
}

// findCovering returns the first unique, non-partial index whose column set
// equals columns, in any order.
func findCovering(indexes []types.IndexInfo, columns []string) (types.IndexInfo, bool) {
	for _, idx := range indexes {
		if idx.Unique && !idx.Partial && sameColumnSet(idx.Columns, columns) {
			return idx, true
		}
	}
	return types.IndexInfo{}, false
}

// canonicalIndexName is the name used when the engine creates the index.
func canonicalIndexName(table string, columns []string) string {
	return "ux_" + table + "_" + strings.Join(columns, "_")
}

// EnsureUniqueIndex makes sure a unique index covers exactly columns on
// table. An existing covering index under any name is accepted. Otherwise
// the canonical index is created and the catalog is read again. When the
// index is still not in place, or cannot be built because duplicate rows
// already exist, a *types.ConstraintVerificationError is returned.
func EnsureUniqueIndex(ctx context.Context, q queryer, logger zerolog.Logger, table string, columns []string) (types.IndexInfo, error) {
	indexes, err := listIndexes(ctx, q, table)
	if err != nil {
		return types.IndexInfo{}, err
	}
	if idx, ok := findCovering(indexes, columns); ok {
		return idx, nil
	}

	name := canonicalIndexName(table, columns)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		if quoted[i], err = quoteIdent(c); err != nil {
			return types.IndexInfo{}, err
		}
	}
	tIdent, err := quoteIdent(table)
	if err != nil {
		return types.IndexInfo{}, err
	}
	nIdent, err := quoteIdent(name)
	if err != nil {
		return types.IndexInfo{}, err
	}
	stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(%s)", nIdent, tIdent, strings.Join(quoted, ", "))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		if isConstraintViolation(err) {
			return types.IndexInfo{}, &types.ConstraintVerificationError{
				Table: table, Columns: columns, Indexes: indexes,
				Err: fmt.Errorf("existing rows violate uniqueness: %w", err),
			}
		}
		return types.IndexInfo{}, fmt.Errorf("creating unique index %s: %w", name, err)
	}

	after, err := listIndexes(ctx, q, table)
	if err != nil {
		return types.IndexInfo{}, err
	}
	idx, ok := findCovering(after, columns)
	if !ok {
		return types.IndexInfo{}, &types.ConstraintVerificationError{
			Table: table, Columns: columns, Indexes: after,
			Err: fmt.Errorf("index %s exists but does not cover the columns", name),
		}
	}
	logger.Info().Str("table", table).Strs("columns", columns).Str("index", idx.Name).Msg("created missing unique index")
	return idx, nil
}

// verifyUniqueConstraints checks every required unique index without
// creating anything.
func verifyUniqueConstraints(ctx context.Context, q queryer) (types.UniqueConstraintReport, error) {
	report := types.UniqueConstraintReport{OK: true}
	for _, req := range requiredUniqueIndexes {
		indexes, err := listIndexes(ctx, q, req.Table)
		if err != nil {
			return report, err
		}
		check := types.UniqueCheck{Table: req.Table, Columns: req.Columns}
		if idx, ok := findCovering(indexes, req.Columns); ok {
			check.OK = true
			check.Matched = idx.Name
		} else {
			check.Indexes = indexes
			report.OK = false
		}
		report.Checks = append(report.Checks, check)
	}
	return report, nil
}
