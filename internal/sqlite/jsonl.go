package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ExportableTables lists the tables ExportTable accepts, in dependency order.
func ExportableTables() []string {
	names := make([]string, len(expectedSchemas))
	for i, s := range expectedSchemas {
		names[i] = s.Name
	}
	return names
}

func isExportable(table string) bool {
	for _, s := range expectedSchemas {
		if s.Name == table {
			return true
		}
	}
	return false
}

// ExportTable writes every row of table to path as one JSON object per line,
// keyed by column name, in rowid order. Returns the number of rows written.
func (b *Backend) ExportTable(ctx context.Context, table, path string) (int, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	if !isExportable(table) {
		return 0, fmt.Errorf("%w: %s", types.ErrTableNotFound, table)
	}
	ident, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}

	rows, err := b.q.QueryContext(ctx, "SELECT * FROM "+ident+" ORDER BY rowid")
	if err != nil {
		return 0, fmt.Errorf("exporting %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("exporting %s: %w", table, err)
	}
	var records []json.RawMessage
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, fmt.Errorf("scanning %s: %w", table, err)
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if raw, ok := values[i].([]byte); ok {
				rec[c] = string(raw)
				continue
			}
			rec[c] = values[i]
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("marshaling %s row: %w", table, err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("exporting %s: %w", table, err)
	}
	rows.Close()

	if err := writeJSONL(path, records); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(records), nil
}

// ExportAll writes <table>.jsonl into dir for every exportable table and
// returns the row count per table.
func (b *Backend) ExportAll(ctx context.Context, dir string) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	counts := make(map[string]int)
	for _, table := range ExportableTables() {
		n, err := b.ExportTable(ctx, table, filepath.Join(dir, table+".jsonl"))
		if err != nil {
			return counts, err
		}
		counts[table] = n
	}
	return counts, nil
}
