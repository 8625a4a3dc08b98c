package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/relvault/relvault/codec"
	"github.com/relvault/relvault/schema"
)

// RawQuery runs a prepared, parameterized query verbatim, per §4.4. If
// the SQL text references this table's name (case-insensitive
// substring), rows are decoded through the schema; otherwise they pass
// through unchanged. This heuristic is fragile by design — see the
// spec's own note on it — callers with ambiguous SQL should not rely on
// automatic decoding.
func (t *Table) RawQuery(ctx context.Context, sqlText string, params []any) ([]map[string]any, error) {
	ctx = ensureOperationID(ctx)
	var rows []map[string]any
	err := t.withLockRetry(ctx, "rawQuery", func() (int, error) {
		stmt, err := t.prepare(ctx, sqlText)
		if err != nil {
			return 0, err
		}
		res, err := stmt.QueryContext(ctx, params...)
		if err != nil {
			return 0, err
		}
		defer res.Close()

		cols, err := res.Columns()
		if err != nil {
			return 0, err
		}

		decode := strings.Contains(strings.ToLower(sqlText), strings.ToLower(t.schema.Name))

		rows = nil
		for res.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := res.Scan(ptrs...); err != nil {
				return 0, err
			}
			row := make(map[string]any, len(cols))
			for i, c := range cols {
				row[c] = vals[i]
			}
			if decode {
				row = codec.DecodeRow(t.schema, row)
			}
			rows = append(rows, row)
		}
		if err := res.Err(); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, err
}

// CreateIndex delegates to the DDL emitter.
func (t *Table) CreateIndex(ctx context.Context, name string, columns []string, unique bool) error {
	sql := schema.CreateIndex(schema.IndexSpec{
		Name: name, Table: t.schema.Name, Columns: columns, Unique: unique, IfNotExists: true,
	})
	_, err := t.conn.ExecContext(ctx, sql)
	return err
}

// DropIndex delegates to the DDL emitter.
func (t *Table) DropIndex(ctx context.Context, name string, ifExists bool) error {
	_, err := t.conn.ExecContext(ctx, schema.DropIndex(name, ifExists))
	return err
}

// ColumnStat describes one column in GetTableStats' output.
type ColumnStat struct {
	Name     string
	Type     string
	Nullable bool
	Primary  bool
}

// TableStats is the §4.4 table statistics envelope.
type TableStats struct {
	Name          string
	RecordCount   int64
	Columns       []ColumnStat
	Indexes       []string
	EstimatedSize string
}

// GetTableStats reports row count, column/index metadata, and an
// estimated on-disk size, per §4.4.
func (t *Table) GetTableStats(ctx context.Context) (TableStats, error) {
	var count int64
	if err := t.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(t.schema.Name))).Scan(&count); err != nil {
		return TableStats{}, err
	}

	cols := make([]ColumnStat, len(t.schema.Columns))
	for i, c := range t.schema.Columns {
		cols[i] = ColumnStat{Name: c.Name, Type: string(c.Kind), Nullable: c.Nullable, Primary: c.Primary}
	}

	idxRows, err := t.conn.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='index' AND tbl_name = ?", t.schema.Name)
	if err != nil {
		return TableStats{}, err
	}
	defer idxRows.Close()
	var indexes []string
	for idxRows.Next() {
		var name string
		if err := idxRows.Scan(&name); err != nil {
			return TableStats{}, err
		}
		indexes = append(indexes, name)
	}

	avgRowBytes := int64(128) // implementation-defined approximation absent per-row byte accounting
	estimated := humanize.Bytes(uint64(count * avgRowBytes))

	return TableStats{
		Name:          t.schema.Name,
		RecordCount:   count,
		Columns:       cols,
		Indexes:       indexes,
		EstimatedSize: estimated,
	}, nil
}
