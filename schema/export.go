package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ColumnInfo mirrors one row of SQLite's `PRAGMA table_info`, the engine
// introspection the spec's export/import round-trip is built on.
type ColumnInfo struct {
	CID       int
	Name      string
	Type      string
	NotNull   bool
	DfltValue *string
	PK        int
}

// IndexInfo pairs an index name with the SQL that created it, as read
// from `sqlite_master`.
type IndexInfo struct {
	Name string
	SQL  string
}

// TableExport is one table's exported shape: its introspected columns
// plus its indexes.
type TableExport struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
	Indexes []IndexInfo  `json:"indexes"`
}

// Export is the top-level schema export document, per §4.1 and §6.
type Export struct {
	Version string        `json:"version"`
	Created string        `json:"created"` // ISO-8601
	Tables  []TableExport `json:"tables"`
}

// IntrospectTable reads a table's columns and indexes directly from the
// engine, independent of the in-process Table descriptor — this is what
// makes export/import round-trip through a source that may not share the
// process's schema registry.
func IntrospectTable(ctx context.Context, db *sql.DB, table string) (TableExport, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return TableExport{}, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var ci ColumnInfo
		var dflt sql.NullString
		var notNull, pk int
		if err := rows.Scan(&ci.CID, &ci.Name, &ci.Type, &notNull, &dflt, &pk); err != nil {
			return TableExport{}, err
		}
		ci.NotNull = notNull != 0
		ci.PK = pk
		if dflt.Valid {
			v := dflt.String
			ci.DfltValue = &v
		}
		cols = append(cols, ci)
	}
	if err := rows.Err(); err != nil {
		return TableExport{}, err
	}

	idxRows, err := db.QueryContext(ctx,
		"SELECT name, sql FROM sqlite_master WHERE type='index' AND tbl_name = ? AND sql IS NOT NULL",
		table)
	if err != nil {
		return TableExport{}, err
	}
	defer idxRows.Close()

	var idxs []IndexInfo
	for idxRows.Next() {
		var ii IndexInfo
		if err := idxRows.Scan(&ii.Name, &ii.SQL); err != nil {
			return TableExport{}, err
		}
		idxs = append(idxs, ii)
	}
	if err := idxRows.Err(); err != nil {
		return TableExport{}, err
	}

	return TableExport{Name: table, Columns: cols, Indexes: idxs}, nil
}

// ListUserTables returns the names of every non-system table in db.
func ListUserTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// CreateTableFromIntrospection reconstructs `CREATE TABLE IF NOT EXISTS`
// DDL purely from engine-introspected column info, used by ImportSchema
// and by the database-copy path of Restore, where no in-process Table
// descriptor for the source is available.
func CreateTableFromIntrospection(t TableExport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(t.Name))
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		var cb strings.Builder
		cb.WriteString("  " + quoteIdent(c.Name) + " " + c.Type)
		if c.PK > 0 {
			cb.WriteString(" PRIMARY KEY")
		}
		if c.NotNull && c.PK == 0 {
			cb.WriteString(" NOT NULL")
		}
		if c.DfltValue != nil {
			cb.WriteString(" DEFAULT " + *c.DfltValue)
		}
		defs[i] = cb.String()
	}
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// ExportSchema introspects every user table in db and returns the
// exported document. created should be an ISO-8601 timestamp supplied by
// the caller (schema itself does not read the clock).
func ExportSchema(ctx context.Context, db *sql.DB, created string) (Export, error) {
	names, err := ListUserTables(ctx, db)
	if err != nil {
		return Export{}, err
	}
	exp := Export{Version: "1.0", Created: created}
	for _, name := range names {
		te, err := IntrospectTable(ctx, db, name)
		if err != nil {
			return Export{}, err
		}
		exp.Tables = append(exp.Tables, te)
	}
	return exp, nil
}

// ImportSchema recreates each exported table with CREATE TABLE IF NOT
// EXISTS derived from its introspected columns, then replays its stored
// index SQL.
func ImportSchema(ctx context.Context, db *sql.DB, exp Export) error {
	for _, t := range exp.Tables {
		if _, err := db.ExecContext(ctx, CreateTableFromIntrospection(t)); err != nil {
			return fmt.Errorf("import table %q: %w", t.Name, err)
		}
		for _, idx := range t.Indexes {
			if _, err := db.ExecContext(ctx, idx.SQL); err != nil {
				return fmt.Errorf("import index %q on %q: %w", idx.Name, t.Name, err)
			}
		}
	}
	return nil
}
