// Package table implements the per-table CRUD façade over a schema
// table descriptor: type-aware select/insert/update/delete, pagination,
// aggregation, JSON export/import, and a raw-query escape hatch.
package table

import (
	"context"
	"database/sql"
	"time"

	corecache "github.com/relvault/relvault/core/cache"
	"github.com/relvault/relvault/internal/logging"
	"github.com/relvault/relvault/pool"
	"github.com/relvault/relvault/schema"
)

// Querier is satisfied by *sql.DB and *sql.Tx, letting every façade
// method run either directly or inside a transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Table is the per-table façade. It borrows its connection and schema
// and holds no mutable state beyond a debug flag and its prepared-statement
// cache, per §3.
type Table struct {
	schema schema.Table
	conn   Querier
	pool   *pool.Pool // optional; enables the pool's statement cache
	stmts  *corecache.StatementCache
	Debug  bool
}

// New creates a façade for t over conn. If p is non-nil, the pool's
// shared statement cache is used instead of a private one.
func New(t schema.Table, conn Querier, p *pool.Pool) *Table {
	tbl := &Table{schema: t, conn: conn, pool: p}
	if p != nil {
		tbl.stmts = p.StatementCache()
	} else {
		tbl.stmts = corecache.NewStatementCache(64)
	}
	return tbl
}

// Schema returns the table's descriptor.
func (t *Table) Schema() schema.Table { return t.schema }

func (t *Table) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if t.stmts != nil {
		if stmt, ok := t.stmts.Get(query); ok {
			return stmt, nil
		}
	}
	start := nowMs()
	stmt, err := t.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	if t.Debug {
		logging.DebugContext(ctx, "statement prepared", "table", t.schema.Name, "query", query, "prepare_ms", nowMs()-start)
	}
	if t.stmts != nil {
		t.stmts.Put(query, stmt)
	}
	return stmt, nil
}

// columnOrder returns the table's column names in declaration order.
func (t *Table) columnOrder() []string {
	names := make([]string, len(t.schema.Columns))
	for i, c := range t.schema.Columns {
		names[i] = c.Name
	}
	return names
}

func nowMs() int64 { return time.Now().UnixMilli() }
