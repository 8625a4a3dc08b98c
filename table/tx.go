package table

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is the subset of *sql.Tx the façade's mutation helpers need.
type Tx interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// TxLike is an alias kept for readability at mutation call sites; it is
// the same contract as Tx.
type TxLike = Tx

// passthroughTx wraps an already-open *sql.Tx so nested façade calls
// (e.g. within executePooledTransaction) reuse the caller's transaction
// instead of trying to open a second one. Commit/Rollback are no-ops:
// the outer caller owns the transaction's lifetime.
type passthroughTx struct {
	*sql.Tx
}

func (p *passthroughTx) Commit() error   { return nil }
func (p *passthroughTx) Rollback() error { return nil }

func (t *Table) beginTx(ctx context.Context) (Tx, error) {
	switch conn := t.conn.(type) {
	case *sql.DB:
		return conn.BeginTx(ctx, nil)
	case *sql.Tx:
		return &passthroughTx{conn}, nil
	default:
		return nil, fmt.Errorf("table: connection type %T does not support transactions", t.conn)
	}
}
