package db

import (
	"context"
	"fmt"

	"github.com/relvault/relvault/internal/logging"
	"github.com/relvault/relvault/table"
)

// Statement is one SQL statement plus its bound parameters, for
// ExecuteTransaction.
type Statement struct {
	SQL  string
	Args []any
}

// ExecuteTransaction runs every statement inside one engine transaction
// on the primary connection, per §4.8, rolling back on the first
// failure.
func (m *Manager) ExecuteTransaction(ctx context.Context, stmts []Statement) error {
	ctx = ensureOperationID(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("executeTransaction"); err != nil {
		return err
	}

	tx, err := m.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.SQL, s.Args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Isolation names the SQLite transaction modes usable with
// ExecutePooledTransaction. Go's database/sql isolation levels don't map
// onto these, so the manager issues the BEGIN statement itself.
type Isolation string

const (
	IsolationDeferred  Isolation = "DEFERRED"
	IsolationImmediate Isolation = "IMMEDIATE"
	IsolationExclusive Isolation = "EXCLUSIVE"
)

// PooledOp is one operation in a pooled transaction. It receives a
// Querier bound to the transaction's connection. Ops must issue direct
// SQL (Select-style reads, raw Exec) rather than table-façade mutation
// methods, which open their own nested transaction and would conflict
// with the outer BEGIN this function already issued.
type PooledOp func(ctx context.Context, q table.Querier) (any, error)

// ExecutePooledTransaction acquires a pooled connection, issues `BEGIN
// <isolation>`, runs ops in array order, and commits on success, per
// §4.8. On failure the transaction is rolled back (rollback errors are
// logged, not surfaced) and the original error is returned.
func (m *Manager) ExecutePooledTransaction(ctx context.Context, ops []PooledOp, isolation Isolation) ([]any, error) {
	ctx = ensureOperationID(ctx)
	m.mu.RLock()
	p := m.pool
	connected := m.connected
	m.mu.RUnlock()
	if !connected {
		return nil, m.requireConnected("executePooledTransaction")
	}
	if p == nil {
		return nil, fmt.Errorf("db: executePooledTransaction requires a pooled manager")
	}

	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(conn)

	if _, err := conn.DB.ExecContext(ctx, "BEGIN "+string(isolation)); err != nil {
		return nil, err
	}

	results := make([]any, len(ops))
	for i, op := range ops {
		res, err := op(ctx, conn.DB)
		if err != nil {
			if _, rbErr := conn.DB.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
				logging.LifecycleEvent("pooled_transaction_rollback_failed", m.cfg.DatabasePath, "error", rbErr.Error(), "operation_id", logging.OperationID(ctx))
			}
			return nil, err
		}
		results[i] = res
	}

	if _, err := conn.DB.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, err
	}
	return results, nil
}
