package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/core/sqlite"
	"github.com/relvault/relvault/internal/logging"
	"github.com/relvault/relvault/pool"
	"github.com/relvault/relvault/schema"
	"github.com/relvault/relvault/table"

	"github.com/google/uuid"
)

// ensureOperationID returns ctx unchanged if it already carries an
// operation ID, otherwise tags it with a fresh one so a manager call's
// pool acquire, statement prepare, and query execution can be correlated
// in log output.
func ensureOperationID(ctx context.Context) context.Context {
	if logging.OperationID(ctx) != "" {
		return ctx
	}
	return logging.WithOperationID(ctx, uuid.NewString())
}

// Manager owns a database's lifecycle: the primary connection (or pool),
// the table façades derived from its schema, and the maintenance
// operations in §4.8.
type Manager struct {
	cfg    Config
	tables []schema.Table

	mu        sync.RWMutex
	sqldb     *sql.DB
	pool      *pool.Pool
	facades   map[string]*table.Table
	connected bool
}

// New creates a Manager over the given tables. Connect must be called
// before any operation runs.
func New(cfg Config, tables []schema.Table) (*Manager, error) {
	for _, t := range tables {
		if err := schema.Validate(t); err != nil {
			return nil, err
		}
	}
	return &Manager{cfg: cfg, tables: tables, facades: make(map[string]*table.Table)}, nil
}

// Connect opens (or creates) the database file, applies the connection
// pragmas, creates any missing tables from the manager's schema, and —
// if configured — opens and registers a connection pool.
func (m *Manager) Connect(ctx context.Context) error {
	ctx = ensureOperationID(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return nil
	}

	sqldb, err := sqlite.Open(m.cfg.DatabasePath)
	if err != nil {
		return dberrors.NewIO("connect", m.cfg.DatabasePath, err)
	}
	if err := applyConnectPragmas(ctx, sqldb, m.cfg.ConnectionOptions.BusyTimeoutMs); err != nil {
		sqldb.Close()
		return err
	}

	for _, t := range m.tables {
		if _, err := sqldb.ExecContext(ctx, schema.CreateTable(t)); err != nil {
			sqldb.Close()
			return fmt.Errorf("create table %q: %w", t.Name, err)
		}
	}

	var p *pool.Pool
	if m.cfg.UsePool {
		p, err = pool.Open(m.cfg.DatabasePath, m.cfg.PoolConfig)
		if err != nil {
			sqldb.Close()
			return err
		}
		pool.Register(m.cfg.DatabasePath, p)
	}

	m.sqldb = sqldb
	m.pool = p
	m.facades = make(map[string]*table.Table, len(m.tables))
	for _, t := range m.tables {
		m.facades[t.Name] = table.New(t, sqldb, p)
	}
	m.connected = true

	logging.LifecycleEvent("connected", m.cfg.DatabasePath, "pool", m.cfg.UsePool, "operation_id", logging.OperationID(ctx))
	return nil
}

// Disconnect closes the primary connection and, if present, the pool.
// Idempotent.
func (m *Manager) Disconnect(ctx context.Context) error {
	ctx = ensureOperationID(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}

	var firstErr error
	if m.pool != nil {
		if err := m.pool.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		pool.Unregister(m.cfg.DatabasePath)
		m.pool = nil
	}
	if m.sqldb != nil {
		if err := m.sqldb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.sqldb = nil
	}
	m.facades = nil
	m.connected = false

	logging.LifecycleEvent("disconnected", m.cfg.DatabasePath, "operation_id", logging.OperationID(ctx))
	return firstErr
}

// Table returns the façade for the named table, if the manager is
// connected and the table is part of its schema.
func (m *Manager) Table(name string) (*table.Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.facades[name]
	return t, ok
}

// DB returns the manager's primary connection, for callers that need
// direct access (e.g. raw introspection). Nil if not connected.
func (m *Manager) DB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqldb
}

// Pool returns the manager's connection pool, or nil if pooling is
// disabled.
func (m *Manager) Pool() *pool.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool
}

func (m *Manager) requireConnected(operation string) error {
	if !m.connected {
		return &dberrors.NotConnectedError{Operation: operation}
	}
	return nil
}
