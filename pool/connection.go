package pool

import (
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// PooledConnection is one pool-managed handle. Each wraps a dedicated
// *sql.DB capped at a single open connection (via SetMaxOpenConns(1)) so
// the pool — not database/sql's own internal pooling — owns fairness,
// eviction, and health decisions for it.
type PooledConnection struct {
	ID        string
	DB        *sql.DB
	CreatedAt time.Time
	LastUsed  time.Time
	InUse     bool

	queryCount int64
	errorCount int64
}

func newPooledConnection(db *sql.DB) *PooledConnection {
	now := time.Now()
	return &PooledConnection{
		ID:        uuid.NewString(),
		DB:        db,
		CreatedAt: now,
		LastUsed:  now,
	}
}

// QueryCount returns the number of queries this connection has served.
func (c *PooledConnection) QueryCount() int64 { return atomic.LoadInt64(&c.queryCount) }

// ErrorCount returns the number of errors this connection has produced.
func (c *PooledConnection) ErrorCount() int64 { return atomic.LoadInt64(&c.errorCount) }

// RecordQuery marks that a query ran on this connection, optionally
// failing.
func (c *PooledConnection) RecordQuery(err error) {
	atomic.AddInt64(&c.queryCount, 1)
	if err != nil {
		atomic.AddInt64(&c.errorCount, 1)
	}
}

// Age returns how long this connection has existed.
func (c *PooledConnection) Age() time.Duration { return time.Since(c.CreatedAt) }
