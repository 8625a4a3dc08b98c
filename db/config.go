// Package db implements the database lifecycle manager: connect and
// disconnect, backup and restore, cross-database merges, transactions,
// maintenance, and health/statistics reporting, per §4.8.
package db

import (
	"github.com/relvault/relvault/pool"
)

// Config configures a Manager, per §6's "Manager" configuration keys.
type Config struct {
	DatabasePath string
	// UsePool selects whether table operations route through a Pool
	// (PoolConfig) or run directly against the primary connection.
	UsePool           bool
	PoolConfig        pool.Config
	ConnectionOptions ConnectionOptions
}

// ConnectionOptions holds the pragma-level knobs applied to the primary
// connection on Connect, per §4.7.
type ConnectionOptions struct {
	// BusyTimeoutMs bounds how long the engine waits on a locked
	// database before returning SQLITE_BUSY. Zero disables the pragma.
	BusyTimeoutMs int
}

// DefaultConfig returns a Config with the pool disabled and no
// connection-level overrides, matching §6's optional keys.
func DefaultConfig(databasePath string) Config {
	return Config{DatabasePath: databasePath, UsePool: false}
}
