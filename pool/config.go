// Package pool implements the connection pool: lifecycle, fair
// acquisition, idle eviction, health probing, prepared-statement reuse,
// and an opt-in TTL result cache, per §4.6.
package pool

import "time"

// Config holds pool tuning parameters, with defaults matching §4.6.
type Config struct {
	MaxConnections int
	MinConnections int

	AcquireTimeout   time.Duration
	IdleTimeout      time.Duration
	ReapInterval     time.Duration
	MaxConnectionAge time.Duration

	EnableResultCache    bool
	MaxCacheEntries      int
	EnableStatementCache bool
	EnableHealthChecks   bool
	EnableLogging        bool
}

// DefaultConfig returns the configuration named in §4.6.
func DefaultConfig() Config {
	return Config{
		MaxConnections:       10,
		MinConnections:       2,
		AcquireTimeout:       10 * time.Second,
		IdleTimeout:          30 * time.Second,
		ReapInterval:         10 * time.Second,
		MaxConnectionAge:     time.Hour,
		EnableResultCache:    true,
		MaxCacheEntries:      1000,
		EnableStatementCache: true,
		EnableHealthChecks:   true,
		EnableLogging:        false,
	}
}
