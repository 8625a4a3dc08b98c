package db

import (
	"context"
	"fmt"
	"os"

	"github.com/relvault/relvault/internal/logging"
	"github.com/relvault/relvault/schema"
)

// OptimizeOptions configures Optimize.
type OptimizeOptions struct {
	Vacuum  bool
	Analyze bool
	Reindex bool
}

// DefaultOptimizeOptions returns the §4.8 defaults: vacuum and analyze,
// no reindex.
func DefaultOptimizeOptions() OptimizeOptions {
	return OptimizeOptions{Vacuum: true, Analyze: true, Reindex: false}
}

// Optimize runs the requested maintenance passes in order — vacuum,
// analyze, reindex — per §4.8.
func (m *Manager) Optimize(ctx context.Context, opts OptimizeOptions) error {
	ctx = ensureOperationID(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("optimize"); err != nil {
		return err
	}

	if opts.Vacuum {
		if _, err := m.sqldb.ExecContext(ctx, "VACUUM"); err != nil {
			return err
		}
	}
	if opts.Analyze {
		if _, err := m.sqldb.ExecContext(ctx, "ANALYZE"); err != nil {
			return err
		}
	}
	if opts.Reindex {
		if _, err := m.sqldb.ExecContext(ctx, "REINDEX"); err != nil {
			return err
		}
	}

	logging.LifecycleEvent("optimize", m.cfg.DatabasePath, "vacuum", opts.Vacuum, "analyze", opts.Analyze, "reindex", opts.Reindex, "operation_id", logging.OperationID(ctx))
	return nil
}

// TableStat is one table's contribution to DatabaseStats.
type TableStat struct {
	Name    string
	Records int64
	Size    int64
}

// DatabaseStats is GetDatabaseStats' result, per §4.8.
type DatabaseStats struct {
	Tables       int
	TotalRecords int64
	DatabaseSize int64
	TableStats   []TableStat
	Indexes      int
}

// GetDatabaseStats reports per-table row counts and an estimated
// on-disk footprint for each, per §4.8. Per-table size is a proportional
// approximation: (table's row count / total row count) * file size —
// SQLite doesn't expose true per-table byte accounting.
func (m *Manager) GetDatabaseStats(ctx context.Context) (DatabaseStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("getDatabaseStats"); err != nil {
		return DatabaseStats{}, err
	}

	names, err := schema.ListUserTables(ctx, m.sqldb)
	if err != nil {
		return DatabaseStats{}, err
	}

	counts := make(map[string]int64, len(names))
	var totalRecords int64
	for _, name := range names {
		var count int64
		if err := m.sqldb.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&count); err != nil {
			return DatabaseStats{}, err
		}
		counts[name] = count
		totalRecords += count
	}

	var fileSize int64
	if info, err := os.Stat(m.cfg.DatabasePath); err == nil {
		fileSize = info.Size()
	}

	stats := make([]TableStat, 0, len(names))
	for _, name := range names {
		var size int64
		if totalRecords > 0 {
			size = int64(float64(counts[name]) / float64(totalRecords) * float64(fileSize))
		}
		stats = append(stats, TableStat{Name: name, Records: counts[name], Size: size})
	}

	var indexCount int
	if err := m.sqldb.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name NOT LIKE 'sqlite_%'").Scan(&indexCount); err != nil {
		return DatabaseStats{}, err
	}

	return DatabaseStats{
		Tables:       len(names),
		TotalRecords: totalRecords,
		DatabaseSize: fileSize,
		TableStats:   stats,
		Indexes:      indexCount,
	}, nil
}

// IntegrityReport is CheckIntegrity's result.
type IntegrityReport struct {
	IsValid bool
	Errors  []string
}

// CheckIntegrity runs `PRAGMA integrity_check`, per §4.8. IsValid iff the
// first row is exactly "ok".
func (m *Manager) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("checkIntegrity"); err != nil {
		return IntegrityReport{}, err
	}

	rows, err := m.sqldb.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return IntegrityReport{}, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return IntegrityReport{}, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return IntegrityReport{}, err
	}

	isValid := len(messages) == 1 && messages[0] == "ok"
	var errs []string
	if !isValid {
		errs = messages
	}
	return IntegrityReport{IsValid: isValid, Errors: errs}, nil
}
