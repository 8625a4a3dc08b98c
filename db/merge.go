package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/internal/logging"
)

// MergeConflictResolution controls what MergeDatabase does when a source
// table already exists in the target.
type MergeConflictResolution string

const (
	MergeReplace MergeConflictResolution = "replace"
	MergeIgnore  MergeConflictResolution = "ignore"
	MergeFail    MergeConflictResolution = "fail"
)

// MergeOptions configures MergeDatabase, per §6's "Merge" configuration
// keys. OnConflict, if set, is consulted before falling back to
// ConflictResolution's default handling for an existing table.
type MergeOptions struct {
	ConflictResolution MergeConflictResolution
	TablesFilter       []string
	OnConflict         func(name string, existingSQL, incomingSQL string) MergeDecision
}

// MergeDecision is OnConflict's verdict for one conflicting table.
type MergeDecision string

const (
	KeepExisting MergeDecision = "keep_existing"
	UseNew       MergeDecision = "use_new"
	MergeTables  MergeDecision = "merge"
)

// attachSource opens a single dedicated connection, attaches sourcePath
// to it as "merge_src", and returns the connection plus a detach-and-
// close cleanup. ATTACH/DETACH are connection-local state in SQLite, so
// every statement in a merge must run on this one *sql.Conn rather than
// through *sql.DB's own pooling.
func (m *Manager) attachSource(ctx context.Context, sourcePath string) (*sql.Conn, func(), error) {
	conn, err := m.sqldb.Conn(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("ATTACH DATABASE '%s' AS merge_src", strings.ReplaceAll(sourcePath, "'", "''"))); err != nil {
		conn.Close()
		return nil, nil, &dberrors.BackupError{Path: sourcePath, Reason: "not-found", Err: err}
	}
	cleanup := func() {
		conn.ExecContext(ctx, "DETACH DATABASE merge_src")
		conn.Close()
	}
	return conn, cleanup, nil
}

// MergeDatabase attaches sourcePath and copies its tables into the
// manager's database, per §4.8. The attachment is always detached, even
// on error.
func (m *Manager) MergeDatabase(ctx context.Context, sourcePath string, opts MergeOptions) error {
	ctx = ensureOperationID(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("mergeDatabase"); err != nil {
		return err
	}
	if opts.ConflictResolution == "" {
		opts.ConflictResolution = MergeReplace
	}

	conn, cleanup, err := m.attachSource(ctx, sourcePath)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := conn.QueryContext(ctx, "SELECT name, sql FROM merge_src.sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return err
	}
	type sourceTable struct{ name, sql string }
	var sources []sourceTable
	for rows.Next() {
		var st sourceTable
		if err := rows.Scan(&st.name, &st.sql); err != nil {
			rows.Close()
			return err
		}
		sources = append(sources, st)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	filter := toSet(opts.TablesFilter)

	for _, st := range sources {
		if filter != nil && !filter[st.name] {
			continue
		}

		exists, err := tableExists(ctx, conn, st.name)
		if err != nil {
			return err
		}

		var mergeErr error
		if !exists {
			_, mergeErr = conn.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %q AS SELECT * FROM merge_src.%q", st.name, st.name))
		} else {
			resolution := opts.ConflictResolution
			if opts.OnConflict != nil {
				existingSQL, err := tableSQL(ctx, conn, st.name)
				if err != nil {
					return err
				}
				switch opts.OnConflict(st.name, existingSQL, st.sql) {
				case KeepExisting:
					continue
				case UseNew:
					resolution = MergeReplace
				case MergeTables:
					resolution = MergeIgnore
				}
			}
			mergeErr = mergeExistingTable(ctx, conn, st.name, resolution)
		}

		if mergeErr != nil {
			if opts.ConflictResolution == MergeFail {
				return mergeErr
			}
			logging.LifecycleEvent("merge_conflict", m.cfg.DatabasePath, "table", st.name, "error", mergeErr.Error(), "operation_id", logging.OperationID(ctx))
		}
	}

	logging.LifecycleEvent("merge", m.cfg.DatabasePath, "source", sourcePath, "operation_id", logging.OperationID(ctx))
	return nil
}

func mergeExistingTable(ctx context.Context, conn *sql.Conn, name string, resolution MergeConflictResolution) error {
	verb := "INSERT OR IGNORE"
	switch resolution {
	case MergeReplace:
		verb = "INSERT OR REPLACE"
	case MergeFail:
		verb = "INSERT OR ABORT"
	}
	_, err := conn.ExecContext(ctx, fmt.Sprintf("%s INTO %q SELECT * FROM merge_src.%q", verb, name, name))
	if err != nil {
		return &dberrors.MergeConflictError{Table: name, Err: err}
	}
	return nil
}

func tableExists(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var count int
	err := conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&count)
	return count > 0, err
}

func tableSQL(ctx context.Context, conn *sql.Conn, name string) (string, error) {
	var sql string
	err := conn.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&sql)
	return sql, err
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// TableCompatibility reports a source table's column-level agreement
// with the corresponding target table.
type TableCompatibility struct {
	Name              string
	CompatibleColumns int
	TotalColumns      int
}

// MergeCompatibilityReport is AnalyzeMergeCompatibility's result.
type MergeCompatibilityReport struct {
	CompatibleTables   []TableCompatibility
	IncompatibleTables []string
}

// AnalyzeMergeCompatibility compares sourcePath's tables against the
// manager's own, per §4.8: a table is compatible iff its stored CREATE
// TABLE SQL matches exactly.
func (m *Manager) AnalyzeMergeCompatibility(ctx context.Context, sourcePath string) (MergeCompatibilityReport, error) {
	ctx = ensureOperationID(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("analyzeMergeCompatibility"); err != nil {
		return MergeCompatibilityReport{}, err
	}

	conn, cleanup, err := m.attachSource(ctx, sourcePath)
	if err != nil {
		return MergeCompatibilityReport{}, err
	}
	defer cleanup()

	rows, err := conn.QueryContext(ctx, "SELECT name, sql FROM merge_src.sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return MergeCompatibilityReport{}, err
	}

	var pending []struct{ name, sourceSQL string }
	for rows.Next() {
		var name, sourceSQL string
		if err := rows.Scan(&name, &sourceSQL); err != nil {
			rows.Close()
			return MergeCompatibilityReport{}, err
		}
		pending = append(pending, struct{ name, sourceSQL string }{name, sourceSQL})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return MergeCompatibilityReport{}, err
	}
	rows.Close()

	var report MergeCompatibilityReport
	for _, p := range pending {
		targetSQL, err := tableSQL(ctx, conn, p.name)
		if err != nil {
			report.IncompatibleTables = append(report.IncompatibleTables, p.name)
			continue
		}

		sourceCols, err := columnNames(ctx, conn, "merge_src", p.name)
		if err != nil {
			return MergeCompatibilityReport{}, err
		}
		targetCols, err := columnNames(ctx, conn, "main", p.name)
		if err != nil {
			return MergeCompatibilityReport{}, err
		}
		compatible := countCommon(sourceCols, targetCols)

		if targetSQL == p.sourceSQL {
			report.CompatibleTables = append(report.CompatibleTables,
				TableCompatibility{Name: p.name, CompatibleColumns: compatible, TotalColumns: len(sourceCols)})
		} else {
			report.IncompatibleTables = append(report.IncompatibleTables, p.name)
		}
	}
	return report, nil
}

func columnNames(ctx context.Context, conn *sql.Conn, schemaName, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.table_info(%q)", schemaName, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func countCommon(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, n := range b {
		set[n] = true
	}
	count := 0
	for _, n := range a {
		if set[n] {
			count++
		}
	}
	return count
}
