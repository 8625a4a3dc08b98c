package db

import (
	"compress/gzip"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/core/sqlite"
	"github.com/relvault/relvault/internal/logging"
	"github.com/relvault/relvault/schema"
)

// BackupFormat selects between a full binary copy and a schema-only
// JSON export, per §4.8.
type BackupFormat string

const (
	BackupBinary BackupFormat = "binary"
	BackupJSON   BackupFormat = "json"
)

// BackupOptions configures Backup, per §6's "Backup" configuration keys.
type BackupOptions struct {
	Compress    bool
	IncludeData bool
	Format      BackupFormat
}

// DefaultBackupOptions returns the §4.8 defaults: uncompressed, full
// binary copy including data.
func DefaultBackupOptions() BackupOptions {
	return BackupOptions{Compress: false, IncludeData: true, Format: BackupBinary}
}

// Backup writes a copy of the database to path, per §4.8. A full binary
// backup uses `VACUUM INTO`; a schema-only backup writes the exported
// schema as indented JSON. Either may be gzip-compressed (`.gz` suffix
// enforced). Every backup gets a BLAKE3 checksum sidecar at
// "<path>.b3", verified by Restore.
func (m *Manager) Backup(ctx context.Context, path string, opts BackupOptions) error {
	ctx = ensureOperationID(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("backup"); err != nil {
		return err
	}

	if opts.Format == "" {
		opts.Format = BackupBinary
	}
	if opts.Compress && !strings.HasSuffix(path, ".gz") {
		return &dberrors.InvalidArgumentError{Operation: "backup", Message: "compressed backups must use a .gz path"}
	}

	var err error
	switch opts.Format {
	case BackupJSON:
		err = m.backupSchemaJSON(ctx, path, opts)
	default:
		err = m.backupBinary(ctx, path, opts)
	}
	if err != nil {
		return err
	}

	if err := writeChecksumSidecar(path); err != nil {
		return err
	}

	logging.LifecycleEvent("backup", m.cfg.DatabasePath, "target", path, "format", string(opts.Format), "compressed", opts.Compress, "operation_id", logging.OperationID(ctx))
	return nil
}

func (m *Manager) backupBinary(ctx context.Context, path string, opts BackupOptions) error {
	tmp, err := os.CreateTemp("", "relvault-backup-*.db")
	if err != nil {
		return dberrors.NewIO("backup", path, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath) // VACUUM INTO requires the target not exist
	defer os.Remove(tmpPath)

	if _, err := m.sqldb.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(tmpPath, "'", "''"))); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}

	if opts.Compress {
		return compressFile(tmpPath, path)
	}
	return copyFile(tmpPath, path)
}

func (m *Manager) backupSchemaJSON(ctx context.Context, path string, opts BackupOptions) error {
	exp, err := schema.ExportSchema(ctx, m.sqldb, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return err
	}
	if opts.Compress {
		return writeCompressed(path, out)
	}
	return os.WriteFile(path, out, 0o644)
}

// RestoreOptions configures Restore.
type RestoreOptions struct {
	DropExisting bool
}

// Restore loads path into the manager's database, per §4.8. If a
// checksum sidecar exists, it is verified first; a mismatch raises
// BackupCorrupt before anything is touched.
func (m *Manager) Restore(ctx context.Context, path string, opts RestoreOptions) error {
	ctx = ensureOperationID(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireConnected("restore"); err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		return &dberrors.BackupError{Path: path, Reason: "not-found", Err: err}
	}
	if err := verifyChecksumSidecar(path); err != nil {
		return err
	}

	if opts.DropExisting {
		names, err := schema.ListUserTables(ctx, m.sqldb)
		if err != nil {
			return err
		}
		for _, n := range names {
			if _, err := m.sqldb.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", n)); err != nil {
				return err
			}
		}
	}

	sourcePath := path
	if strings.HasSuffix(path, ".gz") {
		tmp, err := decompressToTemp(path)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		sourcePath = tmp
	}

	if looksLikeJSON(sourcePath) {
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			return dberrors.NewIO("restore", sourcePath, err)
		}
		var exp schema.Export
		if err := json.Unmarshal(data, &exp); err != nil {
			return dberrors.NewParse("JSON", sourcePath, err.Error())
		}
		if err := schema.ImportSchema(ctx, m.sqldb, exp); err != nil {
			return err
		}
	} else {
		if err := m.restoreBinaryCopy(ctx, sourcePath); err != nil {
			return err
		}
	}

	logging.LifecycleEvent("restore", m.cfg.DatabasePath, "source", path, "operation_id", logging.OperationID(ctx))
	return nil
}

func (m *Manager) restoreBinaryCopy(ctx context.Context, sourcePath string) error {
	src, err := sqlite.OpenReadOnly(sourcePath)
	if err != nil {
		return dberrors.NewIO("restore", sourcePath, err)
	}
	defer src.Close()

	names, err := schema.ListUserTables(ctx, src)
	if err != nil {
		return err
	}

	for _, name := range names {
		te, err := schema.IntrospectTable(ctx, src, name)
		if err != nil {
			return err
		}
		if _, err := m.sqldb.ExecContext(ctx, schema.CreateTableFromIntrospection(te)); err != nil {
			return err
		}

		rows, err := src.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %q", name))
		if err != nil {
			return err
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return err
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		quotedCols := make([]string, len(cols))
		for i, c := range cols {
			quotedCols[i] = fmt.Sprintf("%q", c)
		}
		insertSQL := fmt.Sprintf("INSERT OR REPLACE INTO %q (%s) VALUES (%s)", name, strings.Join(quotedCols, ", "), placeholders)

		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return err
			}
			if _, err := m.sqldb.ExecContext(ctx, insertSQL, vals...); err != nil {
				rows.Close()
				return err
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
	}
	return nil
}

func writeChecksumSidecar(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return dberrors.NewIO("backup", path, err)
	}
	sum := blake3.Sum256(data)
	return os.WriteFile(path+".b3", []byte(hex.EncodeToString(sum[:])), 0o644)
}

func verifyChecksumSidecar(path string) error {
	sidecar := path + ".b3"
	want, err := os.ReadFile(sidecar)
	if err != nil {
		return nil // no sidecar; nothing to verify
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &dberrors.BackupError{Path: path, Reason: "not-found", Err: err}
	}
	sum := blake3.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if strings.TrimSpace(string(want)) != got {
		return &dberrors.BackupError{Path: path, Reason: "corrupt", Err: fmt.Errorf("checksum mismatch")}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return dberrors.NewIO("backup", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return dberrors.NewIO("backup", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return dberrors.NewIO("backup", dst, err)
	}
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return dberrors.NewIO("backup", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return dberrors.NewIO("backup", dst, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return dberrors.NewIO("backup", dst, err)
	}
	return gz.Close()
}

func writeCompressed(dst string, data []byte) error {
	out, err := os.Create(dst)
	if err != nil {
		return dberrors.NewIO("backup", dst, err)
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return dberrors.NewIO("backup", dst, err)
	}
	return gz.Close()
}

func decompressToTemp(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", dberrors.NewIO("restore", path, err)
	}
	defer in.Close()
	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", &dberrors.BackupError{Path: path, Reason: "corrupt", Err: err}
	}
	defer gz.Close()

	inner := strings.TrimSuffix(path, ".gz")
	tmp, err := os.CreateTemp("", "relvault-restore-*"+extOf(inner))
	if err != nil {
		return "", dberrors.NewIO("restore", path, err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, gz); err != nil {
		os.Remove(tmp.Name())
		return "", dberrors.NewIO("restore", path, err)
	}
	return tmp.Name(), nil
}

func extOf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}

// looksLikeJSON sniffs the first non-whitespace byte of the file at
// path. The schema-only backup format is always a JSON object; the
// binary format is never valid UTF-8 starting with '{'.
func looksLikeJSON(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 256)
	n, _ := f.Read(buf)
	trimmed := strings.TrimSpace(string(buf[:n]))
	return strings.HasPrefix(trimmed, "{")
}
