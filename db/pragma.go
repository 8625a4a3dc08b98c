package db

import (
	"context"
	"database/sql"
	"fmt"
)

// connectPragmas are applied to the primary connection on Connect, per
// §4.7. They mirror the pool's basePragmas so a table façade behaves
// identically whether it runs against the primary connection or a
// pooled one.
var connectPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA synchronous = NORMAL",
}

func applyConnectPragmas(ctx context.Context, sqldb *sql.DB, busyTimeoutMs int) error {
	for _, p := range connectPragmas {
		if _, err := sqldb.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	if busyTimeoutMs > 0 {
		if _, err := sqldb.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMs)); err != nil {
			return err
		}
	}
	return nil
}
