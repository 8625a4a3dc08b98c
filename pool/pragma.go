package pool

import (
	"context"
	"database/sql"
)

// basePragmas are applied to every pooled connection, per §4.7. The
// manager's primary connection applies the same settings from its own
// list in db/pragma.go.
var basePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA synchronous = NORMAL",
}

// poolPragmas are the additional pragmas pooled connections carry on top
// of basePragmas, per §4.7.
var poolPragmas = []string{
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA mmap_size = 268435456",
}

func applyPragmas(ctx context.Context, db *sql.DB, pragmas []string) error {
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
