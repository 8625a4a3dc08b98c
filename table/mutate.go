package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/relvault/relvault/codec"
	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/predicate"
)

// Insert inserts rows in a single transaction, reusing one prepared
// statement, per §4.4. Fails InvalidArgument on an empty slice.
func (t *Table) Insert(ctx context.Context, rows []map[string]any) error {
	if len(rows) == 0 {
		return &dberrors.InvalidArgumentError{Operation: "insert", Message: "rows must not be empty"}
	}
	ctx = ensureOperationID(ctx)

	return t.withLockRetry(ctx, "insert", func() (int, error) {
		tx, err := t.beginTx(ctx)
		if err != nil {
			return 0, err
		}
		if err := t.insertRows(ctx, tx, rows); err != nil {
			tx.Rollback()
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

func (t *Table) insertRows(ctx context.Context, tx TxLike, rows []map[string]any) error {
	cols := t.insertColumns(rows[0])
	query := t.buildInsertSQL(cols)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := codec.EncodeValues(t.schema, row, cols)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return classifyEngineError(t.schema.Name, err)
		}
	}
	return nil
}

func (t *Table) insertColumns(row map[string]any) []string {
	var cols []string
	for _, c := range t.schema.Columns {
		if _, ok := row[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func (t *Table) buildInsertSQL(cols []string) string {
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.schema.Name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

// BulkInsert inserts rows in chunked transactions of batchSize, returning
// each row's inserted rowid in input order, per §4.4.
func (t *Table) BulkInsert(ctx context.Context, rows []map[string]any, batchSize int) ([]int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if len(rows) == 0 {
		return nil, &dberrors.InvalidArgumentError{Operation: "bulkInsert", Message: "rows must not be empty"}
	}

	ctx = ensureOperationID(ctx)

	ids := make([]int64, 0, len(rows))
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		err := t.withLockRetry(ctx, "bulkInsert", func() (int, error) {
			tx, err := t.beginTx(ctx)
			if err != nil {
				return 0, err
			}
			batchIDs, err := t.insertRowsWithIDs(ctx, tx, batch)
			if err != nil {
				tx.Rollback()
				return 0, err
			}
			if err := tx.Commit(); err != nil {
				return 0, err
			}
			ids = append(ids, batchIDs...)
			return len(batchIDs), nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (t *Table) insertRowsWithIDs(ctx context.Context, tx TxLike, rows []map[string]any) ([]int64, error) {
	cols := t.insertColumns(rows[0])
	query := t.buildInsertSQL(cols)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		args := codec.EncodeValues(t.schema, row, cols)
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, classifyEngineError(t.schema.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Upsert emits `INSERT ... ON CONFLICT(conflictColumns) DO UPDATE SET
// ...`, per §4.4. When updateColumns is empty, every non-conflict column
// is updated from `excluded`.
func (t *Table) Upsert(ctx context.Context, rows []map[string]any, conflictColumns []string, updateColumns []string) error {
	if len(rows) == 0 {
		return &dberrors.InvalidArgumentError{Operation: "upsert", Message: "rows must not be empty"}
	}
	ctx = ensureOperationID(ctx)

	return t.withLockRetry(ctx, "upsert", func() (int, error) {
		tx, err := t.beginTx(ctx)
		if err != nil {
			return 0, err
		}

		cols := t.insertColumns(rows[0])
		updateCols := updateColumns
		if len(updateCols) == 0 {
			updateCols = nonConflictColumns(cols, conflictColumns)
		}

		query := t.buildUpsertSQL(cols, conflictColumns, updateCols)
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			tx.Rollback()
			return 0, err
		}

		for _, row := range rows {
			args := codec.EncodeValues(t.schema, row, cols)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				tx.Rollback()
				return 0, classifyEngineError(t.schema.Name, err)
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

func nonConflictColumns(cols, conflict []string) []string {
	conflictSet := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		conflictSet[c] = true
	}
	var out []string
	for _, c := range cols {
		if !conflictSet[c] {
			out = append(out, c)
		}
	}
	return out
}

func (t *Table) buildUpsertSQL(cols, conflictCols, updateCols []string) string {
	quotedCols := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = quoteIdent(c)
		placeholders[i] = "?"
	}

	quotedConflict := make([]string, len(conflictCols))
	for i, c := range conflictCols {
		quotedConflict[i] = quoteIdent(c)
	}

	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		quoteIdent(t.schema.Name),
		strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(quotedConflict, ", "),
		strings.Join(sets, ", "))
}

// Update applies values to rows matching where, per §4.4. Requires a
// meaningful predicate and a non-empty values map.
func (t *Table) Update(ctx context.Context, where predicate.Predicate, values map[string]any) (int64, error) {
	if err := predicate.RequireForMutation(t.schema.Name, "update", where); err != nil {
		return 0, err
	}
	if predicate.ShortCircuitsToEmpty(where) {
		return 0, nil
	}
	if len(values) == 0 {
		return 0, &dberrors.InvalidArgumentError{Operation: "update", Message: "values must not be empty"}
	}

	cols := make([]string, 0, len(values))
	for _, c := range t.schema.Columns {
		if _, ok := values[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
	}
	args := codec.EncodeValues(t.schema, values, cols)

	whereFrag, whereParams := predicate.Compile(where)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quoteIdent(t.schema.Name), strings.Join(sets, ", "), whereFrag)
	args = append(args, whereParams...)

	ctx = ensureOperationID(ctx)
	var affected int64
	err := t.withLockRetry(ctx, "update", func() (int, error) {
		stmt, err := t.prepare(ctx, query)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, classifyEngineError(t.schema.Name, err)
		}
		affected, err = res.RowsAffected()
		return int(affected), err
	})
	return affected, err
}

// Delete removes rows matching where, per §4.4. Requires a meaningful
// predicate.
func (t *Table) Delete(ctx context.Context, where predicate.Predicate) (int64, error) {
	if err := predicate.RequireForMutation(t.schema.Name, "delete", where); err != nil {
		return 0, err
	}
	if predicate.ShortCircuitsToEmpty(where) {
		return 0, nil
	}

	whereFrag, whereParams := predicate.Compile(where)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(t.schema.Name), whereFrag)

	ctx = ensureOperationID(ctx)
	var affected int64
	err := t.withLockRetry(ctx, "delete", func() (int, error) {
		stmt, err := t.prepare(ctx, query)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, whereParams...)
		if err != nil {
			return 0, classifyEngineError(t.schema.Name, err)
		}
		affected, err = res.RowsAffected()
		return int(affected), err
	})
	return affected, err
}

func classifyEngineError(table string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "constraint") || strings.Contains(msg, "foreign key") || strings.Contains(msg, "not null") {
		kind := ""
		switch {
		case strings.Contains(msg, "unique"):
			kind = "unique"
		case strings.Contains(msg, "foreign key"):
			kind = "foreign-key"
		case strings.Contains(msg, "not null"):
			kind = "not-null"
		}
		return &dberrors.ConstraintViolationError{Table: table, Kind: kind, Err: err}
	}
	if isLockedError(err) {
		return err
	}
	return &dberrors.UnexpectedError{Operation: "engine", Err: err}
}
