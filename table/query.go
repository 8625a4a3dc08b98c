package table

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/relvault/relvault/codec"
	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/predicate"
)

// SelectOptions configures Select and FindFirst.
type SelectOptions struct {
	Where  predicate.Predicate
	Select []string // empty => all columns
	Limit  int      // 0 = unlimited unless explicitly set negative (error)
	Skip   int
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (t *Table) selectColumnsSQL(cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// Select runs a filtered read, per §4.4.
func (t *Table) Select(ctx context.Context, opts SelectOptions) ([]map[string]any, error) {
	if opts.Limit < 0 || opts.Skip < 0 {
		return nil, &dberrors.InvalidArgumentError{Operation: "select", Message: "limit and skip must be >= 0"}
	}
	if predicate.ShortCircuitsToEmpty(opts.Where) {
		return []map[string]any{}, nil
	}

	query, args := t.buildSelect(opts)
	ctx = ensureOperationID(ctx)

	var rows []map[string]any
	err := t.withLockRetry(ctx, "select", func() (int, error) {
		var err error
		rows, err = t.query(ctx, query, args)
		return len(rows), err
	})
	return rows, err
}

func (t *Table) buildSelect(opts SelectOptions) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", t.selectColumnsSQL(opts.Select), quoteIdent(t.schema.Name))

	frag, params := predicate.Compile(opts.Where)
	if frag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(frag)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		fmt.Fprintf(&b, " OFFSET %d", opts.Skip)
	}
	return b.String(), params
}

func (t *Table) query(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	stmt, err := t.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, codec.DecodeRow(t.schema, row))
	}
	return out, rows.Err()
}

// Count returns the number of rows matching where, per §4.4.
func (t *Table) Count(ctx context.Context, where predicate.Predicate) (int64, error) {
	if predicate.ShortCircuitsToEmpty(where) {
		return 0, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT COUNT(*) FROM %s", quoteIdent(t.schema.Name))
	frag, params := predicate.Compile(where)
	if frag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(frag)
	}

	ctx = ensureOperationID(ctx)
	var count int64
	err := t.withLockRetry(ctx, "count", func() (int, error) {
		stmt, err := t.prepare(ctx, b.String())
		if err != nil {
			return 0, err
		}
		if err := stmt.QueryRowContext(ctx, params...).Scan(&count); err != nil {
			return 0, err
		}
		return 1, nil
	})
	return count, err
}

// FindFirst returns the first matching row, or nil if none, per §4.4:
// implemented as Select with limit 1, first-or-null.
func (t *Table) FindFirst(ctx context.Context, opts SelectOptions) (map[string]any, error) {
	opts.Limit = 1
	rows, err := t.Select(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Exists reports whether any row matches where, per §4.4: `SELECT 1 ...
// LIMIT 1`.
func (t *Table) Exists(ctx context.Context, where predicate.Predicate) (bool, error) {
	if predicate.ShortCircuitsToEmpty(where) {
		return false, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT 1 FROM %s", quoteIdent(t.schema.Name))
	frag, params := predicate.Compile(where)
	if frag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(frag)
	}
	b.WriteString(" LIMIT 1")

	ctx = ensureOperationID(ctx)
	found := false
	err := t.withLockRetry(ctx, "exists", func() (int, error) {
		stmt, err := t.prepare(ctx, b.String())
		if err != nil {
			return 0, err
		}
		rows, err := stmt.QueryContext(ctx, params...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		found = rows.Next()
		if err := rows.Err(); err != nil {
			return 0, err
		}
		if found {
			return 1, nil
		}
		return 0, nil
	})
	return found, err
}

// Distinct returns the distinct values of column matching where, per
// §4.4.
func (t *Table) Distinct(ctx context.Context, column string, where predicate.Predicate, limit int) ([]any, error) {
	if predicate.ShortCircuitsToEmpty(where) {
		return []any{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT %s FROM %s", quoteIdent(column), quoteIdent(t.schema.Name))
	frag, params := predicate.Compile(where)
	if frag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(frag)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	ctx = ensureOperationID(ctx)
	var out []any
	err := t.withLockRetry(ctx, "distinct", func() (int, error) {
		stmt, err := t.prepare(ctx, b.String())
		if err != nil {
			return 0, err
		}
		rows, err := stmt.QueryContext(ctx, params...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		out = nil
		for rows.Next() {
			var v any
			if err := rows.Scan(&v); err != nil {
				return 0, err
			}
			out = append(out, v)
		}
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return len(out), nil
	})
	if out == nil {
		out = []any{}
	}
	return out, err
}

// AggregateFunc is one of the functions permitted in Aggregate.
type AggregateFunc string

const (
	AggSum   AggregateFunc = "SUM"
	AggAvg   AggregateFunc = "AVG"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
	AggCount AggregateFunc = "COUNT"
)

// Aggregate computes the given functions over column, per §4.4.
func (t *Table) Aggregate(ctx context.Context, column string, functions []AggregateFunc, where predicate.Predicate) (map[string]float64, error) {
	if len(functions) == 0 {
		return map[string]float64{}, nil
	}
	if predicate.ShortCircuitsToEmpty(where) {
		out := make(map[string]float64, len(functions))
		for _, f := range functions {
			out[string(f)] = 0
		}
		return out, nil
	}

	exprs := make([]string, len(functions))
	for i, f := range functions {
		exprs[i] = fmt.Sprintf("%s(%s) AS %s", f, quoteIdent(column), strings.ToLower(string(f)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(exprs, ", "), quoteIdent(t.schema.Name))
	frag, params := predicate.Compile(where)
	if frag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(frag)
	}

	ctx = ensureOperationID(ctx)
	result := make(map[string]float64, len(functions))
	err := t.withLockRetry(ctx, "aggregate", func() (int, error) {
		stmt, err := t.prepare(ctx, b.String())
		if err != nil {
			return 0, err
		}
		dest := make([]any, len(functions))
		vals := make([]float64, len(functions))
		for i := range dest {
			dest[i] = &vals[i]
		}
		if err := stmt.QueryRowContext(ctx, params...).Scan(dest...); err != nil {
			return 0, err
		}
		for i, f := range functions {
			result[string(f)] = vals[i]
		}
		return 1, nil
	})
	return result, err
}

// OrderBy describes a single-column ordering for Paginate.
type OrderBy struct {
	Column    string
	Direction string // "ASC" (default) or "DESC"
}

// PaginateOptions configures Paginate.
type PaginateOptions struct {
	Page     int
	PageSize int
	Where    predicate.Predicate
	Select   []string
	OrderBy  *OrderBy
}

// PaginateResult is the §4.4 pagination envelope.
type PaginateResult struct {
	Data       []map[string]any
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// Paginate returns one page of results plus paging metadata, per §4.4:
// out-of-range pages return empty data with unchanged metadata.
func (t *Table) Paginate(ctx context.Context, opts PaginateOptions) (PaginateResult, error) {
	total, err := t.Count(ctx, opts.Where)
	if err != nil {
		return PaginateResult{}, err
	}

	totalPages := 0
	if opts.PageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(opts.PageSize)))
	}

	result := PaginateResult{Data: []map[string]any{}, Total: total, Page: opts.Page, PageSize: opts.PageSize, TotalPages: totalPages}

	if opts.Page < 1 || opts.PageSize < 1 || opts.Page > totalPages {
		return result, nil
	}

	sel := SelectOptions{
		Where:  opts.Where,
		Select: opts.Select,
		Limit:  opts.PageSize,
		Skip:   (opts.Page - 1) * opts.PageSize,
	}

	query, args := t.buildSelectWithOrder(sel, opts.OrderBy)
	rows, err := t.query(ctx, query, args)
	if err != nil {
		return PaginateResult{}, err
	}
	result.Data = rows
	return result, nil
}

func (t *Table) buildSelectWithOrder(opts SelectOptions, order *OrderBy) (string, []any) {
	query, args := t.buildSelect(SelectOptions{Where: opts.Where, Select: opts.Select})
	if order != nil {
		dir := order.Direction
		if dir == "" {
			dir = "ASC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", quoteIdent(order.Column), dir)
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}
	return query, args
}
