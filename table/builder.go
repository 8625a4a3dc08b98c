package table

import (
	"context"

	"github.com/relvault/relvault/predicate"
)

// QueryBuilder is a thin fluent wrapper mirroring Select, per §4.5. It
// only rearranges call sites; semantics are identical to §4.4.
type QueryBuilder struct {
	table *Table
	opts  SelectOptions
}

// Query starts a fluent query against t.
func (t *Table) Query() *QueryBuilder {
	return &QueryBuilder{table: t}
}

// Where adds implicit-equality clauses.
func (b *QueryBuilder) Where(field string, value any) *QueryBuilder {
	if b.opts.Where.Eq == nil {
		b.opts.Where.Eq = map[string]any{}
	}
	b.opts.Where.Eq[field] = value
	return b
}

// WhereLike adds a LIKE clause.
func (b *QueryBuilder) WhereLike(field, pattern string) *QueryBuilder {
	if b.opts.Where.Like == nil {
		b.opts.Where.Like = map[string]any{}
	}
	b.opts.Where.Like[field] = pattern
	return b
}

// WhereOr sets the predicate's OR branches. Each branch is a set of
// implicit-equality fields, matching §4.3's "inner fields ANDed" rule.
// Passing no branches at all sets the OR:[] identity-false predicate.
func (b *QueryBuilder) WhereOr(branches ...map[string]any) *QueryBuilder {
	or := make([]predicate.Predicate, len(branches))
	for i, branch := range branches {
		or[i] = predicate.Predicate{Eq: branch}
	}
	b.opts.Where.Or = or
	return b
}

// Select restricts the result to the given columns.
func (b *QueryBuilder) Select(columns ...string) *QueryBuilder {
	b.opts.Select = columns
	return b
}

// SelectAll clears any column restriction, matching bare `select({})`.
func (b *QueryBuilder) SelectAll() *QueryBuilder {
	b.opts.Select = nil
	return b
}

// Limit sets the row limit.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.opts.Limit = n
	return b
}

// Skip sets the row offset.
func (b *QueryBuilder) Skip(n int) *QueryBuilder {
	b.opts.Skip = n
	return b
}

// Execute runs the built query and returns matching rows.
func (b *QueryBuilder) Execute(ctx context.Context) ([]map[string]any, error) {
	return b.table.Select(ctx, b.opts)
}

// First returns the first matching row, or nil.
func (b *QueryBuilder) First(ctx context.Context) (map[string]any, error) {
	return b.table.FindFirst(ctx, b.opts)
}

// Count returns the number of matching rows.
func (b *QueryBuilder) Count(ctx context.Context) (int64, error) {
	return b.table.Count(ctx, b.opts.Where)
}

// Exists reports whether any row matches.
func (b *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	return b.table.Exists(ctx, b.opts.Where)
}
