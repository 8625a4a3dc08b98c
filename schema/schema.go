// Package schema describes tables and columns as a closed, tagged model
// and derives the row shapes (insert vs. select) that the row codec and
// table façade enforce at runtime.
package schema

import (
	"fmt"

	dberrors "github.com/relvault/relvault/core/errors"
)

// Kind is the storage kind of a column.
type Kind string

const (
	KindInt  Kind = "int"
	KindReal Kind = "real"
	KindText Kind = "text"
	KindDate Kind = "date"
	KindBool Kind = "bool"
	KindJSON Kind = "json"
)

// Column is a tagged column descriptor. Only the fields relevant to Kind
// are meaningful; others are ignored.
type Column struct {
	Name string
	Kind Kind

	Primary  bool
	Unique   bool
	Nullable bool

	// AutoIncrement is only meaningful for Kind == KindInt, and implies
	// Primary.
	AutoIncrement bool

	IntUnion    []int64
	IntDefault  *int64
	RealUnion   []float64
	RealDefault *float64
	TextUnion   []string
	TextDefault *string
	DateDefault *int64 // milliseconds since epoch
	BoolDefault *bool
	JSONShape   *Shape
	JSONDefault any
}

// HasDefault reports whether the column carries an engine-populated
// default value, per §3's insert-shape optionality rule.
func (c Column) HasDefault() bool {
	switch c.Kind {
	case KindInt:
		return c.IntDefault != nil
	case KindReal:
		return c.RealDefault != nil
	case KindText:
		return c.TextDefault != nil
	case KindDate:
		return c.DateDefault != nil
	case KindBool:
		return c.BoolDefault != nil
	case KindJSON:
		return c.JSONDefault != nil
	default:
		return false
	}
}

// Optional reports whether this column may be omitted from an insert
// payload: it has AutoIncrement, a default, or is nullable.
func (c Column) Optional() bool {
	return c.AutoIncrement || c.HasDefault() || c.Nullable
}

// Union returns the column's whitelist of permitted literal values, or
// nil if the column is unconstrained.
func (c Column) Union() []any {
	switch c.Kind {
	case KindInt:
		if c.IntUnion == nil {
			return nil
		}
		out := make([]any, len(c.IntUnion))
		for i, v := range c.IntUnion {
			out[i] = v
		}
		return out
	case KindReal:
		if c.RealUnion == nil {
			return nil
		}
		out := make([]any, len(c.RealUnion))
		for i, v := range c.RealUnion {
			out[i] = v
		}
		return out
	case KindText:
		if c.TextUnion == nil {
			return nil
		}
		out := make([]any, len(c.TextUnion))
		for i, v := range c.TextUnion {
			out[i] = v
		}
		return out
	default:
		return nil
	}
}

// Table is a table descriptor: a name plus its columns.
type Table struct {
	Name    string
	Columns []Column
}

// PrimaryColumns returns the table's primary-key columns, in declaration
// order.
func (t Table) PrimaryColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.Primary {
			out = append(out, c)
		}
	}
	return out
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate enforces the table invariants from §3: non-empty name, at
// least one column, at least one primary column, unique column names,
// and AutoIncrement implying int+primary.
func Validate(t Table) error {
	if t.Name == "" {
		return &dberrors.InvalidSchemaError{Table: t.Name, Reason: "empty-name"}
	}
	if len(t.Columns) == 0 {
		return &dberrors.InvalidSchemaError{Table: t.Name, Reason: "no-columns"}
	}

	seen := make(map[string]bool, len(t.Columns))
	hasPrimary := false
	for _, c := range t.Columns {
		if seen[c.Name] {
			return &dberrors.InvalidSchemaError{Table: t.Name, Reason: fmt.Sprintf("duplicate-columns: %s", c.Name)}
		}
		seen[c.Name] = true

		if c.Primary {
			hasPrimary = true
		}
		if c.AutoIncrement && (c.Kind != KindInt || !c.Primary) {
			return &dberrors.InvalidSchemaError{Table: t.Name, Reason: fmt.Sprintf("autoinc-nonint: %s", c.Name)}
		}
		if c.Primary && c.Nullable {
			return &dberrors.InvalidSchemaError{Table: t.Name, Reason: fmt.Sprintf("primary-nullable: %s", c.Name)}
		}
	}
	if !hasPrimary {
		return &dberrors.InvalidSchemaError{Table: t.Name, Reason: "no-primary"}
	}
	return nil
}
