// Package predicate compiles a structured predicate tree into a
// parameterized SQL WHERE fragment and its matching parameter vector,
// enforcing the safety gates that guard mutation operations.
package predicate

// Comparison operators recognized under the comparison keys.
type CompareOp string

const (
	OpGreaterThan        CompareOp = "greaterThan"
	OpLessThan           CompareOp = "lessThan"
	OpGreaterThanOrEqual CompareOp = "greaterThanOrEqual"
	OpLessThanOrEqual    CompareOp = "lessThanOrEqual"
	OpNotEqual           CompareOp = "notEqual"
)

var compareSQL = map[CompareOp]string{
	OpGreaterThan:        ">",
	OpLessThan:           "<",
	OpGreaterThanOrEqual: ">=",
	OpLessThanOrEqual:    "<=",
	OpNotEqual:           "!=",
}

// Predicate is a structured filter tree, per §4.3. All fields are
// optional; an empty Predicate compiles to no WHERE clause.
type Predicate struct {
	// Eq holds implicit-equality clauses: field -> value.
	Eq map[string]any

	// Like holds SQL LIKE clauses: field -> pattern.
	Like map[string]any

	// Compare holds ordered-comparison clauses.
	Compare []Comparison

	// Or holds a disjunction of sub-predicates. A non-nil, empty Or
	// (length 0) is the identity-false: it short-circuits to no rows
	// without a nil check, so callers must distinguish "no OR clause"
	// (nil) from "OR of nothing" ([]Predicate{}).
	Or []Predicate
}

// Comparison is one ordered-comparison clause.
type Comparison struct {
	Field string
	Op    CompareOp
	Value any
}

// IsEmpty reports whether p has no meaningful condition at all — the
// gate used by the safety checks in §4.3.
func (p Predicate) IsEmpty() bool {
	return len(p.Eq) == 0 && len(p.Like) == 0 && len(p.Compare) == 0 && p.Or == nil
}

// IsIdentityFalse reports whether p is `OR: []`, the explicit
// identity-false predicate that short-circuits reads/deletes to an empty
// result without touching the engine.
func (p Predicate) IsIdentityFalse() bool {
	return p.Or != nil && len(p.Or) == 0
}
