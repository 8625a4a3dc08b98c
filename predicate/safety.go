package predicate

import (
	dberrors "github.com/relvault/relvault/core/errors"
)

// RequireForMutation enforces the §4.3 safety gate shared by update and
// delete: a predicate with at least one meaningful condition. An empty
// predicate (including a nil one) fails with MissingPredicateError.
func RequireForMutation(table, operation string, p Predicate) error {
	if p.IsEmpty() {
		return &dberrors.MissingPredicateError{Table: table, Operation: operation}
	}
	return nil
}

// ShortCircuitsToEmpty reports whether p is the `OR: []` identity-false
// predicate, which select/count/delete/paginate must treat as "no rows"
// without executing any SQL.
func ShortCircuitsToEmpty(p Predicate) bool {
	return p.IsIdentityFalse()
}
