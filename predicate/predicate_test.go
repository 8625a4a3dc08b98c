package predicate

import (
	"errors"
	"testing"

	dberrors "github.com/relvault/relvault/core/errors"
)

func TestCompile_Empty(t *testing.T) {
	frag, params := Compile(Predicate{})
	if frag != "" || params != nil {
		t.Errorf("Compile(empty) = %q, %v; want \"\", nil", frag, params)
	}
}

func TestCompile_Equality(t *testing.T) {
	frag, params := Compile(Predicate{Eq: map[string]any{"email": "a@x"}})
	if frag != `"email" = ?` {
		t.Errorf("frag = %q", frag)
	}
	if len(params) != 1 || params[0] != "a@x" {
		t.Errorf("params = %v", params)
	}
}

func TestCompile_OrderedClauses(t *testing.T) {
	p := Predicate{
		Eq:      map[string]any{"role": "admin"},
		Like:    map[string]any{"email": "%@corp.com"},
		Compare: []Comparison{{Field: "age", Op: OpGreaterThan, Value: 18}},
	}
	frag, params := Compile(p)
	want := `"role" = ? AND "email" LIKE ? AND "age" > ?`
	if frag != want {
		t.Errorf("frag = %q; want %q", frag, want)
	}
	if len(params) != 3 || params[0] != "admin" || params[1] != "%@corp.com" || params[2] != 18 {
		t.Errorf("params = %v", params)
	}
}

func TestCompile_Or(t *testing.T) {
	p := Predicate{
		Or: []Predicate{
			{Eq: map[string]any{"role": "admin"}},
			{Like: map[string]any{"email": "%@corp.com"}},
		},
	}
	frag, params := Compile(p)
	want := `(("role" = ?) OR ("email" LIKE ?))`
	if frag != want {
		t.Errorf("frag = %q; want %q", frag, want)
	}
	if len(params) != 2 {
		t.Errorf("params = %v", params)
	}
}

func TestCompile_OrEmptyProducesNoOrClause(t *testing.T) {
	// OR:[] should be handled by ShortCircuitsToEmpty before Compile is
	// ever invoked, but Compile itself must not panic or add a stray
	// "()" clause if called directly.
	frag, _ := Compile(Predicate{Or: []Predicate{}})
	if frag != "" {
		t.Errorf("Compile(OR:[]) = %q; want \"\"", frag)
	}
}

func TestRequireForMutation_Empty(t *testing.T) {
	err := RequireForMutation("users", "update", Predicate{})
	var mp *dberrors.MissingPredicateError
	if !errors.As(err, &mp) {
		t.Fatalf("RequireForMutation(empty) = %v; want MissingPredicateError", err)
	}
}

func TestRequireForMutation_NonEmpty(t *testing.T) {
	err := RequireForMutation("users", "update", Predicate{Eq: map[string]any{"id": 1}})
	if err != nil {
		t.Fatalf("RequireForMutation(non-empty) = %v; want nil", err)
	}
}

func TestShortCircuitsToEmpty(t *testing.T) {
	if !ShortCircuitsToEmpty(Predicate{Or: []Predicate{}}) {
		t.Error("OR:[] should short-circuit")
	}
	if ShortCircuitsToEmpty(Predicate{}) {
		t.Error("empty predicate (no OR at all) should not short-circuit")
	}
	if ShortCircuitsToEmpty(Predicate{Or: []Predicate{{Eq: map[string]any{"a": 1}}}}) {
		t.Error("non-empty OR should not short-circuit")
	}
}
