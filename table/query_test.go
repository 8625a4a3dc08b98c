package table

import (
	"context"
	"testing"

	"github.com/relvault/relvault/predicate"
)

func TestDistinct(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()
	rows := []map[string]any{
		{"email": "a@x", "role": "admin"},
		{"email": "b@x", "role": "admin"},
		{"email": "c@x", "role": "user"},
	}
	if err := tbl.Insert(ctx, rows); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	values, err := tbl.Distinct(ctx, "role", predicate.Predicate{}, 0)
	if err != nil {
		t.Fatalf("Distinct() error = %v", err)
	}
	if len(values) != 2 {
		t.Errorf("len(values) = %d; want 2 (admin, user)", len(values))
	}
}

func TestDistinct_OrEmptyShortCircuits(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()
	if err := tbl.Insert(ctx, []map[string]any{{"email": "a@x"}}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	values, err := tbl.Distinct(ctx, "role", predicate.Predicate{Or: []predicate.Predicate{}}, 0)
	if err != nil {
		t.Fatalf("Distinct() error = %v", err)
	}
	if len(values) != 0 {
		t.Errorf("Distinct(OR:[]) returned %d values; want 0", len(values))
	}
}

func TestAggregate(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()
	if err := tbl.Insert(ctx, []map[string]any{{"email": "a@x"}, {"email": "b@x"}, {"email": "c@x"}}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	result, err := tbl.Aggregate(ctx, "id", []AggregateFunc{AggCount, AggMax}, predicate.Predicate{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if result["COUNT"] != 3 {
		t.Errorf("COUNT = %v; want 3", result["COUNT"])
	}
	if result["MAX"] != 3 {
		t.Errorf("MAX = %v; want 3", result["MAX"])
	}
}

func TestAggregate_OrEmptyShortCircuits(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()
	if err := tbl.Insert(ctx, []map[string]any{{"email": "a@x"}}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	result, err := tbl.Aggregate(ctx, "id", []AggregateFunc{AggSum}, predicate.Predicate{Or: []predicate.Predicate{}})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if result["SUM"] != 0 {
		t.Errorf("SUM = %v; want 0", result["SUM"])
	}
}

func TestAggregate_NoFunctionsReturnsEmpty(t *testing.T) {
	tbl := newTestTable(t)
	result, err := tbl.Aggregate(context.Background(), "id", nil, predicate.Predicate{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(result) != 0 {
		t.Errorf("len(result) = %d; want 0", len(result))
	}
}
