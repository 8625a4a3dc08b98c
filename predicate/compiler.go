package predicate

import (
	"sort"
	"strings"
)

// Compile translates p into a WHERE-clause fragment (without the leading
// "WHERE ") and its parameter vector, per §4.3's compilation rules:
// clauses AND-combined in order (implicit equality, LIKE, comparisons,
// OR), every value placeholder-bound, parameters collected in emission
// order. An empty predicate compiles to ("", nil).
//
// Callers are responsible for handling IsIdentityFalse (OR: []) before
// calling Compile — it short-circuits to no SQL execution at all, which
// this function cannot express: an OR: [] adds no clause, so on its own it
// compiles to ("", nil), the same as an empty predicate.
func Compile(p Predicate) (string, []any) {
	var clauses []string
	var params []any

	if len(p.Eq) > 0 {
		for _, field := range sortedKeys(p.Eq) {
			clauses = append(clauses, quoteIdent(field)+" = ?")
			params = append(params, p.Eq[field])
		}
	}

	if len(p.Like) > 0 {
		for _, field := range sortedKeys(p.Like) {
			clauses = append(clauses, quoteIdent(field)+" LIKE ?")
			params = append(params, p.Like[field])
		}
	}

	for _, cmp := range p.Compare {
		op, ok := compareSQL[cmp.Op]
		if !ok {
			continue
		}
		clauses = append(clauses, quoteIdent(cmp.Field)+" "+op+" ?")
		params = append(params, cmp.Value)
	}

	if p.Or != nil && len(p.Or) > 0 {
		var orParts []string
		for _, sub := range p.Or {
			frag, subParams := compileAndGroup(sub)
			if frag == "" {
				continue
			}
			orParts = append(orParts, "("+frag+")")
			params = append(params, subParams...)
		}
		if len(orParts) > 0 {
			clauses = append(clauses, "("+strings.Join(orParts, " OR ")+")")
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return strings.Join(clauses, " AND "), params
}

// compileAndGroup compiles one OR-branch's inner Eq/Like fields, ANDed
// together, per §4.3 ("each element may itself contain LIKE plus
// equality fields, inner fields ANDed").
func compileAndGroup(p Predicate) (string, []any) {
	var clauses []string
	var params []any

	for _, field := range sortedKeys(p.Eq) {
		clauses = append(clauses, quoteIdent(field)+" = ?")
		params = append(params, p.Eq[field])
	}
	for _, field := range sortedKeys(p.Like) {
		clauses = append(clauses, quoteIdent(field)+" LIKE ?")
		params = append(params, p.Like[field])
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return strings.Join(clauses, " AND "), params
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
