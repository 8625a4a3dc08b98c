package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// storageType maps a column kind to its SQLite storage class, per §4.1:
// int|bool|date -> INTEGER; real -> REAL; text|json -> TEXT.
func storageType(k Kind) string {
	switch k {
	case KindInt, KindBool, KindDate:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText, KindJSON:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// defaultLiteral formats a column's DEFAULT clause literal.
func defaultLiteral(c Column) (string, bool) {
	switch c.Kind {
	case KindInt:
		if c.IntDefault == nil {
			return "", false
		}
		return strconv.FormatInt(*c.IntDefault, 10), true
	case KindReal:
		if c.RealDefault == nil {
			return "", false
		}
		return strconv.FormatFloat(*c.RealDefault, 'g', -1, 64), true
	case KindText:
		if c.TextDefault == nil {
			return "", false
		}
		return quoteSQLString(*c.TextDefault), true
	case KindDate:
		if c.DateDefault == nil {
			return "", false
		}
		return strconv.FormatInt(*c.DateDefault, 10), true
	case KindBool:
		if c.BoolDefault == nil {
			return "", false
		}
		if *c.BoolDefault {
			return "1", true
		}
		return "0", true
	case KindJSON:
		if c.JSONDefault == nil {
			return "", false
		}
		b, err := json.Marshal(c.JSONDefault)
		if err != nil {
			return "", false
		}
		return quoteSQLString(string(b)), true
	default:
		return "", false
	}
}

func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// columnDDL renders one column's definition within a CREATE TABLE.
func columnDDL(c Column) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(storageType(c.Kind))

	if c.Primary {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement && c.Kind == KindInt {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if !c.Nullable && !c.Primary {
		b.WriteString(" NOT NULL")
	}
	if c.Unique && !c.Primary {
		b.WriteString(" UNIQUE")
	}
	if lit, ok := defaultLiteral(c); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTable emits `CREATE TABLE IF NOT EXISTS` DDL for t.
func CreateTable(t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(t.Name))
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = "  " + columnDDL(c)
	}
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// IndexSpec describes an index to create.
type IndexSpec struct {
	Name        string
	Table       string
	Columns     []string
	Unique      bool
	IfNotExists bool
}

// CreateIndex emits `CREATE [UNIQUE] INDEX [IF NOT EXISTS] ...`.
func CreateIndex(spec IndexSpec) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if spec.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if spec.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(quoteIdent(spec.Name))
	b.WriteString(" ON ")
	b.WriteString(quoteIdent(spec.Table))
	b.WriteString(" (")
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = quoteIdent(c)
	}
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(")")
	return b.String()
}

// DropIndex emits `DROP INDEX [IF EXISTS] name`.
func DropIndex(name string, ifExists bool) string {
	if ifExists {
		return fmt.Sprintf("DROP INDEX IF EXISTS %s", quoteIdent(name))
	}
	return fmt.Sprintf("DROP INDEX %s", quoteIdent(name))
}
