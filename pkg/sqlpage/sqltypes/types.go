// Package sqltypes defines the row/value/dialect vocabulary shared by the
// analyzer, evaluator, database abstraction, and dispatcher.
package sqltypes

import "strings"

// Dialect identifies the SQL dialect a statement was analyzed for. It
// mirrors dbmanager.DatabaseType but lives here to avoid a dependency from
// the analyzer onto the connection manager.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectMSSQL    Dialect = "mssql"
)

// ParseDialect normalizes a few common spellings onto the canonical values.
func ParseDialect(s string) Dialect {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pgx", "pg":
		return DialectPostgres
	case "mysql", "mariadb":
		return DialectMySQL
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "mssql", "sqlserver":
		return DialectMSSQL
	default:
		return DialectPostgres
	}
}

// Kind is the tag of a DbValue's dynamic type.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindText
	KindBytes
	KindJSON
)

// DbValue is a strongly-typed column value, normalized from whatever the
// driver handed back so the dispatcher and renderer never see driver-specific
// types (sql.NullString, []uint8 vs string, etc).
type DbValue struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Text  string
	Bytes []byte
}

func Null() DbValue                { return DbValue{Kind: KindNull} }
func FromBool(b bool) DbValue      { return DbValue{Kind: KindBool, Bool: b} }
func FromInt64(i int64) DbValue    { return DbValue{Kind: KindInt64, Int: i} }
func FromFloat64(f float64) DbValue { return DbValue{Kind: KindFloat64, Float: f} }
func FromText(s string) DbValue    { return DbValue{Kind: KindText, Text: s} }
func FromBytes(b []byte) DbValue   { return DbValue{Kind: KindBytes, Bytes: b} }
func FromJSON(s string) DbValue    { return DbValue{Kind: KindJSON, Text: s} }

func (v DbValue) IsNull() bool { return v.Kind == KindNull }

// Any returns the value boxed as interface{}, the shape the template engine
// and JSON encoder want.
func (v DbValue) Any() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt64:
		return v.Int
	case KindFloat64:
		return v.Float
	case KindText, KindJSON:
		return v.Text
	case KindBytes:
		return v.Bytes
	default:
		return nil
	}
}

// String renders the value the way SQL string concatenation would, used by
// statements like `'Hi ' || $name`. Go doesn't evaluate SQL expressions
// itself — this is only used for host-side formatting (e.g. logging,
// debug component) never for building SQL text.
func (v DbValue) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindText, KindJSON:
		return v.Text
	case KindBytes:
		return string(v.Bytes)
	default:
		return ""
	}
}

// DbRow is an ordered, name-keyed row. Column names preserve database case;
// lookups are case-sensitive to match that invariant.
type DbRow struct {
	Columns []string
	Values  map[string]DbValue
}

func NewRow() DbRow {
	return DbRow{Values: make(map[string]DbValue)}
}

func (r *DbRow) Set(name string, v DbValue) {
	if _, exists := r.Values[name]; !exists {
		r.Columns = append(r.Columns, name)
	}
	// Duplicate columns within a row keep the last occurrence's value but
	// the first occurrence's position, matching observed menu_item chains.
	r.Values[name] = v
}

func (r DbRow) Has(name string) bool {
	_, ok := r.Values[name]
	return ok
}

func (r DbRow) Get(name string) DbValue {
	return r.Values[name]
}

func (r DbRow) IsNull(name string) bool {
	v, ok := r.Values[name]
	return !ok || v.IsNull()
}

// Map flattens the row into a plain map for template binding.
func (r DbRow) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for _, c := range r.Columns {
		out[c] = r.Values[c].Any()
	}
	return out
}
