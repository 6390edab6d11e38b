package dbexec

import (
	"database/sql"
	"math"
	"time"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

// RowStream is a pull-based iterator over a *sql.Rows, normalizing driver
// values into sqltypes.DbValue so the dispatcher and renderer never see
// driver-specific types. The renderer pulls only when its write buffer has
// room, giving the stream natural backpressure.
type RowStream struct {
	rows    *sql.Rows
	columns []string
	types   []*sql.ColumnType
	scanBuf []any
}

func newRowStream(rows *sql.Rows) (*RowStream, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, err
	}
	scanBuf := make([]any, len(cols))
	for i := range scanBuf {
		scanBuf[i] = new(any)
	}
	return &RowStream{rows: rows, columns: cols, types: types, scanBuf: scanBuf}, nil
}

// Next pulls the next row, or (zero-row, false, nil) at end of stream.
func (s *RowStream) Next() (sqltypes.DbRow, bool, error) {
	if !s.rows.Next() {
		return sqltypes.DbRow{}, false, s.rows.Err()
	}
	if err := s.rows.Scan(s.scanBuf...); err != nil {
		return sqltypes.DbRow{}, false, err
	}
	row := sqltypes.NewRow()
	for i, name := range s.columns {
		raw := *(s.scanBuf[i].(*any))
		row.Set(name, normalize(raw, s.types[i]))
	}
	return row, true, nil
}

func (s *RowStream) Close() error {
	return s.rows.Close()
}

// normalize converts a driver-returned value to the closest DbValue without
// precision loss where representable, absorbing DECIMAL/NUMERIC/TIME/DATETIME
// quirks so callers never branch on driver type.
func normalize(raw any, ct *sql.ColumnType) sqltypes.DbValue {
	if raw == nil {
		return sqltypes.Null()
	}
	switch v := raw.(type) {
	case bool:
		return sqltypes.FromBool(v)
	case int64:
		return sqltypes.FromInt64(v)
	case int32:
		return sqltypes.FromInt64(int64(v))
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return sqltypes.FromFloat64(v)
		}
		return sqltypes.FromFloat64(0)
	case float32:
		return sqltypes.FromFloat64(float64(v))
	case []byte:
		if isJSONColumn(ct) {
			return sqltypes.FromJSON(string(v))
		}
		return sqltypes.FromBytes(v)
	case string:
		if isJSONColumn(ct) {
			return sqltypes.FromJSON(v)
		}
		return sqltypes.FromText(v)
	case time.Time:
		return sqltypes.FromText(v.Format(time.RFC3339Nano))
	default:
		return sqltypes.FromText(toText(v))
	}
}

func isJSONColumn(ct *sql.ColumnType) bool {
	if ct == nil {
		return false
	}
	switch ct.DatabaseTypeName() {
	case "JSON", "JSONB":
		return true
	default:
		return false
	}
}

func toText(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return ""
}
