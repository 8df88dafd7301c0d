package sqlexec

import (
	"encoding/json"
	"fmt"
)

// RowValues is one row scanned generically, for callers that do not know the
// result shape in advance.
type RowValues struct {
	Columns []string
	Values  []any
}

// ScanValues is a row mapper that captures every column. Byte slices are
// copied into strings since drivers reuse their buffers between rows.
func ScanValues(row Row) (RowValues, error) {
	cols, err := row.Columns()
	if err != nil {
		return RowValues{}, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return RowValues{}, err
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return RowValues{Columns: cols, Values: vals}, nil
}

// Result is a tabular result for display or JSON output.
type Result struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowsAffected int64    `json:"rows_affected,omitempty"`
	Profile      string   `json:"profile,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewResult assembles rows scanned with ScanValues. Columns are taken from
// the first row.
func NewResult(rows []RowValues) Result {
	res := Result{Columns: []string{}, Rows: [][]any{}}
	for i, r := range rows {
		if i == 0 {
			res.Columns = r.Columns
		}
		res.Rows = append(res.Rows, r.Values)
	}
	return res
}

// MarshalJSON renders binary values as hex so results stay valid JSON.
func (r Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	a := Alias(r)

	if len(r.Rows) > 0 {
		serializableRows := make([][]any, len(r.Rows))
		for i, row := range r.Rows {
			serializableRows[i] = make([]any, len(row))
			for j, val := range row {
				switch v := val.(type) {
				case []byte:
					serializableRows[i][j] = fmt.Sprintf("\\x%x", v)
				default:
					serializableRows[i][j] = v
				}
			}
		}
		a.Rows = serializableRows
	}
	return json.Marshal(a)
}

// Strings formats every cell for table output. NULL is shown as "NULL".
func (r Result) Strings() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			switch x := v.(type) {
			case nil:
				cells[j] = "NULL"
			case []byte:
				cells[j] = string(x)
			default:
				cells[j] = fmt.Sprint(x)
			}
		}
		out = append(out, cells)
	}
	return out
}
