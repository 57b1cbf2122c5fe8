package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// typeTime marks a column whose non-null cells are all time.Time.
const typeTime = "time"

// wireTable is the JSON shape of a Table.
type wireTable struct {
	Columns []string          `json:"columns"`
	Types   map[string]string `json:"types,omitempty"`
	Rows    []Row             `json:"rows"`
}

// MarshalJSON encodes the table as {"columns": [...], "types": {...},
// "rows": [...]}. Types names the time columns so that only they are parsed
// back as timestamps.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := t.rows
	if rows == nil {
		rows = []Row{}
	}
	columns := t.columns
	if columns == nil {
		columns = []string{}
	}
	return json.Marshal(wireTable{Columns: columns, Types: t.columnTypes(), Rows: rows})
}

// columnTypes returns typeTime for every column holding at least one
// time.Time and nothing else but nulls.
func (t *Table) columnTypes() map[string]string {
	var types map[string]string
	for _, c := range t.Columns() {
		seen := false
		onlyTimes := true
		for _, r := range t.rows {
			v, ok := r[c]
			if !ok || v == nil {
				continue
			}
			if _, isTime := v.(time.Time); !isTime {
				onlyTimes = false
				break
			}
			seen = true
		}
		if seen && onlyTimes {
			if types == nil {
				types = make(map[string]string)
			}
			types[c] = typeTime
		}
	}
	return types
}

// UnmarshalJSON restores a table written by MarshalJSON. Integral numbers
// decode as int64, other numbers as float64. Strings stay strings except in
// columns typed "time", where RFC 3339 values become time.Time.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireTable
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("decode table: %w", err)
	}

	out := New(w.Columns...)
	for _, r := range w.Rows {
		for k, v := range r {
			cell, err := restoreCell(v, w.Types[k])
			if err != nil {
				return fmt.Errorf("decode table column %q: %w", k, err)
			}
			r[k] = cell
		}
		out.Append(r)
	}
	*t = *out
	return nil
}

func restoreCell(v any, typ string) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
		return x.String(), nil
	case string:
		if typ != typeTime {
			return x, nil
		}
		ts, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return nil, err
		}
		return ts, nil
	default:
		return v, nil
	}
}
