package table

import (
	"maps"
	"slices"
	"sort"
)

// Row maps column names to cell values. Absent keys are null.
type Row map[string]any

// Clone returns a shallow copy of the row with nil cells dropped.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Table is an ordered collection of rows.
type Table struct {
	columns []string
	known   map[string]struct{}
	rows    []Row
}

// New creates an empty table with the given column order.
func New(columns ...string) *Table {
	t := &Table{known: make(map[string]struct{}, len(columns))}
	t.addColumns(columns...)
	return t
}

// FromRows builds a table from rows. Columns are ordered by first
// appearance; keys new to a row are added in sorted order.
func FromRows(rows ...Row) *Table {
	t := New()
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func (t *Table) addColumns(columns ...string) {
	for _, c := range columns {
		if _, ok := t.known[c]; ok {
			continue
		}
		t.known[c] = struct{}{}
		t.columns = append(t.columns, c)
	}
}

// Append adds a copy of row. Unknown columns are appended to the column list.
func (t *Table) Append(row Row) {
	r := row.Clone()
	var fresh []string
	for k := range r {
		if _, ok := t.known[k]; !ok {
			fresh = append(fresh, k)
		}
	}
	sort.Strings(fresh)
	t.addColumns(fresh...)
	t.rows = append(t.rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.columns)
}

// HasColumn reports whether the table knows column c.
func (t *Table) HasColumn(c string) bool {
	if t == nil {
		return false
	}
	_, ok := t.known[c]
	return ok
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	return t.rows[i].Clone()
}

// Rows returns copies of all rows.
func (t *Table) Rows() []Row {
	out := make([]Row, t.Len())
	for i := range out {
		out[i] = t.rows[i].Clone()
	}
	return out
}

// Value returns the cell at row i, column c, or nil when null.
func (t *Table) Value(i int, c string) any {
	return t.rows[i][c]
}

// Column returns every cell of column c in row order.
func (t *Table) Column(c string) []any {
	out := make([]any, t.Len())
	for i, r := range t.rows {
		out[i] = r[c]
	}
	return out
}

// Clone returns a deep copy of the table structure.
func (t *Table) Clone() *Table {
	out := New(t.Columns()...)
	for _, r := range t.rows {
		out.rows = append(out.rows, r.Clone())
	}
	return out
}

// Concat returns a new table holding t's rows followed by other's. Columns
// are the union in first-appearance order. Rows are not deduplicated.
func (t *Table) Concat(other *Table) *Table {
	if t == nil {
		t = New()
	}
	out := t.Clone()
	out.AppendTable(other)
	return out
}

// AppendTable appends copies of other's rows to t in place.
func (t *Table) AppendTable(other *Table) {
	if other == nil {
		return
	}
	t.addColumns(other.columns...)
	for _, r := range other.rows {
		t.rows = append(t.rows, r.Clone())
	}
}

// WithColumn returns a copy of t with column name set to value on every row.
func (t *Table) WithColumn(name string, value any) *Table {
	out := t.Clone()
	out.addColumns(name)
	for _, r := range out.rows {
		if value == nil {
			delete(r, name)
		} else {
			r[name] = value
		}
	}
	return out
}

// ConvertColumn replaces every non-null cell of column c with fn(cell).
// A nil result makes the cell null.
func (t *Table) ConvertColumn(c string, fn func(any) any) {
	if !t.HasColumn(c) {
		return
	}
	for _, r := range t.rows {
		v, ok := r[c]
		if !ok {
			continue
		}
		if nv := fn(v); nv != nil {
			r[c] = nv
		} else {
			delete(r, c)
		}
	}
}

// Equal reports whether two tables have the same columns and cells.
func (t *Table) Equal(other *Table) bool {
	if !slices.Equal(t.Columns(), other.Columns()) || t.Len() != other.Len() {
		return false
	}
	for i := range t.rows {
		if !maps.EqualFunc(t.rows[i], other.rows[i], cellEqual) {
			return false
		}
	}
	return true
}

// cellEqual compares cells with ==; uncomparable values are never equal.
func cellEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
