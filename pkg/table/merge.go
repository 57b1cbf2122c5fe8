package table

import (
	"errors"
	"fmt"
	"strings"
)

// JoinType selects which unmatched rows a merge keeps.
type JoinType string

const (
	// JoinOuter keeps rows from both sides.
	JoinOuter JoinType = "outer"

	// JoinInner keeps only rows whose key appears on both sides.
	JoinInner JoinType = "inner"

	// JoinLeft keeps every row of the first table.
	JoinLeft JoinType = "left"

	// JoinRight keeps every row of the second table.
	JoinRight JoinType = "right"
)

// Merge column names and provenance markers.
const (
	KeyColumn     = "nct_id"
	SourceColumn  = "source"
	Source1Column = "source_1"
	Source2Column = "source_2"
	Dataset1      = "dataset1"
	Dataset2      = "dataset2"
)

// ErrInvalidJoinType is returned for an unknown join type.
var ErrInvalidJoinType = errors.New("invalid join type")

// ParseJoinType parses a join type name. An empty string means JoinOuter.
func ParseJoinType(s string) (JoinType, error) {
	switch how := JoinType(strings.ToLower(strings.TrimSpace(s))); how {
	case "":
		return JoinOuter, nil
	case JoinOuter, JoinInner, JoinLeft, JoinRight:
		return how, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidJoinType, s)
	}
}

// Merge joins a and b on nct_id.
//
// Each input is tagged with a source marker (dataset1, dataset2) before the
// join. A column present in both inputs is coalesced: a's value where
// non-null, else b's. Columns unique to one side pass through. The source
// markers are not coalesced and come out as source_1 and source_2.
//
// Keys are expected to be unique per input. Duplicates produce one row per
// matching pair. Rows with a null key never match.
func Merge(a, b *Table, how JoinType) (*Table, error) {
	if how == "" {
		how = JoinOuter
	}
	if _, err := ParseJoinType(string(how)); err != nil {
		return nil, err
	}
	if a == nil {
		a = New()
	}
	if b == nil {
		b = New()
	}

	left := a.WithColumn(SourceColumn, Dataset1)
	right := b.WithColumn(SourceColumn, Dataset2)

	p := planColumns(left, right)
	out := New(p.columns...)

	byKey := make(map[string][]int, right.Len())
	for j, r := range right.rows {
		if k, ok := joinKey(r); ok {
			byKey[k] = append(byKey[k], j)
		}
	}

	keepLeft := how == JoinOuter || how == JoinLeft
	keepRight := how == JoinOuter || how == JoinRight

	matched := make([]bool, right.Len())
	for _, l := range left.rows {
		var hits []int
		if k, ok := joinKey(l); ok {
			hits = byKey[k]
		}
		if len(hits) == 0 {
			if keepLeft {
				out.rows = append(out.rows, p.combine(l, nil))
			}
			continue
		}
		for _, j := range hits {
			matched[j] = true
			out.rows = append(out.rows, p.combine(l, right.rows[j]))
		}
	}

	if keepRight {
		for j, r := range right.rows {
			if !matched[j] {
				out.rows = append(out.rows, p.combine(nil, r))
			}
		}
	}

	return out, nil
}

// mergePlan records where each output column takes its value from.
type mergePlan struct {
	columns   []string
	leftCols  []string
	rightOnly []string
	shared    map[string]bool
}

func planColumns(left, right *Table) mergePlan {
	p := mergePlan{shared: make(map[string]bool)}
	// Markers left over from an earlier merge would otherwise pass through
	// as data and shadow the new provenance.
	skip := func(c string) bool {
		switch c {
		case KeyColumn, SourceColumn, Source1Column, Source2Column:
			return true
		}
		return false
	}

	p.columns = append(p.columns, KeyColumn)
	for _, c := range left.columns {
		if skip(c) {
			continue
		}
		p.leftCols = append(p.leftCols, c)
		if right.HasColumn(c) {
			p.shared[c] = true
		}
	}
	for _, c := range right.columns {
		if skip(c) || left.HasColumn(c) {
			continue
		}
		p.rightOnly = append(p.rightOnly, c)
	}

	p.columns = append(p.columns, p.leftCols...)
	p.columns = append(p.columns, p.rightOnly...)
	p.columns = append(p.columns, Source1Column, Source2Column)
	return p
}

// combine builds one output row. Either side may be nil.
func (p mergePlan) combine(l, r Row) Row {
	out := make(Row, len(p.columns))
	set := func(c string, v any) {
		if v != nil {
			out[c] = v
		}
	}

	set(KeyColumn, coalesce(l[KeyColumn], r[KeyColumn]))
	for _, c := range p.leftCols {
		if p.shared[c] {
			set(c, coalesce(l[c], r[c]))
		} else {
			set(c, l[c])
		}
	}
	for _, c := range p.rightOnly {
		set(c, r[c])
	}
	set(Source1Column, l[SourceColumn])
	set(Source2Column, r[SourceColumn])

	return out
}

func coalesce(a, b any) any {
	if a != nil {
		return a
	}
	return b
}

// joinKey returns a comparable form of the row's nct_id.
func joinKey(r Row) (string, bool) {
	v, ok := r[KeyColumn]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprintf("%T:%v", v, v), true
}
