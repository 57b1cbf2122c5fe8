package table

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Count is one distinct value and the number of rows holding it.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts counts the distinct non-null values of column c, most frequent
// first.
func (t *Table) ValueCounts(c string) []Count {
	values := lo.FilterMap(t.Column(c), func(v any, _ int) (string, bool) {
		if v == nil {
			return "", false
		}
		return FormatCell(v), true
	})
	return countValues(values)
}

// SplitValueCounts splits every cell of column c on sep, trims the parts and
// counts them. Empty parts are ignored.
func (t *Table) SplitValueCounts(c, sep string) []Count {
	var parts []string
	for _, v := range t.Column(c) {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, part := range strings.Split(s, sep) {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
	}
	return countValues(parts)
}

func countValues(values []string) []Count {
	counts := lo.CountValues(values)
	out := make([]Count, 0, len(counts))
	for v, n := range counts {
		out = append(out, Count{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// FormatCell renders a cell as text. Null is the empty string; times use
// the registry's day precision.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}
