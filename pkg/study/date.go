package study

import (
	"strings"
	"time"
)

// Registry dates come with day, month or year precision.
var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseDate parses a registry date. Partial dates resolve to the first day of
// the period.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CoerceDate converts a date cell to time.Time. Values that are not
// parseable dates become nil.
func CoerceDate(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		if t, ok := ParseDate(x); ok {
			return t
		}
	}
	return nil
}
