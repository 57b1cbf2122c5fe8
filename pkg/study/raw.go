package study

import (
	"encoding/json"
	"math"

	"github.com/samber/lo"
)

// Raw is one study as decoded from the registry JSON. It is only held for the
// duration of a single Flatten call.
type Raw map[string]any

// valueAt walks path through nested objects and returns the value found at
// the end as T. It reports false the moment a key is missing, an
// intermediate node is not an object, or the final value is not a T.
func valueAt[T any](node any, path ...string) (T, bool) {
	var zero T
	cur := node
	for _, key := range path {
		obj, ok := asObject(cur)
		if !ok {
			return zero, false
		}
		if cur, ok = obj[key]; !ok {
			return zero, false
		}
	}
	v, ok := cur.(T)
	return v, ok
}

// valueOr is valueAt with a default.
func valueOr[T any](node any, def T, path ...string) T {
	if v, ok := valueAt[T](node, path...); ok {
		return v
	}
	return def
}

// objectAt returns the object at path.
func objectAt(node any, path ...string) (map[string]any, bool) {
	v, ok := valueAt[any](node, path...)
	if !ok {
		return nil, false
	}
	return asObject(v)
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case Raw:
		return o, true
	default:
		return nil, false
	}
}

func stringAt(node any, path ...string) *string {
	s, ok := valueAt[string](node, path...)
	if !ok {
		return nil
	}
	return &s
}

// intAt accepts the numeric shapes encoding/json produces (float64, or
// json.Number when the decoder uses UseNumber).
func intAt(node any, path ...string) *int64 {
	v, ok := valueAt[any](node, path...)
	if !ok {
		return nil
	}
	var n int64
	switch x := v.(type) {
	case float64:
		i, ok := floatToInt(x)
		if !ok {
			return nil
		}
		n = i
	case int:
		n = int64(x)
	case int64:
		n = x
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return nil
			}
			var ok bool
			if i, ok = floatToInt(f); !ok {
				return nil
			}
		}
		n = i
	default:
		return nil
	}
	return &n
}

// floatToInt truncates f toward zero. NaN, infinities and values outside the
// int64 range are rejected.
func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// stringsAt returns the string elements of the list at path. Non-string
// elements are skipped.
func stringsAt(node any, path ...string) []string {
	list, ok := valueAt[[]any](node, path...)
	if !ok {
		return nil
	}
	return lo.FilterMap(list, func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		return s, ok
	})
}

// objectsAt returns the object elements of the list at path.
func objectsAt(node any, path ...string) []map[string]any {
	list, ok := valueAt[[]any](node, path...)
	if !ok {
		return nil
	}
	return lo.FilterMap(list, func(item any, _ int) (map[string]any, bool) {
		return asObject(item)
	})
}
