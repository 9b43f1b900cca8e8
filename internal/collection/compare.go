package collection

import (
	"reflect"
	"strings"
	"time"
)

// compare orders two field values. ok is false when the values are of
// incomparable kinds; such pairs never match a filter.
func compare(a, b any) (c int, ok bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}

	if fa, isNum := toFloat(a); isNum {
		fb, isNum := toFloat(b)
		if !isNum {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, isTime := b.(time.Time)
		if !isTime {
			return 0, false
		}
		return av.Compare(bv), true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func matches(data map[string]any, f Filter) bool {
	v, exists := data[f.Field]
	if !exists {
		return false
	}
	c, ok := compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return c == 0
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

// cloneValue deep copies maps and slices so stored documents never alias
// caller memory.
func cloneValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), reflect.ValueOf(cloneValue(iter.Value().Interface())))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(reflect.ValueOf(cloneValue(rv.Index(i).Interface())))
		}
		return out.Interface()
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
