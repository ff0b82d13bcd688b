package courier

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// applyQueryBinding encodes one bound argument into the query multi-map.
//
// Encoding rules:
//   - absent values (nil, nil pointer, nil map/slice) are omitted entirely
//   - time.Time encodes as its epoch-millisecond numeric string
//   - slices and arrays join their elements with a comma
//   - string-keyed maps flatten: each entry becomes its own parameter and
//     the binding key is discarded
//   - everything else encodes as its string form; an empty string still
//     produces "key=" (present-but-empty)
//
// Within one call, later bindings with the same key overwrite earlier ones.
func applyQueryBinding(q url.Values, key string, v any) {
	v = deref(v)
	if v == nil {
		return
	}

	if m, ok := asStringKeyedMap(v); ok {
		for k, mv := range m {
			mv = deref(mv)
			if mv == nil {
				continue
			}
			q.Set(k, encodeQueryScalar(mv))
		}
		return
	}

	q.Set(key, encodeQueryScalar(v))
}

// encodeQueryScalar encodes a single (non-map) value for the query string.
func encodeQueryScalar(v any) string {
	if t, ok := v.(time.Time); ok {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := deref(rv.Index(i).Interface())
			if elem == nil {
				continue
			}
			parts = append(parts, encodeQueryScalar(elem))
		}
		return strings.Join(parts, ",")
	}

	return stringify(v)
}

// asStringKeyedMap reports whether v is a plain string-keyed map and returns
// its entries. url.Values and http.Header are maps too and flatten the same
// way (their []string values comma-join).
func asStringKeyedMap(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// deref unwraps pointers and reports typed or untyped nil as nil.
func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return deref(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

// stringify renders a bound argument for path and header substitution.
func stringify(v any) string {
	v = deref(v)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
