package model

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// ToFloat coerces v to a float64.
//
// Integers, floats, json.Number and numeric strings are accepted. Booleans,
// nil and composite values are not numeric.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FormatValue renders v the way adapters receive it on the command line and
// in the environment.
//
// Strings pass through, integers are decimal, floats use the shortest
// representation that round-trips, booleans are "true"/"false", nil is empty,
// and composite values are encoded as JSON.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case json.Number:
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// valuesEqual compares two scalars, numerically when both are numbers.
func valuesEqual(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// isNumber reports whether v is a numeric type. Numeric strings are not.
func isNumber(v any) bool {
	switch v.(type) {
	case nil, string, bool:
		return false
	}
	_, ok := ToFloat(v)
	return ok
}
