package jsonutil

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// CoerceString converts a value to string when it is already a string.
func CoerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// IsNumber reports whether v holds one of the Go numeric kinds a row may carry.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number, *big.Float, *big.Int, *big.Rat:
		return true
	}
	return false
}

// ToFloat converts a numeric value to float64. Strings are not accepted;
// use ParseFloat for textual input.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case *big.Float:
		if t == nil {
			return 0, false
		}
		f, _ := t.Float64()
		return f, true
	case *big.Int:
		if t == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(t).Float64()
		return f, true
	case *big.Rat:
		if t == nil {
			return 0, false
		}
		f, _ := t.Float64()
		return f, true
	}
	return 0, false
}

// ToInt64 converts a numeric value to int64, rejecting fractional and
// out-of-range values.
func ToInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		return i, err == nil
	case *big.Int:
		if t == nil || !t.IsInt64() {
			return 0, false
		}
		return t.Int64(), true
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// FormatNumber renders a numeric value without exponent noise.
func FormatNumber(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case *big.Float:
		if t == nil {
			return ""
		}
		return t.Text('f', -1)
	case *big.Int:
		if t == nil {
			return ""
		}
		return t.String()
	case *big.Rat:
		if t == nil {
			return ""
		}
		return t.RatString()
	}
	if i, ok := ToInt64(v); ok {
		return strconv.FormatInt(i, 10)
	}
	if u, ok := v.(uint64); ok {
		return strconv.FormatUint(u, 10)
	}
	if u, ok := v.(uint); ok {
		return strconv.FormatUint(uint64(u), 10)
	}
	return ""
}

// CoerceFloat converts common numeric-like values to float64.
func CoerceFloat(v any) float64 {
	if f, ok := ToFloat(v); ok {
		return f
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

// CoerceInt converts common numeric-like values to int.
func CoerceInt(v any) int {
	if i, ok := ToInt64(v); ok {
		return int(i)
	}
	if f, ok := ToFloat(v); ok {
		return int(f)
	}
	if s, ok := v.(string); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i
		}
	}
	return 0
}
