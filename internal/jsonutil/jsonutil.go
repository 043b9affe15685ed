// Package jsonutil provides helpers for reading loosely typed JSON objects,
// such as tool inputs decoded into map[string]any.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FirstString returns the string form of the first key whose value is
// truthy (non-empty string, non-zero number, true). Returns "" when none is.
func FirstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if !truthy(m[key]) {
			continue
		}
		return ToString(m[key])
	}
	return ""
}

// Has reports whether key is present with a non-nil value.
func Has(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// ToString converts a decoded JSON value to a display string.
// Whole float64 values are formatted as integers.
func ToString(v any) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Number converts a decoded JSON value to float64. Numeric strings are
// accepted; anything else reports false.
func Number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Pretty renders v as indented JSON, falling back to fmt for values that
// cannot be marshalled.
func Pretty(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case float64:
		return val != 0
	case bool:
		return val
	default:
		return true
	}
}
