package jsonutil

import (
	"testing"
)

func TestFirstString(t *testing.T) {
	m := map[string]any{
		"empty":  "",
		"zero":   0.0,
		"false":  false,
		"path":   "src/a.go",
		"num":    42.0,
		"nil":    nil,
		"nested": map[string]any{"a": 1.0},
	}

	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"first truthy wins", []string{"empty", "path", "num"}, "src/a.go"},
		{"skips zero and false", []string{"zero", "false", "num"}, "42"},
		{"none truthy", []string{"empty", "nil", "missing"}, ""},
		{"no keys", nil, ""},
		{"non-scalar", []string{"nested"}, "map[a:1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstString(m, tt.keys...); got != tt.want {
				t.Errorf("FirstString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHas(t *testing.T) {
	m := map[string]any{"offset": 0.0, "nil": nil}

	if !Has(m, "offset") {
		t.Error("Has(offset) = false, want true for zero value")
	}
	if Has(m, "nil") {
		t.Error("Has(nil) = true, want false")
	}
	if Has(m, "missing") {
		t.Error("Has(missing) = true, want false")
	}
}

func TestToString(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"string", "hello", "hello"},
		{"whole float", 42.0, "42"},
		{"fraction", 3.5, "3.5"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"slice", []any{"a"}, "[a]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(tt.v); got != tt.want {
				t.Errorf("ToString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name   string
		v      any
		want   float64
		wantOK bool
	}{
		{"float", 10.0, 10, true},
		{"int", 7, 7, true},
		{"numeric string", "25", 25, true},
		{"text", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Number(tt.v)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Number() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPretty(t *testing.T) {
	got := Pretty(map[string]any{"a": 1.0})
	want := "{\n  \"a\": 1\n}"
	if got != want {
		t.Errorf("Pretty() = %q, want %q", got, want)
	}

	if got := Pretty(make(chan int)); got == "" {
		t.Error("Pretty() of unmarshalable value should fall back to fmt")
	}
}
