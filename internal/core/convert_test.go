package core

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      float64
		wantValid bool
	}{
		{name: "decimal", input: "12.5", want: 12.5, wantValid: true},
		{name: "integer", input: "42", want: 42, wantValid: true},
		{name: "negative", input: "-3.25", want: -3.25, wantValid: true},
		{name: "surrounding whitespace", input: "  7.0 ", want: 7, wantValid: true},
		{name: "scientific notation", input: "1e3", want: 1000, wantValid: true},
		{name: "text is missing", input: "abc", wantValid: false},
		{name: "empty is missing", input: "", wantValid: false},
		{name: "whitespace only is missing", input: "   ", wantValid: false},
		{name: "NaN is missing", input: "NaN", wantValid: false},
		{name: "infinity is missing", input: "Inf", wantValid: false},
		{name: "trailing garbage is missing", input: "12.5%", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNumber(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ParseNumber(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid && got.Float64 != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got.Float64, tt.want)
			}
		})
	}
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{" Product_ID ", "sku_id", "PRICE", "sku_id"})

	tests := []struct {
		key  string
		want int
	}{
		{"product_id", 0},
		{"sku_id", 1},
		{"price", 2},
	}
	for _, tt := range tests {
		got, ok := idx[tt.key]
		if !ok {
			t.Errorf("key %q not found", tt.key)
			continue
		}
		if got != tt.want {
			t.Errorf("idx[%q] = %d, want %d", tt.key, got, tt.want)
		}
	}
	if len(idx) != 3 {
		t.Errorf("len(idx) = %d, want 3", len(idx))
	}
}

func TestGetCell(t *testing.T) {
	idx := HeaderIndex{"a": 0, "b": 1, "c": 5}
	row := []string{"x", "y"}

	if got := getCell(row, idx, "a"); got != "x" {
		t.Errorf("getCell(a) = %q, want x", got)
	}
	if got := getCell(row, idx, "c"); got != "" {
		t.Errorf("getCell past row end = %q, want empty", got)
	}
	if got := getCell(row, idx, "missing"); got != "" {
		t.Errorf("getCell(missing) = %q, want empty", got)
	}
}
