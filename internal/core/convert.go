package core

// convert.go turns raw feed cells into typed values.
//
// Coercion never fails loudly: a cell that cannot be read as a number becomes
// an invalid Number, which every sink stores as NULL.

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber converts a cell to a Number.
// Returns an invalid Number for empty, non-numeric, NaN or infinite input.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{Valid: false}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{Valid: false}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{Valid: false}
	}

	return Number{Float64: f, Valid: true}
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are trimmed and lowercased for case-insensitive matching. When a name
// repeats, the first position wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// getCell returns the raw value of column name in row, or "" when the column
// is absent from the header or the row is too short.
func getCell(row []string, idx HeaderIndex, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// numberKey renders a Number for equality keys.
func numberKey(n Number) string {
	if !n.Valid {
		return "\x00"
	}
	return strconv.FormatFloat(n.Float64, 'g', -1, 64)
}
