package core

// cleaner.go normalizes one raw chunk into typed records.
//
// Clean is a pure function: it never mutates the input chunk and gives the
// same output for the same input. The steps run in a fixed order:
//
//  1. Absent values become "" (text) or invalid (numeric)
//  2. Text values are whitespace-trimmed
//  3. Numeric columns are coerced; bad input becomes missing, never an error
//  4. Rows are deduplicated by product_id, first occurrence wins
//
// Rows with a blank product_id are kept; they dedup against each other.

import "strings"

// Clean normalizes a raw chunk.
func Clean(c Chunk) CleanedChunk {
	records := make([]Record, 0, len(c.Rows))
	for _, row := range c.Rows {
		records = append(records, cleanRow(row, c.Header))
	}

	columns := make(map[string]bool, len(c.Header))
	for name := range c.Header {
		columns[name] = true
	}

	return CleanedChunk{
		Index:      c.Index,
		FirstLine:  c.FirstLine,
		SourceRows: len(c.Rows),
		Columns:    columns,
		Records:    dedupByProductID(records),
	}
}

// CleanRecords re-applies trimming and dedup to already typed records and
// returns a new slice. CleanRecords(Clean(c).Records) equals Clean(c).Records.
func CleanRecords(in []Record) []Record {
	out := make([]Record, len(in))
	for i, rec := range in {
		for _, f := range fieldSpecs {
			if f.Type == FieldText {
				p := f.text(&rec)
				*p = strings.TrimSpace(*p)
			}
		}
		out[i] = rec
	}
	return dedupByProductID(out)
}

func cleanRow(row []string, idx HeaderIndex) Record {
	var rec Record
	for _, f := range fieldSpecs {
		raw := getCell(row, idx, f.Name)
		switch f.Type {
		case FieldNumeric:
			*f.num(&rec) = ParseNumber(raw)
		default:
			*f.text(&rec) = strings.TrimSpace(raw)
		}
	}
	return rec
}

// dedupByProductID keeps the first record for each product id, preserving
// source order.
func dedupByProductID(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ProductID]; dup {
			continue
		}
		seen[rec.ProductID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
