package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch is returned when the feed header lacks a column that a
// strict table requires.
var ErrSchemaMismatch = errors.New("feed schema mismatch")

// MissingColumnsError lists the columns a table needed but the feed lacked.
type MissingColumnsError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("table %s: missing required column(s) %s", e.Table, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrSchemaMismatch }

// Project maps a cleaned chunk onto the six target tables.
// The chunk is not modified.
func Project(c CleanedChunk) (Projection, error) {
	views := make(map[string]TableRows, TableCount())
	for _, def := range Tables() {
		rows, err := projectTable(def, c)
		if err != nil {
			return Projection{}, err
		}
		views[def.Name] = rows
	}

	return Projection{
		Products:          views[TableProducts],
		PricingCommission: views[TablePricingCommission],
		Images:            views[TableImages],
		ReviewsRatings:    views[TableReviewsRatings],
		Categories:        views[TableCategories],
		Sellers:           views[TableSellers],
	}, nil
}

func projectTable(def TableDef, c CleanedChunk) (TableRows, error) {
	if def.RequireColumns {
		var missing []string
		for _, col := range def.Columns {
			if !c.Columns[col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return TableRows{}, &MissingColumnsError{Table: def.Name, Columns: missing}
		}
	}

	out := TableRows{
		Table:   def.Name,
		Columns: append([]string(nil), def.Columns...),
		Rows:    make([][]any, 0, len(c.Records)),
	}

	var seen map[string]struct{}
	if def.Dedup {
		seen = make(map[string]struct{})
	}

	for i := range c.Records {
		row := make([]any, len(def.Columns))
		for j, col := range def.Columns {
			row[j], _ = c.Records[i].Value(col)
		}

		if def.Dedup {
			key := rowKey(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		out.Rows = append(out.Rows, row)
	}

	return out, nil
}

// rowKey renders a projected row for full-row equality.
func rowKey(row []any) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch val := v.(type) {
		case string:
			b.WriteString(val)
		case Number:
			b.WriteString(numberKey(val))
		default:
			fmt.Fprint(&b, val)
		}
	}
	return b.String()
}
