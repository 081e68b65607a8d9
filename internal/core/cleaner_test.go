package core

import (
	"reflect"
	"testing"
)

// feedHeader returns every known column, in feed order.
func feedHeader() []string {
	specs := FieldSpecs()
	names := make([]string, len(specs))
	for i, f := range specs {
		names[i] = f.Name
	}
	return names
}

// feedRow builds a full-width row from column/value pairs.
func feedRow(header []string, kv map[string]string) []string {
	row := make([]string, len(header))
	for i, name := range header {
		row[i] = kv[name]
	}
	return row
}

func testChunk(header []string, rows ...[]string) Chunk {
	return Chunk{
		Index:     0,
		FirstLine: 2,
		Header:    MakeHeaderIndex(header),
		Rows:      rows,
	}
}

func TestClean_FillsMissingAndTrims(t *testing.T) {
	header := []string{"product_id", "product_name", "price", "seller_name"}
	chunk := testChunk(header,
		[]string{" p1 ", "  Widget  ", " 12.5 ", "\tAcme\n"},
		[]string{"p2"}, // short row
	)

	got := Clean(chunk)

	if len(got.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(got.Records))
	}

	r := got.Records[0]
	if r.ProductID != "p1" || r.ProductName != "Widget" || r.SellerName != "Acme" {
		t.Errorf("record not trimmed: %+v", r)
	}
	if !r.Price.Valid || r.Price.Float64 != 12.5 {
		t.Errorf("Price = %+v, want 12.5", r.Price)
	}

	short := got.Records[1]
	if short.ProductName != "" || short.SellerName != "" {
		t.Errorf("short row should materialize empty strings, got %+v", short)
	}
	if short.Price.Valid {
		t.Errorf("short row Price should be missing")
	}

	// Columns absent from the header are empty too.
	if r.BrandName != "" || r.Description != "" {
		t.Errorf("absent columns should be empty, got %+v", r)
	}
}

func TestClean_NoMissingTextCells(t *testing.T) {
	header := feedHeader()
	chunk := testChunk(header,
		feedRow(header, map[string]string{"product_id": "1"}),
		[]string{"2", "sku"},
		[]string{},
	)

	for _, rec := range Clean(chunk).Records {
		for _, f := range FieldSpecs() {
			v, _ := rec.Value(f.Name)
			switch f.Type {
			case FieldText:
				if _, ok := v.(string); !ok {
					t.Errorf("column %s: got %T, want string", f.Name, v)
				}
			case FieldNumeric:
				if _, ok := v.(Number); !ok {
					t.Errorf("column %s: got %T, want Number", f.Name, v)
				}
			}
		}
	}
}

func TestClean_CoercionNeverFails(t *testing.T) {
	header := []string{"product_id", "price", "rating_avg_value", "number_of_reviews", "seller_rating"}
	chunk := testChunk(header,
		[]string{"1", "abc", "", "N/A", "4.5"},
	)

	r := Clean(chunk).Records[0]
	if r.Price.Valid || r.RatingAvgValue.Valid || r.NumberOfReviews.Valid {
		t.Errorf("unparsable numerics should be missing: %+v", r)
	}
	if !r.SellerRating.Valid || r.SellerRating.Float64 != 4.5 {
		t.Errorf("SellerRating = %+v, want 4.5", r.SellerRating)
	}
}

func TestClean_DedupFirstWins(t *testing.T) {
	header := []string{"product_id", "product_name"}
	chunk := testChunk(header,
		[]string{"a", "first"},
		[]string{"b", "other"},
		[]string{"a", "second"},
		[]string{" a", "third"}, // equal after trimming
	)

	got := Clean(chunk)

	if len(got.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(got.Records))
	}
	if got.Records[0].ProductName != "first" {
		t.Errorf("first occurrence should win, got %q", got.Records[0].ProductName)
	}
	if got.Records[1].ProductID != "b" {
		t.Errorf("source order not preserved: %q", got.Records[1].ProductID)
	}
	if got.SourceRows != 4 {
		t.Errorf("SourceRows = %d, want 4", got.SourceRows)
	}
}

func TestClean_BlankIDsCollapse(t *testing.T) {
	header := []string{"product_id", "product_name"}
	chunk := testChunk(header,
		[]string{"", "x"},
		[]string{"  ", "y"},
		[]string{"1", "z"},
	)

	got := Clean(chunk)
	if len(got.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(got.Records))
	}
	if got.Records[0].ProductID != "" || got.Records[0].ProductName != "x" {
		t.Errorf("blank id row should be kept once, got %+v", got.Records[0])
	}
}

func TestClean_UniqueProductIDs(t *testing.T) {
	header := []string{"product_id"}
	var rows [][]string
	for i := 0; i < 500; i++ {
		rows = append(rows, []string{string(rune('a' + i%7))})
	}

	seen := make(map[string]bool)
	for _, r := range Clean(testChunk(header, rows...)).Records {
		if seen[r.ProductID] {
			t.Fatalf("duplicate product_id %q", r.ProductID)
		}
		seen[r.ProductID] = true
	}
	if len(seen) != 7 {
		t.Errorf("unique ids = %d, want 7", len(seen))
	}
}

func TestClean_Idempotent(t *testing.T) {
	header := feedHeader()
	chunk := testChunk(header,
		feedRow(header, map[string]string{"product_id": "1", "product_name": " A ", "price": "3"}),
		feedRow(header, map[string]string{"product_id": "1", "product_name": "dup"}),
		feedRow(header, map[string]string{"product_id": "2", "price": "bad"}),
	)

	once := Clean(chunk).Records
	twice := CleanRecords(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("CleanRecords(Clean(c)) != Clean(c)\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	header := []string{"product_id", "product_name"}
	rows := [][]string{{" 1 ", " name "}, {" 1 ", "dup"}}
	chunk := testChunk(header, rows...)

	_ = Clean(chunk)

	if rows[0][0] != " 1 " || rows[0][1] != " name " || len(chunk.Rows) != 2 {
		t.Errorf("input chunk was modified: %q", rows)
	}
}

func TestClean_Deterministic(t *testing.T) {
	header := feedHeader()
	chunk := testChunk(header,
		feedRow(header, map[string]string{"product_id": "9", "seller_name": "s", "price": "1.5"}),
		feedRow(header, map[string]string{"product_id": "8", "seller_name": "s", "price": "x"}),
	)

	if !reflect.DeepEqual(Clean(chunk), Clean(chunk)) {
		t.Error("Clean is not deterministic")
	}
}
