package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestProject_SixTablesInLoadOrder(t *testing.T) {
	header := feedHeader()
	cleaned := Clean(testChunk(header,
		feedRow(header, map[string]string{"product_id": "1", "seller_name": "s1"}),
		feedRow(header, map[string]string{"product_id": "2", "seller_name": "s2"}),
	))

	p, err := Project(cleaned)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	want := []string{TableProducts, TablePricingCommission, TableImages, TableReviewsRatings, TableCategories, TableSellers}
	var got []string
	for _, tbl := range p.Tables() {
		got = append(got, tbl.Table)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tables = %v, want %v", got, want)
	}

	for _, tbl := range p.Tables() {
		def, _ := Get(tbl.Table)
		if !reflect.DeepEqual(tbl.Columns, def.Columns) {
			t.Errorf("%s columns = %v, want %v", tbl.Table, tbl.Columns, def.Columns)
		}
		for _, row := range tbl.Rows {
			if len(row) != len(def.Columns) {
				t.Errorf("%s row width = %d, want %d", tbl.Table, len(row), len(def.Columns))
			}
		}
	}
}

func TestProject_PreservesProductKeys(t *testing.T) {
	header := feedHeader()
	cleaned := Clean(testChunk(header,
		feedRow(header, map[string]string{"product_id": "a"}),
		feedRow(header, map[string]string{"product_id": "b"}),
		feedRow(header, map[string]string{"product_id": "a"}),
		feedRow(header, map[string]string{"product_id": "c"}),
	))

	ids := make(map[string]bool)
	for _, r := range cleaned.Records {
		ids[r.ProductID] = true
	}

	p, err := Project(cleaned)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	for _, tbl := range []TableRows{p.Products, p.PricingCommission, p.Images, p.ReviewsRatings, p.Categories} {
		if tbl.Columns[0] != "product_id" {
			t.Fatalf("%s: first column = %q, want product_id", tbl.Table, tbl.Columns[0])
		}
		if tbl.Len() != len(cleaned.Records) {
			t.Errorf("%s rows = %d, want %d (1:1 with cleaned rows)", tbl.Table, tbl.Len(), len(cleaned.Records))
		}
		for _, row := range tbl.Rows {
			id, ok := row[0].(string)
			if !ok || !ids[id] {
				t.Errorf("%s: product_id %v not in cleaned chunk", tbl.Table, row[0])
			}
		}
	}
}

func TestProject_SellersDedupWithinChunk(t *testing.T) {
	header := feedHeader()
	seller := map[string]string{
		"seller_name": "Acme", "seller_url": "https://acme", "seller_rating": "90",
		"business_type": "mall", "business_area": "ID",
	}
	with := func(id string, kv map[string]string) []string {
		m := map[string]string{"product_id": id}
		for k, v := range kv {
			m[k] = v
		}
		return feedRow(header, m)
	}
	other := map[string]string{"seller_name": "Acme", "seller_url": "https://acme", "seller_rating": "91"}

	cleaned := Clean(testChunk(header,
		with("1", seller),
		with("2", seller),
		with("3", other),
		with("4", map[string]string{"seller_rating": "n/a"}),
		with("5", map[string]string{"seller_rating": ""}),
	))

	p, err := Project(cleaned)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	if p.Sellers.Len() > len(cleaned.Records) {
		t.Errorf("sellers rows %d > cleaned rows %d", p.Sellers.Len(), len(cleaned.Records))
	}
	// Acme/90, Acme/91, and one empty seller (n/a and "" both coerce to missing).
	if p.Sellers.Len() != 3 {
		t.Errorf("sellers rows = %d, want 3", p.Sellers.Len())
	}

	seen := make(map[string]bool)
	for _, row := range p.Sellers.Rows {
		k := rowKey(row)
		if seen[k] {
			t.Errorf("duplicate seller row %v", row)
		}
		seen[k] = true
	}
}

func TestProject_MissingColumns(t *testing.T) {
	tests := []struct {
		name      string
		header    []string
		wantErr   bool
		wantTable string
	}{
		{
			name:    "full header",
			header:  feedHeader(),
			wantErr: false,
		},
		{
			name:      "products column missing",
			header:    without(feedHeader(), "brand_name"),
			wantErr:   true,
			wantTable: TableProducts,
		},
		{
			name:      "pricing column missing",
			header:    without(feedHeader(), "bonus_commission_rate"),
			wantErr:   true,
			wantTable: TablePricingCommission,
		},
		{
			name:    "image column missing is tolerated",
			header:  without(feedHeader(), "image_url_5"),
			wantErr: false,
		},
		{
			name:    "seller columns missing are tolerated",
			header:  without(feedHeader(), "seller_url", "business_area"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := make([]string, len(tt.header))
			_, err := Project(Clean(testChunk(tt.header, row)))

			if (err != nil) != tt.wantErr {
				t.Fatalf("Project() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Errorf("error should wrap ErrSchemaMismatch: %v", err)
			}
			var mc *MissingColumnsError
			if !errors.As(err, &mc) {
				t.Fatalf("error should be *MissingColumnsError: %T", err)
			}
			if mc.Table != tt.wantTable {
				t.Errorf("Table = %q, want %q", mc.Table, tt.wantTable)
			}
		})
	}
}

func TestProject_ToleratedColumnsAreEmpty(t *testing.T) {
	header := without(feedHeader(), "image_url_5", "seller_rating")
	kv := map[string]string{"product_id": "1", "image_url_2": "https://img/2"}

	p, err := Project(Clean(testChunk(header, feedRow(header, kv))))
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	img := p.Images.Rows[0]
	if img[len(img)-1] != "" {
		t.Errorf("image_url_5 = %v, want empty", img[len(img)-1])
	}
	rating, ok := p.Sellers.Rows[0][2].(Number)
	if !ok || rating.Valid {
		t.Errorf("seller_rating = %v, want missing Number", p.Sellers.Rows[0][2])
	}
}

func without(cols []string, drop ...string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	var out []string
	for _, c := range cols {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}
