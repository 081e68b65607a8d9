package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Sink is a destination that appends rows to a named table.
//
// Each Append call is a single atomic bulk write. Implementations must not
// truncate, upsert or check for existing keys.
type Sink interface {
	Append(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Close() error
}

// FieldType represents the expected data type for a feed column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
)

// Number is a numeric feed value. Valid=false means the value was missing or
// could not be parsed.
type Number = pgtype.Float8

// HeaderIndex maps column names (lowercase) to their position in a row.
type HeaderIndex map[string]int

// Chunk is a contiguous slice of raw feed rows, in source order.
type Chunk struct {
	Index     int         // 0-based position in the feed
	FirstLine int         // 1-based source line of Rows[0]
	Header    HeaderIndex // shared by every row of the feed
	Rows      [][]string
}

// Record is one cleaned catalog row. Text fields are never missing (an absent
// value is ""), numeric fields are invalid when missing.
type Record struct {
	ProductID    string
	SkuID        string
	ProductName  string
	Description  string
	ProductURL   string
	Deeplink     string
	Availability string
	BrandName    string

	Price                  Number
	CurrentPrice           Number
	PromotionPrice         Number
	DiscountPercentage     Number
	PlatformCommissionRate Number
	ProductCommissionRate  Number
	BonusCommissionRate    Number

	ProductSmallImg  string
	ProductMediumImg string
	ProductBigImg    string
	ImageURL2        string
	ImageURL3        string
	ImageURL4        string
	ImageURL5        string

	NumberOfReviews Number
	RatingAvgValue  Number

	VentureCategory1NameEn   string
	VentureCategory2NameEn   string
	VentureCategory3NameEn   string
	VentureCategoryNameLocal string

	SellerName   string
	SellerURL    string
	SellerRating Number
	BusinessType string
	BusinessArea string
}

// CleanedChunk is the output of Clean. ProductID is unique within Records.
type CleanedChunk struct {
	Index      int
	FirstLine  int
	SourceRows int
	Columns    map[string]bool // header columns present in the feed
	Records    []Record
}

// TableRows is one table's share of a chunk, ready for a Sink.
type TableRows struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t TableRows) Len() int { return len(t.Rows) }

// Projection holds the six table views of one cleaned chunk.
type Projection struct {
	Products          TableRows
	PricingCommission TableRows
	Images            TableRows
	ReviewsRatings    TableRows
	Categories        TableRows
	Sellers           TableRows
}

// Tables returns the views in load order.
func (p Projection) Tables() []TableRows {
	return []TableRows{
		p.Products,
		p.PricingCommission,
		p.Images,
		p.ReviewsRatings,
		p.Categories,
		p.Sellers,
	}
}
