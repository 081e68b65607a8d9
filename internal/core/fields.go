package core

// FieldSpec binds a feed column to a Record field.
type FieldSpec struct {
	Name string // Column header name, lowercase
	Type FieldType

	text func(*Record) *string
	num  func(*Record) *Number
}

// fieldSpecs lists every feed column the loader understands, in feed order.
var fieldSpecs = []FieldSpec{
	textField("product_id", func(r *Record) *string { return &r.ProductID }),
	textField("sku_id", func(r *Record) *string { return &r.SkuID }),
	textField("product_name", func(r *Record) *string { return &r.ProductName }),
	textField("description", func(r *Record) *string { return &r.Description }),
	textField("product_url", func(r *Record) *string { return &r.ProductURL }),
	textField("deeplink", func(r *Record) *string { return &r.Deeplink }),
	textField("availability", func(r *Record) *string { return &r.Availability }),
	textField("brand_name", func(r *Record) *string { return &r.BrandName }),

	numField("price", func(r *Record) *Number { return &r.Price }),
	numField("current_price", func(r *Record) *Number { return &r.CurrentPrice }),
	numField("promotion_price", func(r *Record) *Number { return &r.PromotionPrice }),
	numField("discount_percentage", func(r *Record) *Number { return &r.DiscountPercentage }),
	numField("platform_commission_rate", func(r *Record) *Number { return &r.PlatformCommissionRate }),
	numField("product_commission_rate", func(r *Record) *Number { return &r.ProductCommissionRate }),
	numField("bonus_commission_rate", func(r *Record) *Number { return &r.BonusCommissionRate }),

	textField("product_small_img", func(r *Record) *string { return &r.ProductSmallImg }),
	textField("product_medium_img", func(r *Record) *string { return &r.ProductMediumImg }),
	textField("product_big_img", func(r *Record) *string { return &r.ProductBigImg }),
	textField("image_url_2", func(r *Record) *string { return &r.ImageURL2 }),
	textField("image_url_3", func(r *Record) *string { return &r.ImageURL3 }),
	textField("image_url_4", func(r *Record) *string { return &r.ImageURL4 }),
	textField("image_url_5", func(r *Record) *string { return &r.ImageURL5 }),

	numField("number_of_reviews", func(r *Record) *Number { return &r.NumberOfReviews }),
	numField("rating_avg_value", func(r *Record) *Number { return &r.RatingAvgValue }),

	textField("venture_category1_name_en", func(r *Record) *string { return &r.VentureCategory1NameEn }),
	textField("venture_category2_name_en", func(r *Record) *string { return &r.VentureCategory2NameEn }),
	textField("venture_category3_name_en", func(r *Record) *string { return &r.VentureCategory3NameEn }),
	textField("venture_category_name_local", func(r *Record) *string { return &r.VentureCategoryNameLocal }),

	textField("seller_name", func(r *Record) *string { return &r.SellerName }),
	textField("seller_url", func(r *Record) *string { return &r.SellerURL }),
	numField("seller_rating", func(r *Record) *Number { return &r.SellerRating }),
	textField("business_type", func(r *Record) *string { return &r.BusinessType }),
	textField("business_area", func(r *Record) *string { return &r.BusinessArea }),
}

var fieldsByName = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(fieldSpecs))
	for _, f := range fieldSpecs {
		m[f.Name] = f
	}
	return m
}()

func textField(name string, get func(*Record) *string) FieldSpec {
	return FieldSpec{Name: name, Type: FieldText, text: get}
}

func numField(name string, get func(*Record) *Number) FieldSpec {
	return FieldSpec{Name: name, Type: FieldNumeric, num: get}
}

// FieldSpecs returns the known feed columns in feed order.
func FieldSpecs() []FieldSpec {
	out := make([]FieldSpec, len(fieldSpecs))
	copy(out, fieldSpecs)
	return out
}

// NumericColumns returns the names of the columns coerced to numbers.
func NumericColumns() []string {
	var out []string
	for _, f := range fieldSpecs {
		if f.Type == FieldNumeric {
			out = append(out, f.Name)
		}
	}
	return out
}

// Value returns the value of column name as a sink-ready value: a string for
// text columns, a Number for numeric ones. ok is false for unknown columns.
func (r *Record) Value(name string) (v any, ok bool) {
	f, ok := fieldsByName[name]
	if !ok {
		return nil, false
	}
	if f.Type == FieldNumeric {
		return *f.num(r), true
	}
	return *f.text(r), true
}
