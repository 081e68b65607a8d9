package core

// Table names, in load order.
const (
	TableProducts          = "products"
	TablePricingCommission = "pricing_commission"
	TableImages            = "images"
	TableReviewsRatings    = "reviews_ratings"
	TableCategories        = "categories"
	TableSellers           = "sellers"
)

func init() {
	Register(TableDef{
		Name:  TableProducts,
		Label: "Products",
		Columns: []string{
			"product_id", "sku_id", "product_name", "description",
			"product_url", "deeplink", "availability", "brand_name",
		},
		RequireColumns: true,
	})
	Register(TableDef{
		Name:  TablePricingCommission,
		Label: "Pricing & Commission",
		Columns: []string{
			"product_id", "price", "current_price", "promotion_price", "discount_percentage",
			"platform_commission_rate", "product_commission_rate", "bonus_commission_rate",
		},
		RequireColumns: true,
	})
	Register(TableDef{
		Name:  TableImages,
		Label: "Images",
		Columns: []string{
			"product_id", "product_small_img", "product_medium_img", "product_big_img",
			"image_url_2", "image_url_3", "image_url_4", "image_url_5",
		},
	})
	Register(TableDef{
		Name:    TableReviewsRatings,
		Label:   "Reviews & Ratings",
		Columns: []string{"product_id", "number_of_reviews", "rating_avg_value"},
	})
	Register(TableDef{
		Name:  TableCategories,
		Label: "Categories",
		Columns: []string{
			"product_id", "venture_category1_name_en", "venture_category2_name_en",
			"venture_category3_name_en", "venture_category_name_local",
		},
	})
	Register(TableDef{
		Name:    TableSellers,
		Label:   "Sellers",
		Columns: []string{"seller_name", "seller_url", "seller_rating", "business_type", "business_area"},
		Dedup:   true,
	})
}
