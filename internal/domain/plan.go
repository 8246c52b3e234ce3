package domain

// Plan is a purchasable offering assembled from the billing catalog.
// Price is in minor currency units.
type Plan struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Price              int64  `json:"price"`
	Currency           string `json:"currency"`
	Interval           string `json:"interval"`
	ProductDescription string `json:"product_description"`
	CheckoutURL        string `json:"checkout_url"`
	VariantID          string `json:"variant_id"`
	StoreID            string `json:"store_id"`
}
