package commerce

// Product is a normalized catalog entry.
type Product struct {
	ProductID          string  `json:"product_id"`
	SKU                string  `json:"sku"`
	Name               string  `json:"name"`
	Price              float64 `json:"price"`
	OriginalPrice      float64 `json:"original_price"`
	DiscountPercentage float64 `json:"discount_percentage"`
	Brand              string  `json:"brand"`
	Rating             float64 `json:"rating,omitempty"`
	Availability       string  `json:"availability,omitempty"`
	Unit               string  `json:"unit,omitempty"`
	ImageURL           string  `json:"image_url,omitempty"`
}

// ProductPage is one page of search results.
type ProductPage struct {
	Products     []Product `json:"products"`
	TotalResults int       `json:"total_results"`
	Page         int       `json:"page"`
}

// CartLine is one line item in a cart.
type CartLine struct {
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Cart is the remote cart detail. The authoritative copy lives in the
// remote system; this is a point-in-time view.
type Cart struct {
	CartID     string     `json:"cart_id"`
	Items      []CartLine `json:"items"`
	TotalPrice float64    `json:"total_price"`
}

// LoginResult carries the token and, for the mcard path, the store view
// code the account is bound to.
type LoginResult struct {
	Token         string `json:"token"`
	StoreViewCode string `json:"store_view_code,omitempty"`
}
