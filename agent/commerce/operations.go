package commerce

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// remoteProduct is the gateway's catalog item shape. IDs arrive as numbers
// or strings depending on gateway version, so decode loosely.
type remoteProduct struct {
	ID            json.Number `json:"id"`
	SKU           string      `json:"sku"`
	Name          string      `json:"name"`
	Brand         string      `json:"brand"`
	Price         float64     `json:"price"`
	OriginalPrice float64     `json:"original_price"`
	Rating        float64     `json:"rating"`
	Availability  string      `json:"availability"`
	Unit          string      `json:"unit"`
	ImageURL      string      `json:"image_url"`
}

func (rp remoteProduct) normalize() Product {
	p := Product{
		ProductID:     rp.ID.String(),
		SKU:           rp.SKU,
		Name:          rp.Name,
		Brand:         rp.Brand,
		Price:         rp.Price,
		OriginalPrice: rp.OriginalPrice,
		Rating:        rp.Rating,
		Availability:  rp.Availability,
		Unit:          rp.Unit,
		ImageURL:      rp.ImageURL,
	}
	if p.OriginalPrice == 0 {
		p.OriginalPrice = p.Price
	}
	if p.OriginalPrice > 0 && p.OriginalPrice > p.Price {
		p.DiscountPercentage = (p.OriginalPrice - p.Price) / p.OriginalPrice * 100
	}
	if strings.TrimSpace(p.Brand) == "" {
		p.Brand = "No brand"
	}
	return p
}

type productsPayload struct {
	Products struct {
		TotalCount int             `json:"total_count"`
		Items      []remoteProduct `json:"items"`
	} `json:"products"`
}

// Search runs a catalog search and returns one page of results.
func (c *Client) Search(ctx context.Context, query string, pageSize, page int) (*ProductPage, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page <= 0 {
		page = 1
	}

	data, err := c.execute(ctx, "search_products", searchProductsQuery, map[string]any{
		"search":      query,
		"pageSize":    pageSize,
		"currentPage": page,
	})
	if err != nil {
		return nil, err
	}

	var payload productsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(CodeInvalidResponse, "decode search response: %v", err)
	}

	out := &ProductPage{
		Products:     make([]Product, 0, len(payload.Products.Items)),
		TotalResults: payload.Products.TotalCount,
		Page:         page,
	}
	for _, item := range payload.Products.Items {
		out.Products = append(out.Products, item.normalize())
	}
	return out, nil
}

// ProductBySKU fetches a single product by its SKU.
func (c *Client) ProductBySKU(ctx context.Context, sku string) (*Product, error) {
	return c.singleProduct(ctx, "get_product_by_sku", productBySKUQuery, map[string]any{"sku": sku})
}

// ProductByArtNo fetches a single product by its article number.
func (c *Client) ProductByArtNo(ctx context.Context, artNo string) (*Product, error) {
	return c.singleProduct(ctx, "get_product_by_art_no", productByArtNoQuery, map[string]any{"artNo": artNo})
}

func (c *Client) singleProduct(ctx context.Context, operation, query string, variables map[string]any) (*Product, error) {
	data, err := c.execute(ctx, operation, query, variables)
	if err != nil {
		return nil, err
	}

	var payload productsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(CodeInvalidResponse, "decode %s response: %v", operation, err)
	}
	if len(payload.Products.Items) == 0 {
		return nil, newError(CodeProductNotFound, "no product matched %v", variables)
	}

	product := payload.Products.Items[0].normalize()
	return &product, nil
}

// Login exchanges credentials for a customer token and caches it for
// subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	data, err := c.execute(ctx, "login", loginMutation, map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		GenerateCustomerToken struct {
			Token string `json:"token"`
		} `json:"generateCustomerToken"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", newError(CodeInvalidResponse, "decode login response: %v", err)
	}
	token := strings.TrimSpace(payload.GenerateCustomerToken.Token)
	if token == "" {
		return "", newError(CodeMissingToken, "login returned no token")
	}

	c.setToken(token)
	return token, nil
}

// LoginWithMcard authenticates by membership card. On success the token is
// cached and the account's store view code becomes the active store
// context. A response carrying a store view code but a null token means the
// card exists without a linked account.
func (c *Client) LoginWithMcard(ctx context.Context, cardNumber string) (*LoginResult, error) {
	data, err := c.execute(ctx, "login_with_mcard", mcardLoginMutation, map[string]any{
		"cardNumber": cardNumber,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		GenerateCustomerTokenMcard struct {
			Token         *string `json:"token"`
			StoreViewCode string  `json:"store_view_code"`
		} `json:"generateCustomerTokenMcard"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(CodeInvalidResponse, "decode mcard login response: %v", err)
	}

	result := payload.GenerateCustomerTokenMcard
	if result.Token == nil || strings.TrimSpace(*result.Token) == "" {
		if strings.TrimSpace(result.StoreViewCode) != "" {
			c.setStoreViewCode(result.StoreViewCode)
			return nil, newError(CodeNoAccount, "membership card has no linked account")
		}
		return nil, newError(CodeMissingToken, "mcard login returned no token")
	}

	c.setToken(strings.TrimSpace(*result.Token))
	c.setStoreViewCode(result.StoreViewCode)

	return &LoginResult{
		Token:         strings.TrimSpace(*result.Token),
		StoreViewCode: strings.TrimSpace(result.StoreViewCode),
	}, nil
}

// TokenLifetime reports how long customer tokens stay valid, from the store
// configuration.
func (c *Client) TokenLifetime(ctx context.Context) (time.Duration, error) {
	data, err := c.execute(ctx, "get_token_lifetime", storeConfigQuery, nil)
	if err != nil {
		return 0, err
	}

	var payload struct {
		StoreConfig struct {
			CustomerAccessTokenLifetime float64 `json:"customer_access_token_lifetime"`
		} `json:"storeConfig"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, newError(CodeInvalidResponse, "decode store config response: %v", err)
	}

	hours := payload.StoreConfig.CustomerAccessTokenLifetime
	return time.Duration(hours * float64(time.Hour)), nil
}
