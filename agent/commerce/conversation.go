package commerce

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Conversation is the cart-scoped view of the Client for one conversation.
// It owns the "current cart" reference; the authoritative cart lives in the
// remote system and this reference is dropped whenever the remote reports
// the cart missing.
type Conversation struct {
	client *Client
	id     string

	mu     sync.Mutex
	cartID string
}

// CartID returns the current cart reference, or "" if none.
func (v *Conversation) CartID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cartID
}

// AdoptCart seeds the cart reference, typically restored from a persisted
// session snapshot.
func (v *Conversation) AdoptCart(cartID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cartID = strings.TrimSpace(cartID)
}

func (v *Conversation) setCart(cartID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cartID = cartID
}

func (v *Conversation) clearCart() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cartID = ""
}

// CreateCart creates a cart remotely and adopts it as the current
// reference. Guest carts need no token; customer carts require a cached
// login token.
func (v *Conversation) CreateCart(ctx context.Context, guest bool) (string, error) {
	cartID, err := v.createCartRemote(ctx, guest)
	if err != nil {
		return "", err
	}
	v.setCart(cartID)
	return cartID, nil
}

func (v *Conversation) createCartRemote(ctx context.Context, guest bool) (string, error) {
	if guest {
		data, err := v.client.execute(ctx, "create_cart", createGuestCartMutation, nil)
		if err != nil {
			return "", err
		}
		var payload struct {
			CreateEmptyCart string `json:"createEmptyCart"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", newError(CodeInvalidResponse, "decode create cart response: %v", err)
		}
		if payload.CreateEmptyCart == "" {
			return "", newError(CodeInvalidResponse, "create cart returned no id")
		}
		return payload.CreateEmptyCart, nil
	}

	if token, _ := v.client.authContext(); token == "" {
		return "", newError(CodeMissingToken, "customer cart requires login")
	}
	data, err := v.client.execute(ctx, "create_cart", customerCartQuery, nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		CustomerCart struct {
			ID string `json:"id"`
		} `json:"customerCart"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", newError(CodeInvalidResponse, "decode customer cart response: %v", err)
	}
	if payload.CustomerCart.ID == "" {
		return "", newError(CodeInvalidResponse, "customer cart returned no id")
	}
	return payload.CustomerCart.ID, nil
}

// AddToCart adds quantity units of sku to the conversation's cart, creating
// a cart first if none exists. A vanished cart is recreated once and the
// add retried against the new cart; an unknown SKU is re-resolved through
// the catalog once. Either repair consumes one of the maxAttempts retries.
// Pass maxAttempts <= 0 for the client default.
func (v *Conversation) AddToCart(ctx context.Context, sku string, quantity int, maxAttempts int) (*Cart, error) {
	if maxAttempts <= 0 {
		maxAttempts = v.client.maxAttempts
	}
	if quantity <= 0 {
		quantity = 1
	}

	cartRepaired := false
	skuResolved := false
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := ExponentialBackoff(attempt-1, v.client.backoffBase, v.client.backoffCap)
			if err := v.client.sleep(ctx, delay); err != nil {
				return nil, newError(CodeHTTPError, "add to cart cancelled: %v", err)
			}
		}

		cartID := v.CartID()
		if cartID == "" {
			created, err := v.CreateCart(ctx, true)
			if err != nil {
				return nil, err
			}
			cartID = created
		}

		cart, err := v.addProducts(ctx, cartID, sku, quantity)
		if err == nil {
			v.setCart(cart.CartID)
			return cart, nil
		}
		lastErr = err

		switch CodeOf(err) {
		case CodeCartNotFound:
			if cartRepaired {
				return nil, err
			}
			cartRepaired = true
			v.clearCart()
			log.Warn().
				Str("conversation_id", v.id).
				Str("cart_id", cartID).
				Msg("cart vanished remotely, recreating and retrying")
			continue
		case CodeProductNotFound:
			if skuResolved {
				return nil, err
			}
			skuResolved = true
			resolved, rerr := v.client.ProductBySKU(ctx, sku)
			if rerr != nil || resolved.SKU == "" || resolved.SKU == sku {
				return nil, err
			}
			log.Info().
				Str("conversation_id", v.id).
				Str("requested_sku", sku).
				Str("resolved_sku", resolved.SKU).
				Msg("resolved alternate sku for cart add")
			sku = resolved.SKU
			continue
		default:
			return nil, err
		}
	}

	return nil, newError(CodeMaxRetriesExceeded, "add to cart failed after %d attempts: %v", maxAttempts, lastErr)
}

func (v *Conversation) addProducts(ctx context.Context, cartID, sku string, quantity int) (*Cart, error) {
	data, err := v.client.execute(ctx, "add_to_cart", addToCartMutation, map[string]any{
		"cartId":   cartID,
		"sku":      sku,
		"quantity": quantity,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		AddProductsToCart struct {
			Cart remoteCart `json:"cart"`
		} `json:"addProductsToCart"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(CodeInvalidResponse, "decode add to cart response: %v", err)
	}

	cart := payload.AddProductsToCart.Cart.normalize()
	if cart.CartID == "" {
		cart.CartID = cartID
	}
	return &cart, nil
}

// CartSnapshot fetches the full cart detail. If the remote no longer knows
// the cart, the local reference is cleared before the error is returned so
// the next cart operation starts fresh.
func (v *Conversation) CartSnapshot(ctx context.Context) (*Cart, error) {
	cartID := v.CartID()
	if cartID == "" {
		return nil, newError(CodeMissingCartID, "no cart for conversation %s", v.id)
	}

	data, err := v.client.execute(ctx, "get_cart_info", cartDetailQuery, map[string]any{
		"cartId": cartID,
	})
	if err != nil {
		if CodeOf(err) == CodeCartNotFound {
			v.clearCart()
		}
		return nil, err
	}

	var payload struct {
		Cart remoteCart `json:"cart"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(CodeInvalidResponse, "decode cart response: %v", err)
	}
	if payload.Cart.ID == "" {
		v.clearCart()
		return nil, newError(CodeCartNotFound, "cart %s no longer exists", cartID)
	}

	cart := payload.Cart.normalize()
	return &cart, nil
}

// remoteCart is the gateway's cart shape.
type remoteCart struct {
	ID    string `json:"id"`
	Items []struct {
		Product struct {
			Name string `json:"name"`
			SKU  string `json:"sku"`
		} `json:"product"`
		Quantity float64 `json:"quantity"`
		Prices   struct {
			Price struct {
				Value float64 `json:"value"`
			} `json:"price"`
		} `json:"prices"`
	} `json:"items"`
	Prices struct {
		GrandTotal struct {
			Value float64 `json:"value"`
		} `json:"grand_total"`
	} `json:"prices"`
}

func (rc remoteCart) normalize() Cart {
	cart := Cart{
		CartID:     rc.ID,
		Items:      make([]CartLine, 0, len(rc.Items)),
		TotalPrice: rc.Prices.GrandTotal.Value,
	}
	for _, item := range rc.Items {
		cart.Items = append(cart.Items, CartLine{
			Name:     item.Product.Name,
			SKU:      item.Product.SKU,
			Quantity: int(item.Quantity),
			Price:    item.Prices.Price.Value,
		})
	}
	return cart
}
