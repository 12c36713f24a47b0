package contract

import (
	"context"
	"time"
)

// Message is a single entry in a conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// UserProfile is the caller-supplied customer context, cached per
// (user_id, session_id). It is never fetched from the commerce API.
type UserProfile struct {
	Name                string          `json:"name,omitempty"`
	Phone               string          `json:"phone,omitempty"`
	Address             string          `json:"address,omitempty"`
	ShoppingPreferences []string        `json:"shopping_preferences,omitempty"`
	PurchaseHistory     []PurchaseEntry `json:"purchase_history,omitempty"`
	ViewedProducts      []string        `json:"viewed_products,omitempty"`
	CartItems           []CartItem      `json:"cart_items,omitempty"`
	TrackedOrders       []TrackedOrder  `json:"tracked_orders,omitempty"`
	RecentInteractions  []string        `json:"recent_interactions,omitempty"`
}

type PurchaseEntry struct {
	Name string `json:"name"`
	Date string `json:"date,omitempty"`
}

type CartItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type TrackedOrder struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Date    string `json:"date,omitempty"`
}

// Responder is the language-model boundary. Respond returns the full reply;
// RespondStream emits incremental chunks through the callback before
// returning the assembled reply.
type Responder interface {
	Respond(ctx context.Context, messages []Message) (Reply, error)
	RespondStream(ctx context.Context, messages []Message, emit func(chunk string)) (Reply, error)
}

// Reply is the model output plus usage accounting.
type Reply struct {
	Content    string
	TokensUsed int64
	ModelName  string
}
