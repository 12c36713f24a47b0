// Package commerce is the resilient client for the remote commerce API.
// Every operation returns a tagged *Error on failure; transport-level
// failures are retried with capped exponential backoff, and cart writes
// recover once from a vanished cart or an unknown SKU before giving up.
package commerce

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	metricsx "github.com/vndang/shoptalk/pkg/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 8 * time.Second
)

type Config struct {
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	StoreCode   string        `envconfig:"STORE_CODE" split_words:"true" default:"default"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	BackoffBase time.Duration `envconfig:"BACKOFF_BASE" split_words:"true" default:"500ms"`
	BackoffCap  time.Duration `envconfig:"BACKOFF_CAP" split_words:"true" default:"8s"`
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides the inter-attempt delay, used by tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithMetrics(m *metricsx.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client talks to the commerce GraphQL gateway. One Client is shared by all
// conversations; per-conversation cart state lives on the Conversation
// handles it hands out, never on the Client itself.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	metrics     *metricsx.Metrics

	mu            sync.RWMutex
	token         string
	storeViewCode string

	convMu        sync.Mutex
	conversations map[string]*Conversation
}

func New(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("commerce base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	backoffCap := cfg.BackoffCap
	if backoffCap <= 0 {
		backoffCap = defaultBackoffCap
	}

	c := &Client{
		endpoint:      baseURL + "/graphql",
		httpClient:    &http.Client{Timeout: timeout},
		maxAttempts:   maxAttempts,
		backoffBase:   backoffBase,
		backoffCap:    backoffCap,
		sleep:         sleepContext,
		storeViewCode: strings.TrimSpace(cfg.StoreCode),
		conversations: make(map[string]*Conversation),
	}
	if c.storeViewCode == "" {
		c.storeViewCode = "default"
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Conversation returns the cart-scoped handle for conversationID, creating
// it on first use. All cart operations go through the handle so one
// conversation's cart never leaks into another.
func (c *Client) Conversation(conversationID string) *Conversation {
	c.convMu.Lock()
	defer c.convMu.Unlock()
	conv, ok := c.conversations[conversationID]
	if !ok {
		conv = &Conversation{client: c, id: conversationID}
		c.conversations[conversationID] = conv
	}
	return conv
}

// DropConversation forgets the cart handle for a reset conversation.
func (c *Client) DropConversation(conversationID string) {
	c.convMu.Lock()
	defer c.convMu.Unlock()
	delete(c.conversations, conversationID)
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) setStoreViewCode(code string) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return
	}
	c.mu.Lock()
	c.storeViewCode = trimmed
	c.mu.Unlock()
}

func (c *Client) authContext() (token, storeCode string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.storeViewCode
}

// ExponentialBackoff returns the delay before retry number attempt
// (0-based): base doubled per attempt, capped.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}

// IsRetryableHTTPStatus reports whether a status is worth retrying:
// throttling and transient upstream failures.
func IsRetryableHTTPStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
