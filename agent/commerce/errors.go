package commerce

import (
	"errors"
	"fmt"
	"strings"
)

// Machine error codes surfaced to callers. Remote failures never escape the
// client as anything other than an *Error carrying one of these.
const (
	CodeHTTPError          = "HTTP_ERROR"
	CodeInvalidResponse    = "INVALID_RESPONSE"
	CodeGraphQLError       = "GRAPHQL_ERROR"
	CodeCartNotFound       = "CART_NOT_FOUND"
	CodeProductNotFound    = "PRODUCT_NOT_FOUND"
	CodeMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
	CodeMissingToken       = "MISSING_TOKEN"
	CodeMissingCartID      = "MISSING_CART_ID"
	CodeNoAccount          = "NO_ACCOUNT"
)

// Error is a tagged failure from the commerce API boundary.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the machine code from err, or "" for non-commerce errors.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// classifyBusinessError maps a GraphQL-reported error onto the code
// taxonomy. The remote system reports missing entities with a dedicated
// category; the message scan is a fallback for older gateway versions.
func classifyBusinessError(category, message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "could not find a cart"),
		category == "graphql-no-such-entity" && strings.Contains(lower, "cart"):
		return CodeCartNotFound
	case strings.Contains(lower, "product that was requested doesn't exist"),
		strings.Contains(lower, "could not find a product"),
		category == "graphql-no-such-entity" && (strings.Contains(lower, "product") || strings.Contains(lower, "sku")):
		return CodeProductNotFound
	default:
		return CodeGraphQLError
	}
}
