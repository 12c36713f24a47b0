// Package normalize turns raw model output into a clean commerce document
// when one is embedded in it, and leaves everything else untouched. The
// entry point is total: it never fails, it only falls back to the input.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize extracts the first commerce document embedded in text, repairs
// it, and returns it re-serialized. Text without a parseable document comes
// back unchanged. Applying Normalize to its own output is a no-op.
func Normalize(text string) string {
	doc, ok := extractDocument(text)
	if !ok {
		return text
	}
	repair(doc)
	out, err := marshalDocument(doc)
	if err != nil {
		return text
	}
	return out
}

// extractDocument tries, in order: a fenced code block, the whole text,
// then balanced {...} substrings gated on commerce keys. Only JSON objects
// are accepted; bare arrays and scalars pass through untouched.
func extractDocument(text string) (map[string]any, bool) {
	for _, candidate := range fencedBlocks(text) {
		if doc, ok := parseObject(candidate); ok {
			return doc, true
		}
	}

	if doc, ok := parseObject(text); ok {
		return doc, true
	}

	for _, candidate := range balancedObjects(text) {
		doc, ok := parseObject(candidate)
		if !ok {
			continue
		}
		if looksLikeCommerceDocument(doc) {
			return doc, true
		}
	}

	return nil, false
}

func parseObject(s string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, false
	}
	return doc, true
}

// looksLikeCommerceDocument gates loose brace-scan matches so incidental
// JSON-ish text in prose is not picked up.
func looksLikeCommerceDocument(doc map[string]any) bool {
	if products, ok := doc["products"].([]any); ok && products != nil {
		return true
	}
	if _, ok := doc["cart"]; ok {
		return true
	}
	if _, ok := doc["cart_items"]; ok {
		return true
	}
	return false
}

// repair fills in the fields downstream consumers rely on. Present fields
// are never overwritten, which is what makes Normalize idempotent.
func repair(doc map[string]any) {
	hoistNestedProducts(doc)

	products, ok := doc["products"].([]any)
	if !ok {
		return
	}

	if _, ok := doc["success"]; !ok {
		doc["success"] = true
	}
	if _, ok := doc["action"]; !ok {
		doc["action"] = "search_products"
	}
	if _, ok := doc["message"]; !ok {
		count := len(products)
		if total, ok := numberField(doc, "total_results"); ok {
			count = total
		}
		doc["message"] = fmt.Sprintf("Found %d products", count)
	}

	for _, entry := range products {
		product, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		repairProduct(product)
	}
}

func hoistNestedProducts(doc map[string]any) {
	if _, ok := doc["products"]; ok {
		return
	}
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return
	}
	products, ok := data["products"]
	if !ok {
		return
	}

	doc["products"] = products
	if total, ok := data["total_results"]; ok {
		if _, exists := doc["total_results"]; !exists {
			doc["total_results"] = total
		}
	}
	if page, ok := data["page"]; ok {
		if _, exists := doc["page"]; !exists {
			doc["page"] = page
		}
	}
}

func repairProduct(product map[string]any) {
	if id, ok := product["id"]; ok {
		if _, exists := product["product_id"]; !exists {
			product["product_id"] = id
		}
	}
	if price, ok := product["price"]; ok {
		if _, exists := product["original_price"]; !exists {
			product["original_price"] = price
			if _, hasDiscount := product["discount_percentage"]; !hasDiscount {
				product["discount_percentage"] = 0
			}
		}
	}
	if _, ok := product["brand"]; !ok {
		product["brand"] = "No brand"
	}
}

func numberField(doc map[string]any, key string) (int, bool) {
	switch v := doc[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// marshalDocument serializes without HTML escaping so non-ASCII content and
// characters like & survive verbatim.
func marshalDocument(doc map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
