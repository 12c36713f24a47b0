package normalize

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustParse(t *testing.T, s string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, s)
	}
	return doc
}

func TestNormalizePassthroughPlainText(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Hello! How can I help you today?",
		"We have milk, eggs and bread in stock.",
		"Try searching for {something else",
		"",
	}
	for _, in := range inputs {
		if got := Normalize(in); got != in {
			t.Fatalf("Normalize(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"plain text, no json",
		"```json\n{\"data\":{\"products\":[{\"id\":1,\"price\":100}]}}\n```",
		`{"products":[{"id":2,"name":"Eggs","price":30}],"total_results":1}`,
		`{"success":true,"message":"done","cart":{"cart_id":"c1"}}`,
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q:\nonce:  %s\ntwice: %s", in, once, twice)
		}
	}
}

func TestNormalizeHoistsFencedDocument(t *testing.T) {
	t.Parallel()

	in := "Here are your results:\n```json\n{\"data\":{\"products\":[{\"id\":1,\"price\":100}],\"total_results\":1}}\n```"
	doc := mustParse(t, Normalize(in))

	if doc["success"] != true {
		t.Fatalf("success = %v, want true", doc["success"])
	}
	if doc["action"] != "search_products" {
		t.Fatalf("action = %v, want search_products", doc["action"])
	}
	message, _ := doc["message"].(string)
	if !strings.Contains(message, "1") {
		t.Fatalf("message = %q, want the product count mentioned", message)
	}

	products, ok := doc["products"].([]any)
	if !ok || len(products) != 1 {
		t.Fatalf("products = %v, want hoisted single-product list", doc["products"])
	}
	product := products[0].(map[string]any)
	if product["product_id"] != float64(1) {
		t.Fatalf("product_id = %v, want copied from id", product["product_id"])
	}
	if product["original_price"] != float64(100) {
		t.Fatalf("original_price = %v, want copied from price", product["original_price"])
	}
	if product["discount_percentage"] != float64(0) {
		t.Fatalf("discount_percentage = %v, want 0", product["discount_percentage"])
	}
	if product["brand"] != "No brand" {
		t.Fatalf("brand = %v, want placeholder", product["brand"])
	}
}

func TestNormalizeDoesNotOverwritePresentFields(t *testing.T) {
	t.Parallel()

	in := `{"success":false,"action":"custom","message":"already here","products":[{"id":3,"product_id":"P3","price":10,"original_price":25,"discount_percentage":60,"brand":"Acme"}]}`
	doc := mustParse(t, Normalize(in))

	if doc["success"] != false {
		t.Fatalf("success = %v, want existing false preserved", doc["success"])
	}
	if doc["action"] != "custom" {
		t.Fatalf("action = %v, want preserved", doc["action"])
	}
	if doc["message"] != "already here" {
		t.Fatalf("message = %v, want preserved", doc["message"])
	}

	product := doc["products"].([]any)[0].(map[string]any)
	if product["product_id"] != "P3" {
		t.Fatalf("product_id = %v, want preserved", product["product_id"])
	}
	if product["original_price"] != float64(25) {
		t.Fatalf("original_price = %v, want preserved", product["original_price"])
	}
	if product["discount_percentage"] != float64(60) {
		t.Fatalf("discount_percentage = %v, want preserved", product["discount_percentage"])
	}
	if product["brand"] != "Acme" {
		t.Fatalf("brand = %v, want preserved", product["brand"])
	}
}

func TestNormalizeBraceScanRequiresCommerceKeys(t *testing.T) {
	t.Parallel()

	// An embedded object with no products/cart keys must not be extracted.
	in := `The config looks like {"timeout": 30, "retries": 3, "verbose": true, "name": "primary"} if you need it.`
	if got := Normalize(in); got != in {
		t.Fatalf("Normalize() = %q, want prose with incidental JSON unchanged", got)
	}

	// The same shape with a products list is extracted.
	embedded := `Result: {"products": [{"id": 9, "name": "Bread", "price": 25}], "total_results": 1} done.`
	doc := mustParse(t, Normalize(embedded))
	if doc["success"] != true {
		t.Fatalf("success = %v, want extracted and repaired", doc["success"])
	}
}

func TestNormalizePreservesNonASCII(t *testing.T) {
	t.Parallel()

	in := `{"products":[{"id":1,"name":"นมสด","price":40}]}`
	out := Normalize(in)
	if !strings.Contains(out, "นมสด") {
		t.Fatalf("Normalize() = %q, want Thai product name unescaped", out)
	}
	if strings.Contains(out, `\u`) {
		t.Fatalf("Normalize() = %q, want no unicode escapes", out)
	}
}

func TestNormalizeCountsFromTotalResults(t *testing.T) {
	t.Parallel()

	in := `{"products":[{"id":1}],"total_results":37}`
	doc := mustParse(t, Normalize(in))
	if doc["message"] != "Found 37 products" {
		t.Fatalf("message = %v, want count from total_results", doc["message"])
	}
}

func TestNormalizeCartDocumentPassesGate(t *testing.T) {
	t.Parallel()

	in := `Your cart: {"cart": {"cart_id": "c-1", "items": [], "total_price": 0}, "success": true} thanks!`
	doc := mustParse(t, Normalize(in))
	cart, ok := doc["cart"].(map[string]any)
	if !ok || cart["cart_id"] != "c-1" {
		t.Fatalf("cart = %v, want extracted cart document", doc["cart"])
	}
}

func TestExtractThinkingFromJSON(t *testing.T) {
	t.Parallel()

	in := `{"thinking_process":"compare prices first","response":"Milk is cheaper."}`
	thinking, content := ExtractThinking(in)
	if thinking != "compare prices first" {
		t.Fatalf("thinking = %q, want the embedded field", thinking)
	}
	if strings.Contains(content, "thinking_process") {
		t.Fatalf("content = %q, want thinking field removed", content)
	}
}

func TestExtractThinkingFromMarker(t *testing.T) {
	t.Parallel()

	in := "Thinking process: the user wants dairy products\nso search for milk\n\nHere are the results."
	thinking, content := ExtractThinking(in)
	if !strings.Contains(thinking, "dairy products") {
		t.Fatalf("thinking = %q, want marker section captured", thinking)
	}
	if !strings.Contains(content, "Here are the results.") {
		t.Fatalf("content = %q, want reply kept", content)
	}
	if strings.Contains(content, "dairy products") {
		t.Fatalf("content = %q, want reasoning removed", content)
	}
}

func TestExtractThinkingAbsent(t *testing.T) {
	t.Parallel()

	in := "Just a normal reply."
	thinking, content := ExtractThinking(in)
	if thinking != "" || content != in {
		t.Fatalf("ExtractThinking() = (%q, %q), want no-op", thinking, content)
	}
}
