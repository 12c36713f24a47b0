package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	commercex "github.com/vndang/shoptalk/agent/commerce"
	sessionx "github.com/vndang/shoptalk/agent/session"
	ticketx "github.com/vndang/shoptalk/agent/ticket"
)

// actionRequest is the tool-call shape the model emits when it wants live
// commerce data.
type actionRequest struct {
	Action   string `json:"action"`
	Query    string `json:"query"`
	SKU      string `json:"sku"`
	ArtNo    string `json:"art_no"`
	Quantity int    `json:"quantity"`
	PageSize int    `json:"page_size"`
	Page     int    `json:"page"`
}

// parseActionRequest recognizes a model reply that is an action request:
// a JSON object with an action name and no result payload yet.
func parseActionRequest(text string) (*actionRequest, bool) {
	candidate := strings.TrimSpace(text)
	if fenced := fencedJSON(candidate); fenced != "" {
		candidate = fenced
	}
	if len(candidate) == 0 || candidate[0] != '{' {
		return nil, false
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, false
	}
	if _, ok := probe["action"]; !ok {
		return nil, false
	}
	// A document that already carries results is an answer, not a request.
	if _, ok := probe["products"]; ok {
		return nil, false
	}
	if _, ok := probe["cart"]; ok {
		return nil, false
	}

	var req actionRequest
	if err := json.Unmarshal([]byte(candidate), &req); err != nil {
		return nil, false
	}
	if req.Action == "" {
		return nil, false
	}
	return &req, true
}

func fencedJSON(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	rest = strings.TrimPrefix(rest, "json")
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// dispatchActions executes the commerce action a model reply asked for and
// replaces the reply with the result document. Search and product-detail
// calls are ticketed: a result arriving after a newer request for the same
// conversation is discarded without touching session state.
func (s *Service) dispatchActions(ctx context.Context, st *turnState) error {
	req, ok := parseActionRequest(st.reply.Content)
	if !ok {
		st.response = st.reply.Content
		return nil
	}

	switch req.Action {
	case "search_products":
		s.dispatchSearch(ctx, st, req)
	case "get_product_by_sku", "get_product_by_art_no":
		s.dispatchProductDetail(ctx, st, req)
	case "add_to_cart":
		s.dispatchAddToCart(ctx, st, req)
	case "get_cart_info":
		s.dispatchCartInfo(ctx, st)
	default:
		st.response = st.reply.Content
	}
	return nil
}

func (s *Service) dispatchSearch(ctx context.Context, st *turnState, req *actionRequest) {
	tk := s.tracker.Issue(st.sessionID, ticketx.KindSearch)
	bound, done := s.tracker.Bind(ctx, tk)
	defer done()

	page, err := s.commerce.Search(bound, req.Query, req.PageSize, req.Page)

	if !s.tracker.IsCurrent(tk) {
		s.countSuperseded()
		log.Debug().Str("session_id", st.sessionID).Msg("search result superseded, discarded")
		st.response = st.reply.Content
		return
	}
	if err != nil {
		st.response = failureDocument(fmt.Sprintf("Product search for %q failed.", req.Query), err)
		return
	}

	doc := map[string]any{
		"success":       true,
		"action":        "search_products",
		"message":       fmt.Sprintf("Found %d products", page.TotalResults),
		"products":      page.Products,
		"total_results": page.TotalResults,
		"page":          page.Page,
	}
	st.response = marshalLoose(doc, st.reply.Content)

	if err := s.store.Update(st.sessionID, func(rec *sessionx.Record) {
		rec.Memory["last_search_query"] = req.Query
		rec.Memory["last_search_results"] = page.Products
	}); err != nil {
		log.Warn().Err(err).Str("session_id", st.sessionID).Msg("store search results")
	}
}

func (s *Service) dispatchProductDetail(ctx context.Context, st *turnState, req *actionRequest) {
	tk := s.tracker.Issue(st.sessionID, ticketx.KindProductDetail)
	bound, done := s.tracker.Bind(ctx, tk)
	defer done()

	var (
		product *commercex.Product
		err     error
	)
	if req.Action == "get_product_by_art_no" {
		product, err = s.commerce.ProductByArtNo(bound, req.ArtNo)
	} else {
		product, err = s.commerce.ProductBySKU(bound, req.SKU)
	}

	if !s.tracker.IsCurrent(tk) {
		s.countSuperseded()
		st.response = st.reply.Content
		return
	}
	if err != nil {
		st.response = failureDocument("Product lookup failed.", err)
		return
	}

	doc := map[string]any{
		"success":  true,
		"action":   req.Action,
		"message":  "Found 1 products",
		"products": []commercex.Product{*product},
	}
	st.response = marshalLoose(doc, st.reply.Content)
}

func (s *Service) dispatchAddToCart(ctx context.Context, st *turnState, req *actionRequest) {
	conv := s.commerce.Conversation(st.sessionID)
	cart, err := conv.AddToCart(ctx, req.SKU, req.Quantity, 0)
	if err != nil {
		st.response = failureDocument("Could not add the product to your cart.", err)
		return
	}

	doc := map[string]any{
		"success": true,
		"action":  "add_to_cart",
		"message": fmt.Sprintf("Added %s to your cart", req.SKU),
		"cart":    cart,
	}
	st.response = marshalLoose(doc, st.reply.Content)

	if err := s.store.Update(st.sessionID, func(rec *sessionx.Record) {
		rec.CartID = cart.CartID
	}); err != nil {
		log.Warn().Err(err).Str("session_id", st.sessionID).Msg("store cart id")
	}
}

func (s *Service) dispatchCartInfo(ctx context.Context, st *turnState) {
	conv := s.commerce.Conversation(st.sessionID)
	cart, err := conv.CartSnapshot(ctx)
	if err != nil {
		if commercex.CodeOf(err) == commercex.CodeCartNotFound {
			if uerr := s.store.Update(st.sessionID, func(rec *sessionx.Record) {
				rec.CartID = ""
			}); uerr != nil {
				log.Warn().Err(uerr).Str("session_id", st.sessionID).Msg("clear cart id")
			}
		}
		st.response = failureDocument("Could not load your cart.", err)
		return
	}

	doc := map[string]any{
		"success": true,
		"action":  "get_cart_info",
		"message": fmt.Sprintf("Your cart has %d items", len(cart.Items)),
		"cart":    cart,
	}
	st.response = marshalLoose(doc, st.reply.Content)
}

func failureDocument(message string, err error) string {
	code := commercex.CodeOf(err)
	if code == "" {
		code = commercex.CodeHTTPError
	}
	doc := map[string]any{
		"success":    false,
		"message":    message,
		"error_code": code,
	}
	return marshalLoose(doc, message)
}

// marshalLoose serializes doc without HTML escaping, falling back to the
// original text if encoding fails.
func marshalLoose(doc map[string]any, fallback string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fallback
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (s *Service) countSuperseded() {
	if s.metrics == nil {
		return
	}
	s.metrics.SupersededResults.Inc()
}
