package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	contractx "github.com/vndang/shoptalk/agent/contract"
	sessionx "github.com/vndang/shoptalk/agent/session"
	timelinex "github.com/vndang/shoptalk/agent/timeline"
)

const systemPrompt = `You are a shopping assistant for an online grocery and household store.
Help the customer search products, manage their cart and track orders.
When you need live data, reply with a single JSON object naming the action:
{"action":"search_products","query":"...","page_size":10,"page":1}
{"action":"get_product_by_sku","sku":"..."}
{"action":"add_to_cart","sku":"...","quantity":1}
{"action":"get_cart_info"}
Otherwise answer in plain language.`

// buildModelContext assembles the message list for the responder: the
// system prompt enriched with what the session knows about the customer,
// then the trimmed history.
func buildModelContext(rec sessionx.Record, profile contractx.UserProfile, now time.Time) []contractx.Message {
	var sb strings.Builder
	sb.WriteString(systemPrompt)

	if section := profileSection(profile); section != "" {
		sb.WriteString("\n\nCustomer context:\n")
		sb.WriteString(section)
	}
	if section := memorySection(rec.Memory); section != "" {
		sb.WriteString("\n\nConversation memory:\n")
		sb.WriteString(section)
	}
	if leg := timelineSection(profile, now); leg != "" {
		sb.WriteString("\n\nNext order event:\n")
		sb.WriteString(leg)
	}

	messages := make([]contractx.Message, 0, len(rec.History)+1)
	messages = append(messages, contractx.Message{Role: "system", Content: sb.String()})
	messages = append(messages, rec.History...)
	return messages
}

func profileSection(profile contractx.UserProfile) string {
	var lines []string
	if profile.Name != "" {
		lines = append(lines, "- name: "+profile.Name)
	}
	if profile.Address != "" {
		lines = append(lines, "- address: "+profile.Address)
	}
	if len(profile.ShoppingPreferences) > 0 {
		lines = append(lines, "- preferences: "+strings.Join(profile.ShoppingPreferences, ", "))
	}
	if len(profile.CartItems) > 0 {
		items := make([]string, 0, len(profile.CartItems))
		for _, item := range profile.CartItems {
			items = append(items, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
		}
		lines = append(lines, "- cart: "+strings.Join(items, ", "))
	}
	if len(profile.TrackedOrders) > 0 {
		orders := make([]string, 0, len(profile.TrackedOrders))
		for _, order := range profile.TrackedOrders {
			orders = append(orders, fmt.Sprintf("#%s (%s)", order.OrderID, order.Status))
		}
		lines = append(lines, "- tracked orders: "+strings.Join(orders, ", "))
	}
	return strings.Join(lines, "\n")
}

// memorySection renders the non-internal memory keys deterministically.
func memorySection(memory map[string]any) string {
	keys := make([]string, 0, len(memory))
	for k := range memory {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		value, err := json.Marshal(memory[k])
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", k, value))
	}
	return strings.Join(lines, "\n")
}

// timelineSection resolves the customer's next order-lifecycle leg from the
// tracked orders in the profile.
func timelineSection(profile contractx.UserProfile, now time.Time) string {
	if len(profile.TrackedOrders) == 0 {
		return ""
	}

	history := timelinex.History{}
	for _, tracked := range profile.TrackedOrders {
		history.Orders = append(history.Orders, timelinex.Order{
			OrderID:   tracked.OrderID,
			OrderDate: tracked.Date,
			Status:    tracked.Status,
		})
	}

	tp := timelinex.Profile{Home: timelinex.Event{EventType: "home", Address: profile.Address}}
	leg := timelinex.NextEvent(tp, history, now)
	return fmt.Sprintf("- from: %s (leave by %s)\n- to: %s (arrive by %s)", leg.From, leg.LeaveBy, leg.To, leg.ArriveBy)
}
