// Package timeline resolves the next relevant order-lifecycle event for a
// customer: given their order history and the current time, which leg of
// the order/payment/delivery sequence comes next.
package timeline

import (
	"fmt"
	"time"
)

// Event is one lifecycle step of an order. Which time field is meaningful
// depends on EventType.
type Event struct {
	EventType        string `json:"event_type"`
	StoreName        string `json:"store_name,omitempty"`
	OrderID          string `json:"order_id,omitempty"`
	Address          string `json:"address,omitempty"`
	OrderTime        string `json:"order_time,omitempty"`
	ConfirmationTime string `json:"confirmation_time,omitempty"`
	PaymentTime      string `json:"payment_time,omitempty"`
	ShippingTime     string `json:"shipping_time,omitempty"`
	DeliveryTime     string `json:"delivery_time,omitempty"`
	EstimatedArrival string `json:"estimated_arrival,omitempty"`
}

// Order is one purchase with its ordered lifecycle events.
type Order struct {
	OrderID           string  `json:"order_id"`
	OrderDate         string  `json:"order_date"`
	Status            string  `json:"status,omitempty"`
	PaymentStatus     string  `json:"payment_status,omitempty"`
	PaymentMethod     string  `json:"payment_method,omitempty"`
	PaymentDate       string  `json:"payment_date,omitempty"`
	TransactionID     string  `json:"transaction_id,omitempty"`
	DeliveryStatus    string  `json:"delivery_status,omitempty"`
	DeliveryAddress   string  `json:"delivery_address,omitempty"`
	TrackingNumber    string  `json:"tracking_number,omitempty"`
	ShippingMethod    string  `json:"shipping_method,omitempty"`
	EstimatedDelivery string  `json:"estimated_delivery,omitempty"`
	Events            []Event `json:"events"`
}

// History is the customer's tracked orders, oldest first.
type History struct {
	Orders []Order `json:"orders"`
}

// Profile is the slice of the customer profile the resolver needs.
type Profile struct {
	Home Event `json:"home"`
}

// Leg is the resolved (origin, destination) pair in human-readable form.
type Leg struct {
	From     string `json:"from"`
	To       string `json:"to"`
	LeaveBy  string `json:"leave_by"`
	ArriveBy string `json:"arrive_by"`
}

const noTravelNeeded = "no travel needed"

// NextEvent walks the order history with a sliding (origin, destination)
// pair, one event at a time, and stops at the first event belonging to an
// order dated on/after today whose own time is at or after the current
// time of day. With no qualifying event the customer stays home.
func NextEvent(profile Profile, history History, now time.Time) Leg {
	currentDate := now.Format("2006-01-02")
	currentTime := now.Format("15:04")

	home := profile.Home
	if home.EventType == "" {
		home.EventType = "home"
	}

	origin := home
	destin := home
	found := false

walk:
	for _, order := range history.Orders {
		for _, event := range order.Events {
			origin = destin
			destin = event
			eventTime := timeOf(destin, currentTime)
			if order.OrderDate >= currentDate && eventTime >= currentTime {
				found = true
				break walk
			}
		}
	}

	if !found {
		from, _ := describeOrigin(home)
		to, _ := describeDestination(home)
		return Leg{From: from, To: to, LeaveBy: noTravelNeeded, ArriveBy: noTravelNeeded}
	}

	from, leaveBy := describeOrigin(origin)
	to, arriveBy := describeDestination(destin)
	return Leg{From: from, To: to, LeaveBy: leaveBy, ArriveBy: arriveBy}
}

// timeOf returns the event's own time field per its type, or fallback when
// the type carries no time.
func timeOf(event Event, fallback string) string {
	switch event.EventType {
	case "order":
		return orDefault(event.DeliveryTime, fallback)
	case "payment":
		return orDefault(event.PaymentTime, fallback)
	case "delivery":
		return orDefault(event.EstimatedArrival, fallback)
	default:
		return fallback
	}
}

func describeOrigin(event Event) (description, leaveBy string) {
	switch event.EventType {
	case "order":
		return fmt.Sprintf("Order placed at %s", orDefault(event.StoreName, "store")),
			orDefault(event.OrderTime, "any time")
	case "payment":
		return fmt.Sprintf("Payment made for order #%s", orDefault(event.OrderID, "unknown")),
			orDefault(event.PaymentTime, "any time")
	case "delivery":
		return fmt.Sprintf("Delivery from %s", orDefault(event.StoreName, "store")),
			orDefault(event.ShippingTime, "any time")
	case "home":
		return fmt.Sprintf("Customer home at %s", orDefault(event.Address, "unknown address")),
			"any time"
	default:
		return "Unknown origin", "any time"
	}
}

func describeDestination(event Event) (description, arriveBy string) {
	switch event.EventType {
	case "order":
		return fmt.Sprintf("Order #%s confirmation", orDefault(event.OrderID, "unknown")),
			orDefault(event.ConfirmationTime, "soon")
	case "payment":
		return fmt.Sprintf("Payment confirmation for order #%s", orDefault(event.OrderID, "unknown")),
			"immediately after payment"
	case "delivery":
		return fmt.Sprintf("Delivery to %s", orDefault(event.Address, "customer address")),
			orDefault(event.EstimatedArrival, "as scheduled")
	case "home":
		return fmt.Sprintf("Customer home at %s", orDefault(event.Address, "unknown address")),
			"any time"
	default:
		return "Unknown destination", "as soon as possible"
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// StatusReport is a keyed summary for the status lookups below. Values
// default to "unknown" when the order does not track the field.
type StatusReport map[string]string

func (h History) find(orderID string) (Order, bool) {
	for _, order := range h.Orders {
		if order.OrderID == orderID {
			return order, true
		}
	}
	return Order{}, false
}

// OrderStatus summarizes the overall state of one order.
func (h History) OrderStatus(orderID string) StatusReport {
	order, ok := h.find(orderID)
	if !ok {
		return StatusReport{"status": fmt.Sprintf("Order #%s not found", orderID)}
	}
	return StatusReport{
		"status":             fmt.Sprintf("Order #%s", orderID),
		"order_status":       orDefault(order.Status, "unknown"),
		"payment_status":     orDefault(order.PaymentStatus, "unknown"),
		"delivery_status":    orDefault(order.DeliveryStatus, "unknown"),
		"estimated_delivery": orDefault(order.EstimatedDelivery, "unknown"),
	}
}

// PaymentStatus summarizes the payment state of one order.
func (h History) PaymentStatus(orderID string) StatusReport {
	order, ok := h.find(orderID)
	if !ok {
		return StatusReport{"status": fmt.Sprintf("No payment information for order #%s", orderID)}
	}
	return StatusReport{
		"status":         fmt.Sprintf("Payment for order #%s", orderID),
		"payment_status": orDefault(order.PaymentStatus, "unknown"),
		"payment_method": orDefault(order.PaymentMethod, "unknown"),
		"transaction_id": orDefault(order.TransactionID, "unknown"),
		"payment_date":   orDefault(order.PaymentDate, "unknown"),
	}
}

// DeliveryStatus summarizes the delivery state of one order.
func (h History) DeliveryStatus(orderID string) StatusReport {
	order, ok := h.find(orderID)
	if !ok {
		return StatusReport{"status": fmt.Sprintf("No delivery information for order #%s", orderID)}
	}
	return StatusReport{
		"status":             fmt.Sprintf("Delivery for order #%s", orderID),
		"delivery_status":    orDefault(order.DeliveryStatus, "unknown"),
		"tracking_number":    orDefault(order.TrackingNumber, "unknown"),
		"shipping_method":    orDefault(order.ShippingMethod, "unknown"),
		"estimated_delivery": orDefault(order.EstimatedDelivery, "unknown"),
		"delivery_address":   orDefault(order.DeliveryAddress, "unknown"),
	}
}
