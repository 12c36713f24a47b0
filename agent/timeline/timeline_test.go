package timeline

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func homeProfile() Profile {
	return Profile{Home: Event{EventType: "home", Address: "12 Sukhumvit Rd"}}
}

func TestNextEventNoOrders(t *testing.T) {
	t.Parallel()

	leg := NextEvent(homeProfile(), History{}, testNow)

	if !strings.Contains(leg.From, "12 Sukhumvit Rd") {
		t.Fatalf("From = %q, want home address", leg.From)
	}
	if leg.From != leg.To {
		t.Fatalf("From = %q, To = %q, want both home", leg.From, leg.To)
	}
	if leg.LeaveBy != noTravelNeeded || leg.ArriveBy != noTravelNeeded {
		t.Fatalf("labels = (%q, %q), want no travel needed", leg.LeaveBy, leg.ArriveBy)
	}
}

func TestNextEventAllInThePast(t *testing.T) {
	t.Parallel()

	history := History{Orders: []Order{{
		OrderID:   "A1",
		OrderDate: "2025-06-01",
		Events: []Event{
			{EventType: "order", OrderID: "A1", StoreName: "MM Center", DeliveryTime: "09:00"},
			{EventType: "delivery", OrderID: "A1", Address: "12 Sukhumvit Rd", EstimatedArrival: "09:30"},
		},
	}}}

	leg := NextEvent(homeProfile(), history, testNow)
	if leg.LeaveBy != noTravelNeeded {
		t.Fatalf("LeaveBy = %q, want no travel needed for fully past history", leg.LeaveBy)
	}
}

func TestNextEventFindsUpcomingDelivery(t *testing.T) {
	t.Parallel()

	history := History{Orders: []Order{{
		OrderID:   "A2",
		OrderDate: "2025-06-15",
		Events: []Event{
			{EventType: "order", OrderID: "A2", StoreName: "MM Center", OrderTime: "08:00", DeliveryTime: "08:00"},
			{EventType: "payment", OrderID: "A2", PaymentTime: "08:05"},
			{EventType: "delivery", OrderID: "A2", StoreName: "MM Center", Address: "12 Sukhumvit Rd", EstimatedArrival: "14:00"},
		},
	}}}

	leg := NextEvent(homeProfile(), history, testNow)

	if !strings.Contains(leg.From, "Payment made for order #A2") {
		t.Fatalf("From = %q, want the payment event as origin", leg.From)
	}
	if !strings.Contains(leg.To, "Delivery to 12 Sukhumvit Rd") {
		t.Fatalf("To = %q, want the upcoming delivery as destination", leg.To)
	}
	if leg.LeaveBy != "08:05" {
		t.Fatalf("LeaveBy = %q, want origin payment time", leg.LeaveBy)
	}
	if leg.ArriveBy != "14:00" {
		t.Fatalf("ArriveBy = %q, want estimated arrival", leg.ArriveBy)
	}
}

func TestNextEventFirstEventOfUpcomingOrder(t *testing.T) {
	t.Parallel()

	history := History{Orders: []Order{{
		OrderID:   "A3",
		OrderDate: "2025-06-16",
		Events: []Event{
			{EventType: "order", OrderID: "A3", StoreName: "MM West", DeliveryTime: "11:00", ConfirmationTime: "11:05"},
		},
	}}}

	leg := NextEvent(homeProfile(), history, testNow)

	// Origin is home because nothing preceded the first event.
	if !strings.Contains(leg.From, "Customer home") {
		t.Fatalf("From = %q, want home as origin", leg.From)
	}
	if !strings.Contains(leg.To, "Order #A3 confirmation") {
		t.Fatalf("To = %q, want order confirmation destination", leg.To)
	}
	if leg.ArriveBy != "11:05" {
		t.Fatalf("ArriveBy = %q, want confirmation time", leg.ArriveBy)
	}
}

func TestOrderStatusLookups(t *testing.T) {
	t.Parallel()

	history := History{Orders: []Order{{
		OrderID:           "A4",
		OrderDate:         "2025-06-10",
		Status:            "processing",
		PaymentStatus:     "paid",
		PaymentMethod:     "credit card",
		DeliveryStatus:    "in transit",
		TrackingNumber:    "TRK-7",
		EstimatedDelivery: "2025-06-16",
	}}}

	order := history.OrderStatus("A4")
	if order["order_status"] != "processing" || order["payment_status"] != "paid" {
		t.Fatalf("OrderStatus() = %v, want tracked fields", order)
	}

	payment := history.PaymentStatus("A4")
	if payment["payment_method"] != "credit card" {
		t.Fatalf("PaymentStatus() = %v, want payment method", payment)
	}
	if payment["transaction_id"] != "unknown" {
		t.Fatalf("PaymentStatus() transaction_id = %q, want unknown default", payment["transaction_id"])
	}

	delivery := history.DeliveryStatus("A4")
	if delivery["tracking_number"] != "TRK-7" {
		t.Fatalf("DeliveryStatus() = %v, want tracking number", delivery)
	}

	missing := history.OrderStatus("nope")
	if !strings.Contains(missing["status"], "not found") {
		t.Fatalf("OrderStatus() for unknown order = %v, want not-found status", missing)
	}
}
