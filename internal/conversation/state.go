// Package conversation implements the ordering dialogue as a pure state
// machine. The Engine never performs I/O: it returns the messages to send,
// the next session (or an end signal) and an optional order to record.
package conversation

import "github.com/pedroavv1914/zappi-chatbot/internal/menu"

// State is the persisted tag of a session's position in the dialogue.
type State string

const (
	StateInitial              State = "initial"
	StateAwaitingMenuChoice   State = "awaiting_menu_choice"
	StateAwaitingOrderItems   State = "awaiting_order_items"
	StateAwaitingConfirmation State = "awaiting_order_confirmation"
	StateAwaitingDelivery     State = "awaiting_delivery_choice"
	StateAwaitingFullName     State = "awaiting_full_name"
	StateAwaitingPhone        State = "awaiting_phone"
	StateAwaitingAddress      State = "awaiting_address"
)

// Known reports whether s is one of the defined states.
func (s State) Known() bool {
	switch s {
	case StateInitial, StateAwaitingMenuChoice, StateAwaitingOrderItems,
		StateAwaitingConfirmation, StateAwaitingDelivery, StateAwaitingFullName,
		StateAwaitingPhone, StateAwaitingAddress:
		return true
	}
	return false
}

// Session is the conversation state for one (identity, tenant) pair.
// Order keeps insertion order and duplicates.
type Session struct {
	State    State
	Order    []menu.Item
	FullName string
	Phone    string
	Address  string
}

// NewSession returns the session created on a customer's first message.
func NewSession() Session {
	return Session{State: StateInitial}
}

// Fulfillment is how a finished order reaches the customer.
type Fulfillment string

const (
	FulfillmentAttendant Fulfillment = "attendant"
	FulfillmentPickup    Fulfillment = "pickup"
	FulfillmentDelivery  Fulfillment = "delivery"
)

// OrderRequest asks the caller to record a completed order. Name, Phone and
// Address are set only for delivery.
type OrderRequest struct {
	Items       []menu.Item
	Fulfillment Fulfillment
	Name        string
	Phone       string
	Address     string
}

// Total is the exact sum of item prices.
func (r *OrderRequest) Total() float64 {
	return total(r.Items)
}

// Result is the outcome of one Step. When Ended is true the session must be
// deleted and the cooldown armed; otherwise Session replaces the stored one.
type Result struct {
	Messages []string
	Session  Session
	Ended    bool
	Order    *OrderRequest
}

func total(items []menu.Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price
	}
	return sum
}
