package conversation

import (
	"strconv"
	"strings"

	"github.com/pedroavv1914/zappi-chatbot/internal/menu"
)

// Engine steps sessions for one tenant. It holds no mutable state and is
// safe to share.
type Engine struct {
	Catalog     *menu.Catalog
	DisplayName string
}

// Step advances s by one customer message. text is trimmed before matching.
// The input session is never modified.
func (e *Engine) Step(s Session, text string) Result {
	text = strings.TrimSpace(text)
	s.Order = append([]menu.Item(nil), s.Order...)

	switch s.State {
	case StateInitial:
		return e.welcome(s)
	case StateAwaitingMenuChoice:
		return e.menuChoice(s, text)
	case StateAwaitingOrderItems:
		return e.selectItems(s, text)
	case StateAwaitingConfirmation:
		return e.confirm(s, text)
	case StateAwaitingDelivery:
		return e.deliveryChoice(s, text)
	case StateAwaitingFullName:
		s.FullName = text
		s.State = StateAwaitingPhone
		return reply(s, msgAskPhone)
	case StateAwaitingPhone:
		s.Phone = text
		s.State = StateAwaitingAddress
		return reply(s, msgAskAddress)
	case StateAwaitingAddress:
		s.Address = text
		return ended(&OrderRequest{
			Items:       s.Order,
			Fulfillment: FulfillmentDelivery,
			Name:        s.FullName,
			Phone:       s.Phone,
			Address:     s.Address,
		}, deliveryMessage(s))
	default:
		// Unreadable state: start over from a clean session.
		res := e.welcome(NewSession())
		res.Messages = append([]string{msgRestart}, res.Messages...)
		return res
	}
}

func (e *Engine) welcome(s Session) Result {
	s.State = StateAwaitingMenuChoice
	return reply(s, welcomeMessage(e.DisplayName))
}

func (e *Engine) menuChoice(s Session, text string) Result {
	switch text {
	case "1":
		return reply(s, catalogMessage(e.catalog()))
	case "2":
		s.State = StateAwaitingOrderItems
		s.Order = nil
		return reply(s, msgAskItems)
	case "3":
		return ended(&OrderRequest{Fulfillment: FulfillmentAttendant}, msgAttendant)
	default:
		return reply(s, msgInvalidMenuChoice)
	}
}

// selectItems appends every id in text that resolves against the catalog.
// It is reached from both the item and the confirmation states.
func (e *Engine) selectItems(s Session, text string) Result {
	var picked []menu.Item
	for _, id := range ParseItemIDs(text) {
		if it, ok := e.catalog().Find(id); ok {
			picked = append(picked, it)
		}
	}
	if len(picked) == 0 {
		return reply(s, msgNoValidItems)
	}
	s.Order = append(s.Order, picked...)
	s.State = StateAwaitingConfirmation
	return reply(s, cartMessage(s.Order))
}

func (e *Engine) confirm(s Session, text string) Result {
	switch strings.ToLower(text) {
	case "sim":
		s.State = StateAwaitingDelivery
		return reply(s, msgAskFulfillment)
	case "não":
		return ended(nil, msgCancelled)
	default:
		return e.selectItems(s, text)
	}
}

func (e *Engine) deliveryChoice(s Session, text string) Result {
	switch strings.ToLower(text) {
	case "retirar":
		return ended(&OrderRequest{Items: s.Order, Fulfillment: FulfillmentPickup}, pickupMessage(s.Order))
	case "delivery":
		s.State = StateAwaitingFullName
		return reply(s, msgAskFullName)
	default:
		return reply(s, msgInvalidDelivery)
	}
}

func (e *Engine) catalog() *menu.Catalog {
	if e.Catalog == nil {
		return &menu.Catalog{}
	}
	return e.Catalog
}

// ParseItemIDs splits a comma-separated selection into ids. Tokens that are
// not base-10 integers are discarded; order and duplicates are kept.
func ParseItemIDs(text string) []int {
	var ids []int
	for _, tok := range strings.Split(text, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func reply(s Session, msgs ...string) Result {
	return Result{Messages: msgs, Session: s}
}

func ended(order *OrderRequest, msgs ...string) Result {
	return Result{Messages: msgs, Ended: true, Order: order}
}
