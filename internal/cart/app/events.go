package app

import "github.com/dwikikusuma/pos-checkout/internal/cart/domain"

type EventType string

const (
	EventItemAdded         EventType = "itemAdded"
	EventItemRemoved       EventType = "itemRemoved"
	EventQuantityChanged   EventType = "quantityChanged"
	EventCleared           EventType = "cleared"
	EventRestored          EventType = "restored"
	EventProductsUpdated   EventType = "productsUpdated"
	EventTaxationChanged   EventType = "taxationChanged"
	EventPricesUpdated     EventType = "pricesUpdated"
	EventLimitReached      EventType = "limitReached"
	EventViolationDetected EventType = "violationDetected"
)

// Structural events change what has to be priced.
func (t EventType) Structural() bool {
	switch t {
	case EventItemAdded, EventItemRemoved, EventQuantityChanged, EventCleared,
		EventRestored, EventProductsUpdated, EventTaxationChanged:
		return true
	}
	return false
}

type Limit string

const (
	LimitCheckoutUnavailable    Limit = "checkoutUnavailable"
	LimitNotAllMethodsAvailable Limit = "notAllMethodsAvailable"
)

type Event struct {
	Type       EventType
	ModCount   int64
	Index      int
	Entry      *domain.Entry
	Limit      Limit
	Violations []domain.ViolationNotification
}
