package domain

import (
	"time"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
)

type Shop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is the state of one checkout attempt.
type Session struct {
	Cart             cart.BackendCart `json:"cart"`
	Info             *Info            `json:"info,omitempty"`
	Process          *Process         `json:"process,omitempty"`
	Method           PaymentMethod    `json:"method,omitempty"`
	PriceToPay       int64            `json:"priceToPay"`
	InvalidProducts  []string         `json:"invalidProducts,omitempty"`
	AvailableMethods []PaymentMethod  `json:"availableMethods,omitempty"`
	Approved         bool             `json:"approved"`
	FulfillmentDone  bool             `json:"fulfillmentDone"`
	StartedAt        time.Time        `json:"startedAt"`
}

func (s *Session) Clone() Session {
	out := *s
	if s.Info != nil {
		info := *s.Info
		out.Info = &info
	}
	if s.Process != nil {
		p := *s.Process
		out.Process = &p
	}
	out.InvalidProducts = append([]string(nil), s.InvalidProducts...)
	out.AvailableMethods = append([]PaymentMethod(nil), s.AvailableMethods...)
	return out
}

// Persisted is what survives a restart.
type Persisted struct {
	State    State    `json:"state"`
	Previous State    `json:"previous"`
	Session  *Session `json:"session,omitempty"`
}

// SavedCart is a cart waiting in the retry queue.
type SavedCart struct {
	ID       string           `json:"id"`
	Cart     cart.BackendCart `json:"cart"`
	FailedAt time.Time        `json:"failedAt"`
	Attempts int              `json:"attempts"`
}
