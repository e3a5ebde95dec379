package domain

import (
	"encoding/json"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
)

// Info is a signed checkout info: the backend priced snapshot of a cart.
// Signed is kept verbatim because the process is created from it.
type Info struct {
	Signed           json.RawMessage  `json:"signedCheckoutInfo"`
	Session          string           `json:"session"`
	LineItems        []cart.LineItem  `json:"lineItems"`
	Price            Price            `json:"price"`
	AvailableMethods []PaymentMethod  `json:"paymentMethods"`
	Violations       []cart.Violation `json:"violations,omitempty"`
	ProcessHref      string           `json:"processHref,omitempty"`
}

type Price struct {
	Total    int64 `json:"price"`
	NetPrice int64 `json:"netPrice,omitempty"`
}

// Accepted filters the available methods down to the allowlist. An empty
// allowlist accepts everything.
func (i Info) Accepted(allow []PaymentMethod) []PaymentMethod {
	if len(allow) == 0 {
		return append([]PaymentMethod(nil), i.AvailableMethods...)
	}
	out := make([]PaymentMethod, 0, len(i.AvailableMethods))
	for _, m := range i.AvailableMethods {
		for _, a := range allow {
			if m == a {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
