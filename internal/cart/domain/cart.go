package domain

import (
	"time"

	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

type Taxation string

const (
	TaxationUndecided Taxation = ""
	TaxationOnSite    Taxation = "onsite"
	TaxationTakeaway  Taxation = "takeaway"
)

func (t Taxation) Valid() bool {
	return t == TaxationUndecided || t == TaxationOnSite || t == TaxationTakeaway
}

// Violation is a backend complaint about a cart position, e.g. a coupon
// that cannot be redeemed.
type Violation struct {
	Type     string `json:"type"`
	RefersTo string `json:"refersTo,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ViolationNotification is a violation the user has not acknowledged yet.
type ViolationNotification struct {
	Name     string `json:"name"`
	RefersTo string `json:"refersTo,omitempty"`
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
}

type Backup struct {
	Entries   []Entry   `json:"entries"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b *Backup) Valid(now time.Time, ttl time.Duration) bool {
	return b != nil && len(b.Entries) > 0 && now.Sub(b.CreatedAt) < ttl
}

type Cart struct {
	Session               string                  `json:"session"`
	ModCount              int64                   `json:"modCount"`
	AddCount              int64                   `json:"addCount"`
	Entries               []Entry                 `json:"entries"`
	OnlineTotal           *int64                  `json:"onlineTotal,omitempty"`
	InvalidProducts       []string                `json:"invalidProducts,omitempty"`
	InvalidDepositVoucher bool                    `json:"invalidDepositVoucher,omitempty"`
	Taxation              Taxation                `json:"taxation,omitempty"`
	UpdatedAt             time.Time               `json:"updatedAt"`
	Backup                *Backup                 `json:"backup,omitempty"`
	Violations            []ViolationNotification `json:"violations,omitempty"`
	CheckoutLimitReached  bool                    `json:"checkoutLimitReached,omitempty"`
	PaymentLimitReached   bool                    `json:"paymentLimitReached,omitempty"`
}

func (c *Cart) Empty() bool { return len(c.Entries) == 0 }

// DepositTotal is the larger of the product deposits and the deposit line
// items reported by the backend, never their sum.
func (c *Cart) DepositTotal() int64 {
	var products, lineItems int64
	for _, e := range c.Entries {
		if e.IsDepositLineItem() {
			lineItems += e.TotalPrice()
			continue
		}
		products += e.DepositPrice()
	}
	return max(products, lineItems)
}

func (c *Cart) LocalTotal() int64 {
	var total int64
	for _, e := range c.Entries {
		if e.IsDepositLineItem() {
			continue
		}
		total += e.TotalPrice()
	}
	return total + c.DepositTotal()
}

func (c *Cart) TotalPrice() int64 {
	if c.OnlineTotal != nil {
		return *c.OnlineTotal
	}
	return c.LocalTotal()
}

func (c *Cart) IsOnlinePrice() bool { return c.OnlineTotal != nil }

// TotalQuantity counts pieces; weighed and price-embedded entries count as
// one.
func (c *Cart) TotalQuantity() int {
	n := 0
	for _, e := range c.Entries {
		if e.Kind != KindProduct {
			continue
		}
		if e.Unit() == catalog.UnitPiece {
			n += int(e.EffectiveQuantity())
		} else {
			n++
		}
	}
	return n
}

func (c *Cart) IndexOf(id string) int {
	for i, e := range c.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// MergeTarget returns the index of a mergeable entry for the same product,
// or -1.
func (c *Cart) MergeTarget(e Entry) int {
	if !e.IsMergeable() {
		return -1
	}
	for i, existing := range c.Entries {
		if existing.IsMergeable() && existing.SKU() == e.SKU() {
			return i
		}
	}
	return -1
}

// FirstCouponIndex is where product entries must be inserted before.
func (c *Cart) FirstCouponIndex() int {
	for i, e := range c.Entries {
		if e.Kind == KindCoupon {
			return i
		}
	}
	return len(c.Entries)
}

func (c *Cart) Clone() Cart {
	out := *c
	out.Entries = cloneEntries(c.Entries)
	if c.OnlineTotal != nil {
		v := *c.OnlineTotal
		out.OnlineTotal = &v
	}
	out.InvalidProducts = append([]string(nil), c.InvalidProducts...)
	out.Violations = append([]ViolationNotification(nil), c.Violations...)
	if c.Backup != nil {
		b := Backup{Entries: cloneEntries(c.Backup.Entries), CreatedAt: c.Backup.CreatedAt}
		out.Backup = &b
	}
	return out
}

func cloneEntries(in []Entry) []Entry {
	if in == nil {
		return nil
	}
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}

// BackendCart is the cart payload sent to the checkout backend.
func (c *Cart) BackendCart(shopID string) BackendCart {
	items := make([]BackendItem, 0, len(c.Entries))
	for _, e := range c.Entries {
		if item, ok := e.BackendItem(); ok {
			items = append(items, item)
		}
	}
	return BackendCart{
		Session:  c.Session,
		ShopID:   shopID,
		Items:    items,
		Taxation: c.Taxation,
	}
}
