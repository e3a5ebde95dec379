package domain

import (
	"github.com/google/uuid"

	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

type EntryKind string

const (
	KindProduct  EntryKind = "product"
	KindLineItem EntryKind = "lineItem"
	KindCoupon   EntryKind = "coupon"
)

// ScannedCode is a parsed barcode. Embedded carries a value encoded in the
// code itself (price, weight or units) measured in EmbeddedUnit.
type ScannedCode struct {
	Code         string       `json:"code"`
	Template     string       `json:"template,omitempty"`
	Embedded     int64        `json:"embedded,omitempty"`
	EmbeddedUnit catalog.Unit `json:"embeddedUnit,omitempty"`
}

func (c ScannedCode) HasEmbeddedData() bool { return c.EmbeddedUnit != "" }
func (c ScannedCode) HasEmbeddedPrice() bool {
	return c.EmbeddedUnit == catalog.UnitPrice
}
func (c ScannedCode) HasEmbeddedWeight() bool {
	return c.EmbeddedUnit.IsMass() || c.EmbeddedUnit.IsVolume()
}
func (c ScannedCode) HasEmbeddedUnits() bool {
	return c.EmbeddedUnit == catalog.UnitPiece
}

type Coupon struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type LineItemType string

const (
	LineItemDefault  LineItemType = "default"
	LineItemDeposit  LineItemType = "deposit"
	LineItemDiscount LineItemType = "discount"
	LineItemGiveaway LineItemType = "giveaway"
	LineItemCoupon   LineItemType = "coupon"
)

// LineItem is a backend-priced position of a checkout info.
type LineItem struct {
	ID          string       `json:"id"`
	SKU         string       `json:"sku,omitempty"`
	Name        string       `json:"name,omitempty"`
	Type        LineItemType `json:"type"`
	Amount      int          `json:"amount"`
	Price       int64        `json:"price"`
	TotalPrice  int64        `json:"totalPrice"`
	Units       *int64       `json:"units,omitempty"`
	Weight      *int64       `json:"weight,omitempty"`
	WeightUnit  catalog.Unit `json:"weightUnit,omitempty"`
	RefersTo    string       `json:"refersTo,omitempty"`
	CouponID    string       `json:"couponID,omitempty"`
	ScannedCode string       `json:"scannedCode,omitempty"`
}

// Entry is one position of the cart. Product entries carry a catalog
// product, coupon entries a coupon and line-item entries are synthetic
// positions the backend added (discounts, giveaways, redeemed coupons).
// LineItem on a product entry is the backend override of its local price.
type Entry struct {
	ID          string           `json:"id"`
	Kind        EntryKind        `json:"kind"`
	Product     *catalog.Product `json:"product,omitempty"`
	ScannedCode ScannedCode      `json:"scannedCode"`
	Quantity    int              `json:"quantity"`
	Coupon      *Coupon          `json:"coupon,omitempty"`
	LineItem    *LineItem        `json:"lineItem,omitempty"`
}

func NewProductEntry(p catalog.Product, code ScannedCode, quantity int) Entry {
	if quantity <= 0 {
		quantity = 1
	}
	return Entry{
		ID:          uuid.NewString(),
		Kind:        KindProduct,
		Product:     &p,
		ScannedCode: code,
		Quantity:    quantity,
	}
}

func NewCouponEntry(c Coupon, code ScannedCode) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Kind:        KindCoupon,
		ScannedCode: code,
		Quantity:    1,
		Coupon:      &c,
	}
}

func NewLineItemEntry(li LineItem) Entry {
	amount := li.Amount
	if amount <= 0 {
		amount = 1
	}
	return Entry{
		ID:       li.ID,
		Kind:     KindLineItem,
		Quantity: amount,
		LineItem: &li,
	}
}

func (e Entry) SKU() string {
	switch {
	case e.Product != nil:
		return e.Product.SKU
	case e.LineItem != nil:
		return e.LineItem.SKU
	}
	return ""
}

func (e Entry) Unit() catalog.Unit {
	if e.ScannedCode.HasEmbeddedData() {
		return e.ScannedCode.EmbeddedUnit
	}
	if e.Product != nil && e.Product.Type == catalog.ProductUserWeighed {
		return e.Product.ReferenceUnit.Base()
	}
	return catalog.UnitPiece
}

// EffectiveQuantity is the embedded weight or unit count when the scanned
// code carries one, the entered quantity otherwise.
func (e Entry) EffectiveQuantity() int64 {
	if e.ScannedCode.HasEmbeddedWeight() || e.ScannedCode.HasEmbeddedUnits() {
		return e.ScannedCode.Embedded
	}
	return int64(e.Quantity)
}

// IsMergeable reports whether scanning the same product again may bump
// this entry's quantity instead of adding a new one.
func (e Entry) IsMergeable() bool {
	if e.Kind != KindProduct || e.Product == nil || e.Coupon != nil {
		return false
	}
	if e.Product.Type != catalog.ProductDefault && e.Product.Type != "" {
		return false
	}
	return !e.ScannedCode.HasEmbeddedData() && e.Unit() == catalog.UnitPiece
}

func (e Entry) IsDepositLineItem() bool {
	return e.Kind == KindLineItem && e.LineItem != nil && e.LineItem.Type == LineItemDeposit
}

// TotalPrice is the entry's price, preferring the backend override.
func (e Entry) TotalPrice() int64 {
	if e.LineItem != nil {
		return e.LineItem.TotalPrice
	}
	if e.Product == nil {
		return 0
	}
	if e.ScannedCode.HasEmbeddedPrice() {
		return e.ScannedCode.Embedded
	}

	unit := e.Unit()
	if unit.IsMass() || unit.IsVolume() {
		ref := e.Product.ReferenceUnit
		if ref == "" || ref == catalog.UnitPiece {
			ref = unit
		}
		return weighedPrice(e.Product.Price.Amount, e.EffectiveQuantity()*unit.Factor(), ref.Factor())
	}
	return e.Product.Price.Amount * e.EffectiveQuantity()
}

// weighedPrice returns price*quantity/factor rounded half up.
func weighedPrice(price, quantity, factor int64) int64 {
	if factor <= 1 {
		return price * quantity
	}
	num := price * quantity
	if num < 0 {
		return -((-num*2 + factor) / (2 * factor))
	}
	return (num*2 + factor) / (2 * factor)
}

// DepositPrice is the locally known deposit for piece-counted products.
func (e Entry) DepositPrice() int64 {
	if e.Kind != KindProduct || e.Product == nil || e.Product.Deposit == nil {
		return 0
	}
	if e.Unit() != catalog.UnitPiece {
		return 0
	}
	return e.Product.Deposit.Price.Amount * e.EffectiveQuantity()
}

func (e Entry) clone() Entry {
	out := e
	if e.Product != nil {
		p := *e.Product
		if p.Deposit != nil {
			d := *p.Deposit
			p.Deposit = &d
		}
		p.Codes = append([]string(nil), p.Codes...)
		out.Product = &p
	}
	if e.Coupon != nil {
		c := *e.Coupon
		out.Coupon = &c
	}
	if e.LineItem != nil {
		li := *e.LineItem
		out.LineItem = &li
	}
	return out
}
