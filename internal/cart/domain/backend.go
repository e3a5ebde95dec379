package domain

import catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"

// BackendCart is the snapshot of a cart sent for pricing and checkout.
type BackendCart struct {
	Session  string        `json:"session"`
	ShopID   string        `json:"shopID"`
	Items    []BackendItem `json:"items"`
	Taxation Taxation      `json:"taxation,omitempty"`
}

type BackendItem struct {
	ID          string       `json:"id"`
	SKU         string       `json:"sku,omitempty"`
	Amount      int          `json:"amount"`
	ScannedCode string       `json:"scannedCode,omitempty"`
	Price       *int64       `json:"price,omitempty"`
	Weight      *int64       `json:"weight,omitempty"`
	WeightUnit  catalog.Unit `json:"weightUnit,omitempty"`
	Units       *int64       `json:"units,omitempty"`
	CouponID    string       `json:"couponID,omitempty"`
}

// BackendItem converts the entry to its wire form. Synthetic line-item
// entries are backend output and are never sent back.
func (e Entry) BackendItem() (BackendItem, bool) {
	switch e.Kind {
	case KindProduct:
		if e.Product == nil {
			return BackendItem{}, false
		}
		item := BackendItem{
			ID:          e.ID,
			SKU:         e.Product.SKU,
			Amount:      e.Quantity,
			ScannedCode: e.ScannedCode.Code,
		}
		if e.ScannedCode.HasEmbeddedData() {
			item.Amount = 1
			v := e.ScannedCode.Embedded
			switch {
			case e.ScannedCode.HasEmbeddedPrice():
				item.Price = &v
			case e.ScannedCode.HasEmbeddedWeight():
				item.Weight = &v
				item.WeightUnit = e.ScannedCode.EmbeddedUnit
			case e.ScannedCode.HasEmbeddedUnits():
				item.Units = &v
			}
		} else if e.Unit() != catalog.UnitPiece {
			// user weighed: the entered quantity is the weight
			w := int64(e.Quantity)
			item.Amount = 1
			item.Weight = &w
			item.WeightUnit = e.Unit()
		}
		return item, true
	case KindCoupon:
		if e.Coupon == nil {
			return BackendItem{}, false
		}
		return BackendItem{
			ID:          e.ID,
			Amount:      1,
			ScannedCode: e.ScannedCode.Code,
			CouponID:    e.Coupon.ID,
		}, true
	}
	return BackendItem{}, false
}
