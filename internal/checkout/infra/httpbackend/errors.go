package httpbackend

import (
	"encoding/json"

	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

type errorDetail struct {
	Type string `json:"type"`
	SKU  string `json:"sku"`
}

type errorBody struct {
	Error struct {
		Type    string        `json:"type"`
		Message string        `json:"message"`
		Details []errorDetail `json:"details"`
	} `json:"error"`
}

// decodeError maps a non-2xx reply onto the checkout error taxonomy.
// Unknown or unreadable bodies become a StatusError.
func decodeError(status int, raw []byte) error {
	var b errorBody
	_ = json.Unmarshal(raw, &b)

	switch b.Error.Type {
	case "shop_not_found", "no_shop":
		return domain.ErrNoShop
	case "invalid_cart_item":
		skus := make([]string, 0, len(b.Error.Details))
		for _, d := range b.Error.Details {
			if d.SKU != "" {
				skus = append(skus, d.SKU)
			}
		}
		return &domain.InvalidProductsError{SKUs: skus}
	case "no_available_method":
		return domain.ErrNoPaymentMethod
	case "invalid_deposit_return_voucher":
		return domain.ErrInvalidDepositVoucher
	}
	return &domain.StatusError{Status: status, Type: b.Error.Type, Message: b.Error.Message}
}
