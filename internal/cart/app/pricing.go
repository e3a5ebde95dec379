package app

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

var ErrMissingLineItem = errors.New("pricing response is missing a line item")

const (
	syntheticDiscountID = "discount"

	violationCouponInvalid       = "coupon_invalid"
	violationCouponNotValid      = "coupon_currently_not_valid"
	violationCouponAlreadyVoided = "coupon_already_voided"
)

// pricingSnapshot returns what a reconciliation sends, tagged with the
// mod count it belongs to.
func (s *Store) pricingSnapshot(shopID string) (int64, domain.BackendCart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.ModCount, s.cart.BackendCart(shopID), s.cart.Empty()
}

// applyPricing commits a pricing response. It returns false without
// touching the cart when modCount is stale, and an error when the response
// does not price every product entry.
func (s *Store) applyPricing(modCount int64, info checkout.Info, replacements map[string]catalog.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()

	if s.cart.ModCount != modCount {
		return false, nil
	}

	lineItems := make(map[string]domain.LineItem, len(info.LineItems))
	for _, li := range info.LineItems {
		lineItems[li.ID] = li
	}
	matched := make(map[string]bool, len(info.LineItems))

	var products, coupons []domain.Entry
	for _, e := range s.cart.Clone().Entries {
		switch e.Kind {
		case domain.KindLineItem:
			continue
		case domain.KindProduct:
			li, ok := lineItems[e.ID]
			if !ok {
				return false, fmt.Errorf("%w: entry %s", ErrMissingLineItem, e.ID)
			}
			if li.SKU != "" && e.Product != nil && li.SKU != e.Product.SKU {
				p, ok := replacements[li.SKU]
				if !ok {
					return false, fmt.Errorf("%w: replacement %s not resolved", ErrMissingLineItem, li.SKU)
				}
				e.Product = &p
			}
			e.LineItem = &li
			matched[li.ID] = true
			products = append(products, e)
		case domain.KindCoupon:
			e.LineItem = nil
			if li, ok := lineItems[e.ID]; ok {
				e.LineItem = &li
				matched[li.ID] = true
			}
			coupons = append(coupons, e)
		}
	}

	var synthetic, syntheticCoupons []domain.Entry
	var discount *domain.LineItem
	for _, li := range info.LineItems {
		if matched[li.ID] {
			continue
		}
		switch li.Type {
		case domain.LineItemDiscount:
			if discount == nil {
				discount = &domain.LineItem{ID: syntheticDiscountID, Name: "Discount", Type: domain.LineItemDiscount, Amount: 1}
			}
			discount.Price += li.TotalPrice
			discount.TotalPrice += li.TotalPrice
		case domain.LineItemCoupon:
			syntheticCoupons = append(syntheticCoupons, domain.NewLineItemEntry(li))
		default:
			synthetic = append(synthetic, domain.NewLineItemEntry(li))
		}
	}
	if discount != nil {
		synthetic = append(synthetic, domain.NewLineItemEntry(*discount))
	}

	var notes []domain.ViolationNotification
	for _, v := range info.Violations {
		if !isCouponViolation(v.Type) {
			continue
		}
		idx := slices.IndexFunc(coupons, func(e domain.Entry) bool { return e.ID == v.RefersTo })
		if idx < 0 {
			continue
		}
		name := ""
		if c := coupons[idx].Coupon; c != nil {
			name = c.Name
		}
		coupons = slices.Delete(coupons, idx, idx+1)
		notes = append(notes, domain.ViolationNotification{
			Name:     name,
			RefersTo: v.RefersTo,
			Type:     v.Type,
			Message:  v.Message,
		})
	}

	entries := make([]domain.Entry, 0, len(products)+len(synthetic)+len(coupons)+len(syntheticCoupons))
	entries = append(entries, products...)
	entries = append(entries, synthetic...)
	entries = append(entries, coupons...)
	entries = append(entries, syntheticCoupons...)

	total := info.Price.Total
	s.cart.Entries = entries
	s.cart.OnlineTotal = &total
	s.cart.InvalidProducts = nil
	s.cart.InvalidDepositVoucher = false
	s.methods = slices.Clone(info.AvailableMethods)

	if len(notes) > 0 {
		for _, n := range notes {
			if !slices.ContainsFunc(s.cart.Violations, func(v domain.ViolationNotification) bool {
				return v.RefersTo == n.RefersTo && v.Type == n.Type
			}) {
				s.cart.Violations = append(s.cart.Violations, n)
			}
		}
		s.events.Publish(Event{Type: EventViolationDetected, ModCount: modCount, Violations: notes})
	}

	s.checkLimitsLocked()
	s.events.Publish(Event{Type: EventPricesUpdated, ModCount: modCount})
	s.persistLocked()
	return true, nil
}

func isCouponViolation(t string) bool {
	switch t {
	case violationCouponInvalid, violationCouponNotValid, violationCouponAlreadyVoided:
		return true
	}
	return false
}

// applyPricingFailure falls back to local prices and records what the
// failure says about the cart. It returns false when modCount is stale.
func (s *Store) applyPricingFailure(modCount int64, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart.ModCount != modCount {
		return false
	}

	s.invalidateOnlineLocked()

	s.cart.InvalidProducts = nil
	var invalid *checkout.InvalidProductsError
	if errors.As(cause, &invalid) {
		s.cart.InvalidProducts = slices.Clone(invalid.SKUs)
	}
	s.cart.InvalidDepositVoucher = errors.Is(cause, checkout.ErrInvalidDepositVoucher)

	s.log.Info("pricing not confirmed",
		slog.Int64("mod_count", modCount),
		slog.Any("error", cause),
	)

	s.checkLimitsLocked()
	s.events.Publish(Event{Type: EventPricesUpdated, ModCount: modCount})
	s.persistLocked()
	return true
}

// resetPricing is the outcome of reconciling an empty cart.
func (s *Store) resetPricing(modCount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart.ModCount != modCount {
		return
	}
	s.invalidateOnlineLocked()
	s.cart.InvalidProducts = nil
	s.cart.InvalidDepositVoucher = false
	s.checkLimitsLocked()
	s.events.Publish(Event{Type: EventPricesUpdated, ModCount: modCount})
}
