package adapter

import (
	cartapp "github.com/dwikikusuma/pos-checkout/internal/cart/app"
	checkoutapp "github.com/dwikikusuma/pos-checkout/internal/checkout/app"
)

// CartStoreReader exposes the cart store as the orchestrator's CartSource.
type CartStoreReader struct {
	store *cartapp.Store
}

func NewCartStoreReader(store *cartapp.Store) *CartStoreReader {
	return &CartStoreReader{store: store}
}

func (r *CartStoreReader) CheckoutSnapshot(shopID string) checkoutapp.CartSnapshot {
	cart := r.store.Snapshot()
	return checkoutapp.CartSnapshot{
		Cart:  cart.BackendCart(shopID),
		Total: cart.TotalPrice(),
		Empty: cart.Empty(),
	}
}

func (r *CartStoreReader) BackupAndInvalidate() {
	r.store.BackupAndInvalidate()
}
