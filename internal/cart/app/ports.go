package app

import (
	"context"

	"github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

// SnapshotRepo persists the cart as an opaque blob. LoadCart returns
// (nil, nil) when nothing was saved yet.
type SnapshotRepo interface {
	LoadCart(ctx context.Context) ([]byte, error)
	SaveCart(ctx context.Context, data []byte) error
}

type Catalog interface {
	FindBySKU(ctx context.Context, sku string) (catalog.Product, error)
	IsUpToDate() bool
}

type InfoCreator interface {
	CreateCheckoutInfo(ctx context.Context, cart domain.BackendCart, accepted []checkout.PaymentMethod) (checkout.Info, error)
}
