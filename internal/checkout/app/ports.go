package app

import (
	"context"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

type Backend interface {
	CreateCheckoutInfo(ctx context.Context, c cart.BackendCart, accepted []domain.PaymentMethod) (domain.Info, error)
	CreatePaymentProcess(ctx context.Context, info domain.Info, method domain.PaymentMethod, creds *domain.Credentials) (domain.Process, error)
	UpdatePaymentProcess(ctx context.Context, p domain.Process) (domain.Process, error)
	Abort(ctx context.Context, p domain.Process) error
}

type OriginFetcher interface {
	FetchOriginCandidate(ctx context.Context, href string) (domain.OriginCandidate, error)
}

// CartSnapshot is the cart as it is handed to a checkout.
type CartSnapshot struct {
	Cart  cart.BackendCart
	Total int64
	Empty bool
}

type CartSource interface {
	CheckoutSnapshot(shopID string) CartSnapshot
	// BackupAndInvalidate keeps a restorable copy of the paid cart and
	// starts a new session.
	BackupAndInvalidate()
}

type ShopLocator interface {
	CurrentShop() (domain.Shop, bool)
}

type Retrier interface {
	Enqueue(c cart.BackendCart)
	Len() int
	ProcessPendingCheckouts(ctx context.Context) SweepResult
}

type OrderRecorder interface {
	RecordOrder(ctx context.Context, s domain.Session) error
}

// StateRepo persists the orchestrator state; LoadState reports false when
// nothing was saved.
type StateRepo interface {
	LoadState(ctx context.Context) (domain.Persisted, bool, error)
	SaveState(ctx context.Context, p domain.Persisted) error
}

type QueueRepo interface {
	LoadQueue(ctx context.Context) ([]domain.SavedCart, error)
	SaveQueue(ctx context.Context, carts []domain.SavedCart) error
}

type Telemetry interface {
	Track(event string, attrs ...any)
}
