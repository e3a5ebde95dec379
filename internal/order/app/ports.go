package app

import (
	"context"

	"github.com/dwikikusuma/pos-checkout/internal/order/domain"
)

type OrderRepo interface {
	CreateOrderTx(ctx context.Context, order domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error)
}
