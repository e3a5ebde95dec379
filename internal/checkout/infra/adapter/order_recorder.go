package adapter

import (
	"context"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	orderapp "github.com/dwikikusuma/pos-checkout/internal/order/app"
	order "github.com/dwikikusuma/pos-checkout/internal/order/domain"
)

// OrderServiceRecorder writes approved checkouts to the order history.
type OrderServiceRecorder struct {
	svc *orderapp.Service
}

func NewOrderServiceRecorder(svc *orderapp.Service) *OrderServiceRecorder {
	return &OrderServiceRecorder{svc: svc}
}

func (r *OrderServiceRecorder) RecordOrder(ctx context.Context, s domain.Session) error {
	_, err := r.svc.CreateOrder(ctx, OrderRequest(s))
	return err
}

// OrderRequest builds the order for a checkout. Backend line items are
// preferred; a checkout approved offline only has the cart that was sent.
func OrderRequest(s domain.Session) order.CreateOrderRequest {
	req := order.CreateOrderRequest{
		Session:       s.Cart.Session,
		ShopID:        s.Cart.ShopID,
		PaymentMethod: string(s.Method),
		TotalAmount:   s.PriceToPay,
		Offline:       s.Process == nil,
	}
	if s.Process != nil {
		req.ProcessID = s.Process.ID
	}

	if s.Info != nil && len(s.Info.LineItems) > 0 {
		for _, li := range s.Info.LineItems {
			req.Items = append(req.Items, order.OrderItemRequest{
				SKU:             li.SKU,
				Name:            li.Name,
				Type:            string(li.Type),
				UnitAmount:      li.Price,
				Quantity:        quantity(li.Amount),
				LineTotalAmount: li.TotalPrice,
			})
		}
		return req
	}

	for _, it := range s.Cart.Items {
		req.Items = append(req.Items, order.OrderItemRequest{
			SKU:      it.SKU,
			Type:     string(cart.LineItemDefault),
			Quantity: quantity(it.Amount),
		})
	}
	return req
}

func quantity(n int) int32 {
	if n <= 0 {
		return 1
	}
	return int32(n)
}
