package app

import (
	"context"
	"errors"
	"testing"

	"github.com/dwikikusuma/pos-checkout/internal/order/domain"
)

type memOrderRepo struct {
	orders []domain.Order
}

func (r *memOrderRepo) CreateOrderTx(ctx context.Context, o domain.Order) (domain.Order, error) {
	o.ID = "o1"
	r.orders = append(r.orders, o)
	return o, nil
}

func (r *memOrderRepo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	for _, o := range r.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, ErrNotFound
}

func (r *memOrderRepo) ListOrders(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error) {
	if limit < len(r.orders) {
		return r.orders[:limit], "", nil
	}
	return r.orders, "", nil
}

func TestCreateOrder(t *testing.T) {
	t.Run("rejects missing session", func(t *testing.T) {
		svc := NewService(&memOrderRepo{})
		_, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{PaymentMethod: "VISA"})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		svc := NewService(&memOrderRepo{})
		_, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{
			Session:       "s1",
			PaymentMethod: "VISA",
			Items:         []domain.OrderItemRequest{{SKU: "A", Quantity: 0}},
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("fills line totals and status", func(t *testing.T) {
		repo := &memOrderRepo{}
		svc := NewService(repo)
		resp, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{
			Session:       "s1",
			PaymentMethod: "QRCODE_OFFLINE",
			Offline:       true,
			TotalAmount:   300,
			Items:         []domain.OrderItemRequest{{SKU: "A", UnitAmount: 150, Quantity: 2}},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if resp.Status != OrderStatusPending || resp.TotalAmount != 300 {
			t.Fatalf("unexpected response: %+v", resp)
		}
		if got := repo.orders[0].OrderItems[0].LineTotalAmount; got != 300 {
			t.Fatalf("line total = %d", got)
		}
	})
}

func TestListOrdersClampsLimit(t *testing.T) {
	repo := &memOrderRepo{orders: make([]domain.Order, 150)}
	svc := NewService(repo)

	got, _, err := svc.ListOrders(context.Background(), 1000, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
}
