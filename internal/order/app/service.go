package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwikikusuma/pos-checkout/internal/order/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("order not found")
)

const (
	OrderStatusPending  = "PENDING"
	OrderStatusApproved = "APPROVED"
)

type Service struct {
	repo OrderRepo
}

func NewService(repo OrderRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.OrderResponse, error) {
	if strings.TrimSpace(req.Session) == "" {
		return domain.OrderResponse{}, fmt.Errorf("%w: session is required", ErrInvalidInput)
	}
	if req.PaymentMethod == "" {
		return domain.OrderResponse{}, fmt.Errorf("%w: payment method is required", ErrInvalidInput)
	}

	orderItem := make([]domain.OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return domain.OrderResponse{}, fmt.Errorf("%w: item %d: quantity must be positive, got %d", ErrInvalidInput, i, item.Quantity)
		}
		total := item.LineTotalAmount
		if total == 0 {
			total = item.UnitAmount * int64(item.Quantity)
		}

		orderItem = append(orderItem, domain.OrderItem{
			SKU:             item.SKU,
			Name:            item.Name,
			Type:            item.Type,
			UnitAmount:      item.UnitAmount,
			Quantity:        item.Quantity,
			LineTotalAmount: total,
		})
	}

	status := OrderStatusApproved
	if req.Offline {
		status = OrderStatusPending
	}

	order := domain.Order{
		Session:       req.Session,
		ShopID:        req.ShopID,
		Status:        status,
		PaymentMethod: req.PaymentMethod,
		ProcessID:     req.ProcessID,
		TotalAmount:   req.TotalAmount,
		OrderItems:    orderItem,
	}

	createdOrder, err := s.repo.CreateOrderTx(ctx, order)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	return domain.OrderResponse{
		ID:          createdOrder.ID,
		Status:      createdOrder.Status,
		TotalAmount: createdOrder.TotalAmount,
		CreatedAt:   createdOrder.CreatedAt,
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Order{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListOrders(ctx, limit, cursor)
}
