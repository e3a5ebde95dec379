package app

import (
	"context"

	"github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

type ProductRepo interface {
	Save(ctx context.Context, p domain.Product) (domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (domain.Product, error)
	GetByCode(ctx context.Context, code string) (domain.Product, error)
	List(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error)
}
