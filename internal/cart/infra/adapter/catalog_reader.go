package adapter

import (
	"context"

	catalogapp "github.com/dwikikusuma/pos-checkout/internal/catalog/app"
	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

// CatalogServiceReader exposes the catalog service as the cart's Catalog
// port.
type CatalogServiceReader struct {
	svc *catalogapp.Service
}

func NewCatalogServiceReader(svc *catalogapp.Service) *CatalogServiceReader {
	return &CatalogServiceReader{svc: svc}
}

func (r *CatalogServiceReader) FindBySKU(ctx context.Context, sku string) (catalog.Product, error) {
	return r.svc.FindBySKU(ctx, sku)
}

func (r *CatalogServiceReader) IsUpToDate() bool {
	return r.svc.IsUpToDate()
}
