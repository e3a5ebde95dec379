package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	repo     ProductRepo
	freshFor time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	syncedAt time.Time
}

// NewService returns a catalog service. freshFor is how long a catalog sync
// is trusted; zero means the catalog never counts as up to date.
func NewService(repo ProductRepo, freshFor time.Duration) *Service {
	return &Service{
		repo:     repo,
		freshFor: freshFor,
		now:      time.Now,
	}
}

func (s *Service) SaveProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	p.Price.Currency = strings.TrimSpace(p.Price.Currency)

	if p.SKU == "" || p.Name == "" || p.Price.Currency == "" || p.Price.Amount < 0 {
		return domain.Product{}, ErrInvalidInput
	}
	if p.Type == "" {
		p.Type = domain.ProductDefault
	}
	if !p.Type.Valid() || p.MinAge < 0 {
		return domain.Product{}, ErrInvalidInput
	}
	if p.ReferenceUnit == "" {
		p.ReferenceUnit = domain.UnitPiece
	}
	if p.Type == domain.ProductUserWeighed && !p.ReferenceUnit.IsMass() && !p.ReferenceUnit.IsVolume() {
		return domain.Product{}, ErrInvalidInput
	}
	if p.Deposit != nil && strings.TrimSpace(p.Deposit.SKU) == "" {
		return domain.Product{}, ErrInvalidInput
	}

	codes := p.Codes[:0:0]
	for _, c := range p.Codes {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	p.Codes = codes

	return s.repo.Save(ctx, p)
}

func (s *Service) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if strings.TrimSpace(sku) == "" {
		return domain.Product{}, ErrInvalidInput
	}
	return s.repo.GetBySKU(ctx, strings.TrimSpace(sku))
}

func (s *Service) FindByCode(ctx context.Context, code string) (domain.Product, error) {
	if strings.TrimSpace(code) == "" {
		return domain.Product{}, ErrInvalidInput
	}
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

func (s *Service) ListProducts(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, query, limit, cursor)
}

// MarkSynced records a completed catalog sync.
func (s *Service) MarkSynced() {
	s.mu.Lock()
	s.syncedAt = s.now()
	s.mu.Unlock()
}

func (s *Service) IsUpToDate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.syncedAt.IsZero() || s.freshFor <= 0 {
		return false
	}
	return s.now().Sub(s.syncedAt) < s.freshFor
}
