package app

import (
	"context"
	"sync"
	"testing"
	"time"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

type fakeBackend struct {
	mu sync.Mutex

	infoFn    func(call int, c cart.BackendCart) (domain.Info, error)
	processFn func(call int, method domain.PaymentMethod) (domain.Process, error)
	updateFn  func(call int, p domain.Process) (domain.Process, error)
	abortFn   func(call int) error

	infoCalls    int
	processCalls int
	updateCalls  int
	abortCalls   int
	methods      []domain.PaymentMethod
}

func (f *fakeBackend) CreateCheckoutInfo(ctx context.Context, c cart.BackendCart, accepted []domain.PaymentMethod) (domain.Info, error) {
	f.mu.Lock()
	f.infoCalls++
	n, fn := f.infoCalls, f.infoFn
	f.mu.Unlock()

	if fn == nil {
		return domain.Info{
			Session:          c.Session,
			Price:            domain.Price{Total: 100},
			AvailableMethods: []domain.PaymentMethod{domain.MethodGatekeeperTerminal},
		}, nil
	}
	return fn(n, c)
}

func (f *fakeBackend) CreatePaymentProcess(ctx context.Context, info domain.Info, method domain.PaymentMethod, creds *domain.Credentials) (domain.Process, error) {
	f.mu.Lock()
	f.processCalls++
	f.methods = append(f.methods, method)
	n, fn := f.processCalls, f.processFn
	f.mu.Unlock()

	if fn == nil {
		return domain.Process{ID: "p1", PaymentState: domain.PaymentPending, PaymentMethod: method}, nil
	}
	return fn(n, method)
}

func (f *fakeBackend) UpdatePaymentProcess(ctx context.Context, p domain.Process) (domain.Process, error) {
	f.mu.Lock()
	f.updateCalls++
	n, fn := f.updateCalls, f.updateFn
	f.mu.Unlock()

	if fn == nil {
		return p, nil
	}
	return fn(n, p)
}

func (f *fakeBackend) Abort(ctx context.Context, p domain.Process) error {
	f.mu.Lock()
	f.abortCalls++
	n, fn := f.abortCalls, f.abortFn
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(n)
}

func (f *fakeBackend) counts() (info, process, update, abort int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoCalls, f.processCalls, f.updateCalls, f.abortCalls
}

type fakeCart struct {
	mu       sync.Mutex
	snapshot CartSnapshot
	backups  int
}

func (c *fakeCart) CheckoutSnapshot(shopID string) CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snapshot
	s.Cart.ShopID = shopID
	return s
}

func (c *fakeCart) BackupAndInvalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backups++
}

func (c *fakeCart) backupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backups
}

type staticShops struct {
	shop domain.Shop
	ok   bool
}

func (s staticShops) CurrentShop() (domain.Shop, bool) {
	return s.shop, s.ok
}

type memStateRepo struct {
	mu    sync.Mutex
	saved *domain.Persisted
}

func (r *memStateRepo) LoadState(ctx context.Context) (domain.Persisted, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		return domain.Persisted{}, false, nil
	}
	return *r.saved, true, nil
}

func (r *memStateRepo) SaveState(ctx context.Context, p domain.Persisted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = &p
	return nil
}

type memQueueRepo struct {
	mu    sync.Mutex
	items []domain.SavedCart
}

func (r *memQueueRepo) LoadQueue(ctx context.Context) ([]domain.SavedCart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SavedCart(nil), r.items...), nil
}

func (r *memQueueRepo) SaveQueue(ctx context.Context, items []domain.SavedCart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]domain.SavedCart(nil), items...)
	return nil
}

func (r *memQueueRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
