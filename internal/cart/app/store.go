package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/pos-checkout/pkg/dispatch"
)

var (
	ErrEntryNotFound   = errors.New("cart entry not found")
	ErrInvalidTaxation = errors.New("invalid taxation")
	ErrInvalidEntry    = errors.New("invalid cart entry")
)

const DefaultBackupTTL = 5 * time.Minute

type Options struct {
	// MaxAge after which an untouched cart is invalidated. Zero disables.
	MaxAge time.Duration
	// Totals at or above these raise a one-shot LimitReached. Zero disables.
	CheckoutLimit int64
	PaymentLimit  int64
	BackupTTL     time.Duration
	Now           func() time.Time
}

// Store owns the cart. Every mutation runs under one mutex and never
// performs I/O while holding it; notifications and persistence are posted
// to the dispatch queue in mutation order.
type Store struct {
	repo    SnapshotRepo
	catalog Catalog
	queue   *dispatch.Queue
	events  *dispatch.Registry[Event]
	log     *slog.Logger
	opts    Options

	mu      sync.Mutex
	cart    domain.Cart
	methods []checkout.PaymentMethod
}

func NewStore(repo SnapshotRepo, cat Catalog, queue *dispatch.Queue, log *slog.Logger, opts Options) *Store {
	if opts.BackupTTL <= 0 {
		opts.BackupTTL = DefaultBackupTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		repo:    repo,
		catalog: cat,
		queue:   queue,
		events:  dispatch.NewRegistry[Event](queue),
		log:     log,
		opts:    opts,
	}
	s.cart = domain.Cart{Session: uuid.NewString(), UpdatedAt: opts.Now()}
	return s
}

// Load restores the persisted cart. Unreadable state is treated as no
// cart at all.
func (s *Store) Load(ctx context.Context) {
	var loaded domain.Cart
	ok := false

	data, err := s.repo.LoadCart(ctx)
	switch {
	case err != nil:
		s.log.Warn("load cart snapshot", slog.Any("error", err))
	case len(data) == 0:
	default:
		if err := json.Unmarshal(data, &loaded); err != nil {
			s.log.Warn("discarding malformed cart snapshot", slog.Any("error", err))
		} else {
			ok = loaded.Session != ""
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.cart = loaded
	}
	s.checkAgeLocked()
}

func (s *Store) Subscribe(fn func(Event)) func() {
	return s.events.Subscribe(fn)
}

func (s *Store) Add(e domain.Entry) error {
	return s.Insert(e, 0)
}

// Insert places e at index. Mergeable entries for a product already in the
// cart are folded into the existing entry, which moves to index. Coupons
// always go last.
func (s *Store) Insert(e domain.Entry, index int) error {
	if e.ID == "" || (e.Kind == domain.KindProduct && e.Product == nil) ||
		(e.Kind == domain.KindCoupon && e.Coupon == nil) || e.Kind == domain.KindLineItem {
		return ErrInvalidEntry
	}
	if e.Quantity <= 0 {
		e.Quantity = 1
	}
	e.LineItem = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	s.invalidateOnlineLocked()

	if e.Kind == domain.KindCoupon {
		s.cart.Entries = append(s.cart.Entries, e)
		s.cart.AddCount++
		s.commitLocked(Event{Type: EventItemAdded, Index: len(s.cart.Entries) - 1, Entry: &e})
		return nil
	}

	evType := EventItemAdded
	if target := s.cart.MergeTarget(e); target >= 0 {
		merged := s.cart.Entries[target]
		merged.Quantity += e.Quantity
		s.cart.Entries = slices.Delete(s.cart.Entries, target, target+1)
		e = merged
		evType = EventQuantityChanged
	}

	index = min(max(index, 0), s.cart.FirstCouponIndex())
	s.cart.Entries = slices.Insert(s.cart.Entries, index, e)
	s.cart.AddCount++
	s.commitLocked(Event{Type: evType, Index: index, Entry: &e})
	return nil
}

func (s *Store) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.removeLocked(index)
}

func (s *Store) RemoveByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.removeLocked(s.cart.IndexOf(id))
}

func (s *Store) removeLocked(index int) error {
	if index < 0 || index >= len(s.cart.Entries) || s.cart.Entries[index].Kind == domain.KindLineItem {
		return ErrEntryNotFound
	}
	id := s.cart.Entries[index].ID
	s.invalidateOnlineLocked()
	index = s.cart.IndexOf(id)

	removed := s.cart.Entries[index]
	s.cart.Entries = slices.Delete(s.cart.Entries, index, index+1)
	s.commitLocked(Event{Type: EventItemRemoved, Index: index, Entry: &removed})
	return nil
}

// SetQuantity changes the quantity of entry id; a quantity of zero or less
// removes it.
func (s *Store) SetQuantity(id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()

	index := s.cart.IndexOf(id)
	if index < 0 || s.cart.Entries[index].Kind == domain.KindLineItem {
		return ErrEntryNotFound
	}
	if quantity <= 0 {
		return s.removeLocked(index)
	}

	s.invalidateOnlineLocked()
	index = s.cart.IndexOf(id)
	s.cart.Entries[index].Quantity = quantity
	e := s.cart.Entries[index]
	s.commitLocked(Event{Type: EventQuantityChanged, Index: index, Entry: &e})
	return nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	s.clearLocked()
}

func (s *Store) clearLocked() {
	s.invalidateOnlineLocked()
	s.cart.Entries = nil
	s.cart.InvalidProducts = nil
	s.cart.InvalidDepositVoucher = false
	s.commitLocked(Event{Type: EventCleared})
}

// Invalidate starts a new session with an empty cart. The backup survives.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

func (s *Store) invalidateLocked() {
	s.cart.Session = uuid.NewString()
	s.cart.Taxation = domain.TaxationUndecided
	s.cart.Violations = nil
	s.clearLocked()
}

// checkAgeLocked invalidates a cart that was not touched for MaxAge.
func (s *Store) checkAgeLocked() {
	if s.opts.MaxAge <= 0 || s.cart.UpdatedAt.IsZero() {
		return
	}
	if s.opts.Now().Sub(s.cart.UpdatedAt) > s.opts.MaxAge {
		s.log.Info("cart expired", slog.String("session", s.cart.Session))
		s.invalidateLocked()
	}
}

func (s *Store) Backup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backupLocked()
	s.persistLocked()
}

// BackupAndInvalidate keeps a restorable copy of a paid cart and starts a
// new session in one step.
func (s *Store) BackupAndInvalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backupLocked()
	s.invalidateLocked()
}

func (s *Store) backupLocked() {
	entries := make([]domain.Entry, 0, len(s.cart.Entries))
	for _, e := range s.cart.Clone().Entries {
		if e.Kind == domain.KindLineItem {
			continue
		}
		e.LineItem = nil
		entries = append(entries, e)
	}
	s.cart.Backup = &domain.Backup{Entries: entries, CreatedAt: s.opts.Now()}
}

func (s *Store) IsRestorable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Backup.Valid(s.opts.Now(), s.opts.BackupTTL)
}

// Restore replaces the cart contents with the backup if it is still valid.
func (s *Store) Restore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cart.Backup.Valid(s.opts.Now(), s.opts.BackupTTL) {
		return false
	}
	s.invalidateOnlineLocked()
	s.cart.Entries = s.cart.Backup.Entries
	s.cart.Backup = nil
	s.commitLocked(Event{Type: EventRestored})
	return true
}

// UpdateProducts refreshes the product of every entry from the catalog.
// It does nothing unless the catalog is up to date.
func (s *Store) UpdateProducts(ctx context.Context) {
	if s.catalog == nil || !s.catalog.IsUpToDate() {
		return
	}

	s.mu.Lock()
	skus := make(map[string]string)
	for _, e := range s.cart.Entries {
		if e.Kind == domain.KindProduct && e.Product != nil {
			skus[e.ID] = e.Product.SKU
		}
	}
	s.mu.Unlock()

	fresh := make(map[string]catalog.Product, len(skus))
	for _, sku := range skus {
		if _, done := fresh[sku]; done {
			continue
		}
		p, err := s.catalog.FindBySKU(ctx, sku)
		if err != nil {
			s.log.Debug("refresh product", slog.String("sku", sku), slog.Any("error", err))
			continue
		}
		fresh[sku] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i, e := range s.cart.Entries {
		if e.Kind != domain.KindProduct || e.Product == nil || skus[e.ID] != e.Product.SKU {
			continue
		}
		p, ok := fresh[e.Product.SKU]
		if !ok || sameProduct(*e.Product, p) {
			continue
		}
		s.cart.Entries[i].Product = &p
		changed = true
	}
	if !changed {
		return
	}
	s.invalidateOnlineLocked()
	s.commitLocked(Event{Type: EventProductsUpdated})
}

func sameProduct(a, b catalog.Product) bool {
	if a.SKU != b.SKU || a.Name != b.Name || a.Type != b.Type || a.Price != b.Price ||
		a.ReferenceUnit != b.ReferenceUnit || a.MinAge != b.MinAge {
		return false
	}
	if (a.Deposit == nil) != (b.Deposit == nil) {
		return false
	}
	return a.Deposit == nil || (a.Deposit.SKU == b.Deposit.SKU && a.Deposit.Price == b.Deposit.Price)
}

func (s *Store) SetTaxation(t domain.Taxation) error {
	if !t.Valid() {
		return ErrInvalidTaxation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()

	if s.cart.Taxation == t {
		return nil
	}
	s.invalidateOnlineLocked()
	s.cart.Taxation = t
	s.commitLocked(Event{Type: EventTaxationChanged})
	return nil
}

func (s *Store) ViolationNotifications() []domain.ViolationNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cart.Violations)
}

func (s *Store) RemoveViolationNotifications(acked []domain.ViolationNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Violations = slices.DeleteFunc(s.cart.Violations, func(v domain.ViolationNotification) bool {
		for _, a := range acked {
			if a.RefersTo == v.RefersTo && a.Type == v.Type {
				return true
			}
		}
		return false
	})
	s.persistLocked()
}

// invalidateOnlineLocked drops everything the last reconciliation added:
// the authoritative total, backend overrides and synthetic entries.
func (s *Store) invalidateOnlineLocked() {
	s.cart.OnlineTotal = nil
	s.methods = nil
	s.cart.Entries = slices.DeleteFunc(s.cart.Entries, func(e domain.Entry) bool {
		return e.Kind == domain.KindLineItem
	})
	for i := range s.cart.Entries {
		s.cart.Entries[i].LineItem = nil
	}
}

// commitLocked finishes a structural mutation.
func (s *Store) commitLocked(ev Event) {
	s.cart.ModCount++
	s.cart.UpdatedAt = s.opts.Now()
	ev.ModCount = s.cart.ModCount
	s.events.Publish(ev)
	s.checkLimitsLocked()
	s.persistLocked()
}

func (s *Store) checkLimitsLocked() {
	total := s.cart.TotalPrice()
	s.cart.CheckoutLimitReached = s.crossLocked(total, s.opts.CheckoutLimit, s.cart.CheckoutLimitReached, LimitCheckoutUnavailable)
	s.cart.PaymentLimitReached = s.crossLocked(total, s.opts.PaymentLimit, s.cart.PaymentLimitReached, LimitNotAllMethodsAvailable)
}

func (s *Store) crossLocked(total, limit int64, reached bool, kind Limit) bool {
	if limit <= 0 || total < limit {
		return false
	}
	if !reached {
		s.events.Publish(Event{Type: EventLimitReached, ModCount: s.cart.ModCount, Limit: kind})
	}
	return true
}

func (s *Store) persistLocked() {
	if s.repo == nil {
		return
	}
	data, err := json.Marshal(s.cart)
	if err != nil {
		s.log.Error("encode cart snapshot", slog.Any("error", err))
		return
	}
	s.queue.Post(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.SaveCart(ctx, data); err != nil {
			s.log.Error("save cart snapshot", slog.Any("error", err))
		}
	})
}

func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.TotalPrice()
}

func (s *Store) TotalDepositPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.DepositTotal()
}

func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.TotalQuantity()
}

func (s *Store) IsOnlinePrice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.IsOnlinePrice()
}

func (s *Store) ModCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ModCount
}

func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.Session
}

func (s *Store) InvalidProducts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cart.InvalidProducts)
}

func (s *Store) HasInvalidDepositVoucher() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.InvalidDepositVoucher
}

func (s *Store) AvailablePaymentMethods() []checkout.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.methods)
}

func (s *Store) Entries() []domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.Clone().Entries
}

func (s *Store) IndexOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.IndexOf(id)
}

func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.Clone()
}

func (s *Store) BackendCart(shopID string) domain.BackendCart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAgeLocked()
	return s.cart.BackendCart(shopID)
}
