package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

type ReconcilerOptions struct {
	ShopID          string
	Debounce        time.Duration
	Timeout         time.Duration
	AcceptedMethods []checkout.PaymentMethod
}

// Reconciler keeps the store's prices in line with the backend. Store
// mutations schedule a debounced update; only the latest request may
// commit, and only if the cart did not change while it was in flight.
type Reconciler struct {
	store   *Store
	backend InfoCreator
	catalog Catalog
	log     *slog.Logger
	opts    ReconcilerOptions

	mu           sync.Mutex
	timer        *time.Timer
	timerSeq     uint64
	pendingForce bool
	cancel       context.CancelFunc
	seq          uint64
	lastApplied  int64
	closed       bool

	wg          sync.WaitGroup
	unsubscribe func()
}

func NewReconciler(store *Store, backend InfoCreator, cat Catalog, log *slog.Logger, opts ReconcilerOptions) *Reconciler {
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	r := &Reconciler{
		store:       store,
		backend:     backend,
		catalog:     cat,
		log:         log,
		opts:        opts,
		lastApplied: -1,
	}
	r.unsubscribe = store.Subscribe(func(e Event) {
		if e.Type.Structural() {
			r.Update(false, true)
		}
	})
	return r
}

// Update requests a reconciliation. With debounce the request runs after
// the debounce delay and any later call reschedules it. Without force an
// update for an already applied mod count is skipped.
func (r *Reconciler) Update(force, debounce bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	force = force || r.pendingForce

	if debounce {
		r.pendingForce = force
		r.timerSeq++
		seq := r.timerSeq
		r.timer = time.AfterFunc(r.opts.Debounce, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.closed || r.timerSeq != seq {
				return
			}
			f := r.pendingForce
			r.timer = nil
			r.pendingForce = false
			r.startLocked(f)
		})
		return
	}

	r.pendingForce = false
	r.startLocked(force)
}

func (r *Reconciler) startLocked(force bool) {
	modCount, cart, empty := r.store.pricingSnapshot(r.opts.ShopID)
	if !force && modCount == r.lastApplied {
		return
	}

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.seq++

	if empty {
		r.lastApplied = modCount
		r.store.resetPricing(modCount)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	r.cancel = cancel
	seq := r.seq

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.reconcile(ctx, seq, modCount, cart)
	}()
}

func (r *Reconciler) current(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.seq == seq
}

func (r *Reconciler) reconcile(ctx context.Context, seq uint64, modCount int64, cart domain.BackendCart) {
	info, err := r.backend.CreateCheckoutInfo(ctx, cart, r.opts.AcceptedMethods)
	if !r.current(seq) {
		return
	}

	var replacements map[string]catalog.Product
	if err == nil {
		replacements, err = r.resolveReplacements(ctx, cart, info)
	}

	if err == nil {
		var applied bool
		applied, err = r.store.applyPricing(modCount, info, replacements)
		if err == nil && !applied {
			r.log.Debug("discarding stale pricing", slog.Int64("mod_count", modCount))
			r.Update(false, false)
			return
		}
	}

	if err != nil {
		if !r.store.applyPricingFailure(modCount, err) {
			r.Update(false, false)
		}
		return
	}

	r.mu.Lock()
	if r.seq == seq {
		r.lastApplied = modCount
	}
	r.mu.Unlock()
}

// resolveReplacements looks up products the backend substituted for the
// ones that were sent. This lookup blocks; its result decides whether the
// response can be committed at all.
func (r *Reconciler) resolveReplacements(ctx context.Context, cart domain.BackendCart, info checkout.Info) (map[string]catalog.Product, error) {
	sent := make(map[string]string, len(cart.Items))
	for _, it := range cart.Items {
		if it.SKU != "" {
			sent[it.ID] = it.SKU
		}
	}

	var out map[string]catalog.Product
	for _, li := range info.LineItems {
		sku, ok := sent[li.ID]
		if !ok || li.SKU == "" || li.SKU == sku {
			continue
		}
		if _, done := out[li.SKU]; done {
			continue
		}
		if r.catalog == nil {
			return nil, fmt.Errorf("replacement %s: no catalog", li.SKU)
		}
		p, err := r.catalog.FindBySKU(ctx, li.SKU)
		if err != nil {
			return nil, fmt.Errorf("replacement %s: %w", li.SKU, err)
		}
		if out == nil {
			out = make(map[string]catalog.Product)
		}
		out[li.SKU] = p
	}
	return out, nil
}

// Close cancels pending work and waits for in-flight requests.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.unsubscribe()
	r.wg.Wait()
}
