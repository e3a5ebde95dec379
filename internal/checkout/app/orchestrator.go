package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/pos-checkout/pkg/dispatch"
	"github.com/dwikikusuma/pos-checkout/pkg/logger"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

type Deps struct {
	Backend   Backend
	Cart      CartSource
	Shops     ShopLocator
	Retry     Retrier
	Origin    *OriginPoller
	Orders    OrderRecorder
	States    StateRepo
	Telemetry Telemetry
	Dispatch  *dispatch.Queue
	Log       *slog.Logger
}

type Options struct {
	PollInterval    time.Duration
	RequestTimeout  time.Duration
	AcceptedMethods []domain.PaymentMethod
	// FallbackMethod is used when checkout info cannot be fetched at all.
	// Empty disables the offline path.
	FallbackMethod domain.PaymentMethod
	Now            func() time.Time
}

// Orchestrator drives one checkout at a time through the payment states.
// Backend calls run outside the lock and carry the generation they were
// started in; a result from an older generation is dropped.
type Orchestrator struct {
	deps   Deps
	opts   Options
	events *dispatch.Registry[Event]
	log    *slog.Logger

	base context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	state     domain.State
	prev      domain.State
	session   *domain.Session
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	pollTimer *time.Timer
	closed    bool

	wg sync.WaitGroup
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}

	base, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:   deps,
		opts:   opts,
		events: dispatch.NewRegistry[Event](deps.Dispatch),
		log:    log.With("component", "checkout"),
		base:   base,
		stop:   stop,
		state:  domain.StateNone,
		prev:   domain.StateNone,
	}
	o.ctx, o.cancel = context.WithCancel(base)
	return o
}

func (o *Orchestrator) Subscribe(fn func(Event)) func() {
	return o.events.Subscribe(fn)
}

// Checkout starts a new checkout for the current cart, discarding any
// checkout in progress without notifying the backend.
func (o *Orchestrator) Checkout() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.clearLocked()

	shop, ok := o.deps.Shops.CurrentShop()
	if !ok {
		o.session = &domain.Session{StartedAt: o.opts.Now()}
		o.setStateLocked(domain.StateNoShop)
		return
	}

	snap := o.deps.Cart.CheckoutSnapshot(shop.ID)
	o.session = &domain.Session{
		Cart:       snap.Cart,
		PriceToPay: snap.Total,
		StartedAt:  o.opts.Now(),
	}
	o.setStateLocked(domain.StateHandshaking)

	cart := snap.Cart
	o.goLocked(func(ctx context.Context, gen uint64) {
		info, err := o.deps.Backend.CreateCheckoutInfo(ctx, cart, o.opts.AcceptedMethods)
		o.onInfo(gen, info, err)
	})
}

func (o *Orchestrator) onInfo(gen uint64, info domain.Info, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(gen) {
		return
	}
	if err != nil {
		o.infoFailedLocked(err)
		return
	}

	o.session.Info = &info
	o.session.PriceToPay = info.Price.Total
	methods := info.Accepted(o.opts.AcceptedMethods)
	o.session.AvailableMethods = methods

	// Being online again is a good moment to flush carts that could not
	// be checked out earlier.
	if o.deps.Retry != nil && o.deps.Retry.Len() > 0 {
		o.sweepLocked()
	}

	switch {
	case len(methods) == 0:
		o.setStateLocked(domain.StateNoPaymentMethodAvailable)
	case len(methods) == 1 && !methods[0].RequiresCredentials():
		o.payLocked(methods[0], nil)
	default:
		o.setStateLocked(domain.StateRequestPaymentMethod)
	}
}

func (o *Orchestrator) infoFailedLocked(err error) {
	o.log.Warn("create checkout info", slog.Any("error", err))

	var invalid *domain.InvalidProductsError
	switch {
	case errors.Is(err, domain.ErrNoShop):
		o.setStateLocked(domain.StateNoShop)
	case errors.As(err, &invalid):
		o.session.InvalidProducts = append([]string(nil), invalid.SKUs...)
		o.setStateLocked(domain.StateInvalidProducts)
	case errors.Is(err, domain.ErrInvalidDepositVoucher):
		o.setStateLocked(domain.StateInvalidProducts)
	case errors.Is(err, domain.ErrNoPaymentMethod):
		o.setStateLocked(domain.StateNoPaymentMethodAvailable)
	case errors.Is(err, domain.ErrConnection) && o.opts.FallbackMethod != "" && o.deps.Retry != nil:
		o.session.Method = o.opts.FallbackMethod
		o.deps.Retry.Enqueue(o.session.Cart)
		o.track("checkout_offline_fallback", slog.String("method", string(o.opts.FallbackMethod)))
		o.setStateLocked(domain.StateWaitForApproval)
	default:
		o.setStateLocked(domain.StateConnectionError)
	}
}

// Pay creates the payment process for the fetched checkout info.
func (o *Orchestrator) Pay(method domain.PaymentMethod, creds *domain.Credentials) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.session == nil || o.session.Info == nil {
		return domain.ErrNoInfo
	}
	if !method.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrNoPaymentMethod, method)
	}
	o.payLocked(method, creds)
	return nil
}

func (o *Orchestrator) payLocked(method domain.PaymentMethod, creds *domain.Credentials) {
	o.newGenLocked()
	if o.deps.Origin != nil {
		o.deps.Origin.Stop()
	}

	o.session.Method = method
	o.session.PriceToPay = o.session.Info.Price.Total
	o.session.Process = nil
	o.session.Approved = false
	o.session.FulfillmentDone = false
	o.track("payment_method_selected", slog.String("method", string(method)))
	o.setStateLocked(domain.StateVerifyingPaymentMethod)

	info := *o.session.Info
	o.goLocked(func(ctx context.Context, gen uint64) {
		p, err := o.deps.Backend.CreatePaymentProcess(ctx, info, method, creds)
		o.onProcessCreated(gen, p, err)
	})
}

func (o *Orchestrator) onProcessCreated(gen uint64, p domain.Process, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(gen) {
		return
	}
	if err != nil {
		o.log.Warn("create payment process", slog.Any("error", err))
		o.setStateLocked(domain.StateConnectionError)
		return
	}

	o.session.Process = &p
	if href := p.Links.OriginCandidate; href != "" && o.deps.Origin != nil {
		o.deps.Origin.Start(href)
	}

	switch p.AgeCheck() {
	case domain.CheckPending:
		o.abortInBackgroundLocked(p)
		o.setStateLocked(domain.StateRequestVerifyAge)
		return
	case domain.CheckFailed:
		o.abortInBackgroundLocked(p)
		o.setStateLocked(domain.StateDeniedTooYoung)
		return
	}

	if p.PaymentState == domain.PaymentProcessing {
		o.setStateLocked(domain.StatePaymentProcessing)
	} else {
		o.setStateLocked(domain.StateWaitForApproval)
	}
	if !o.session.Method.IsOffline() {
		o.schedulePollLocked()
	}
}

func (o *Orchestrator) schedulePollLocked() {
	o.stopPollLocked()
	if o.closed {
		return
	}
	gen := o.gen
	o.pollTimer = time.AfterFunc(o.opts.PollInterval, func() { o.poll(gen) })
}

func (o *Orchestrator) stopPollLocked() {
	if o.pollTimer != nil {
		o.pollTimer.Stop()
		o.pollTimer = nil
	}
}

func (o *Orchestrator) poll(gen uint64) {
	o.mu.Lock()
	if !o.currentLocked(gen) || o.session == nil || o.session.Process == nil {
		o.mu.Unlock()
		return
	}
	p := *o.session.Process
	parent := o.ctx
	o.wg.Add(1)
	o.mu.Unlock()
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(parent, o.opts.RequestTimeout)
	defer cancel()
	updated, err := o.deps.Backend.UpdatePaymentProcess(ctx, p)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(gen) {
		return
	}
	if err != nil {
		o.log.Debug("poll payment process", slog.Any("error", err))
		o.events.Publish(Event{Type: EventPollFailed, State: o.state, Previous: o.prev, Err: err})
		if o.keepPollingLocked() {
			o.schedulePollLocked()
		}
		return
	}
	o.interpretLocked(updated)
}

func (o *Orchestrator) keepPollingLocked() bool {
	if o.state == domain.StatePaymentApproved {
		return o.session.Process != nil && !o.session.Process.AllFulfillmentsClosed()
	}
	return o.state.IsPolling()
}

func (o *Orchestrator) interpretLocked(p domain.Process) {
	o.session.Process = &p
	snapshot := p

	switch {
	case p.Aborted:
		o.stopPollLocked()
		o.setStateLocked(domain.StatePaymentAborted)
		return

	case p.PaymentState == domain.PaymentSuccessful:
		o.approveLocked()
		if p.AllFulfillmentsClosed() {
			o.stopPollLocked()
			o.fulfillmentDoneLocked(&snapshot)
			return
		}
		o.events.Publish(Event{Type: EventFulfillmentUpdated, State: o.state, Previous: o.prev, Process: &snapshot})
		o.schedulePollLocked()
		return

	case p.PaymentState == domain.PaymentPending && p.AnyFulfillmentFailed():
		o.stopPollLocked()
		o.abortInBackgroundLocked(p)
		o.setStateLocked(domain.StatePaymentAborted)
		o.fulfillmentDoneLocked(&snapshot)
		return

	case p.PaymentState == domain.PaymentPending && p.DeniedBySupervisor():
		o.stopPollLocked()
		o.setStateLocked(domain.StateDeniedBySupervisor)
		return

	case p.PaymentState == domain.PaymentPending && p.DeniedByProvider():
		o.stopPollLocked()
		o.setStateLocked(domain.StateDeniedByPaymentProvider)
		return

	case p.PaymentState == domain.PaymentFailed:
		o.stopPollLocked()
		if p.PaymentResult.FailureCause == domain.FailureCauseTerminalAbort {
			o.setStateLocked(domain.StatePaymentAborted)
		} else {
			o.setStateLocked(domain.StateDeniedByPaymentProvider)
		}
		return
	}

	if p.PaymentState == domain.PaymentProcessing && o.state == domain.StateWaitForApproval {
		o.setStateLocked(domain.StatePaymentProcessing)
	}
	if o.keepPollingLocked() {
		o.schedulePollLocked()
	}
}

// approveLocked runs the approval side effects once per checkout.
func (o *Orchestrator) approveLocked() {
	if o.session.Approved {
		return
	}
	o.session.Approved = true
	o.setStateLocked(domain.StatePaymentApproved)
	o.track("payment_approved",
		slog.String("method", string(o.session.Method)),
		slog.Int64("price", o.session.PriceToPay),
	)

	sess := o.session.Clone()
	o.deps.Dispatch.Post(func() {
		o.deps.Cart.BackupAndInvalidate()
		if o.deps.Orders == nil {
			return
		}
		ctx, cancel := context.WithTimeout(o.base, 5*time.Second)
		defer cancel()
		if err := o.deps.Orders.RecordOrder(ctx, sess); err != nil {
			o.log.Error("record order", slog.Any("error", err))
		}
	})
}

func (o *Orchestrator) fulfillmentDoneLocked(p *domain.Process) {
	if o.session.FulfillmentDone {
		return
	}
	o.session.FulfillmentDone = true
	o.events.Publish(Event{Type: EventFulfillmentDone, State: o.state, Previous: o.prev, Process: p})
}

// ApproveOfflineMethod approves a checkout paid with a method the backend
// cannot confirm. It reports false for every other method.
func (o *Orchestrator) ApproveOfflineMethod() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return false
	}
	m := o.session.Method
	if !m.IsOffline() && m != domain.MethodCustomerCardPOS {
		return false
	}
	o.stopPollLocked()
	o.approveLocked()
	return true
}

// Abort cancels the checkout and reports PAYMENT_ABORTED once the backend
// confirmed it.
func (o *Orchestrator) Abort() {
	o.abort(true)
}

// AbortSilently cancels the checkout and returns to NONE without
// announcing the abort.
func (o *Orchestrator) AbortSilently() {
	o.abort(false)
}

func (o *Orchestrator) abort(notify bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state == domain.StateNone {
		return
	}
	// Money may already have moved in these states.
	if o.state.IsTerminal() {
		o.resetLocked()
		return
	}

	if o.session == nil || o.session.Process == nil {
		o.clearLocked()
		if notify {
			o.setStateLocked(domain.StatePaymentAborted)
		} else {
			o.setStateLocked(domain.StateNone)
		}
		return
	}

	p := *o.session.Process
	o.newGenLocked()
	if o.deps.Origin != nil {
		o.deps.Origin.Stop()
	}
	o.goLocked(func(ctx context.Context, gen uint64) {
		err := o.deps.Backend.Abort(ctx, p)

		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.currentLocked(gen) {
			return
		}
		if err != nil {
			o.log.Warn("abort payment process", slog.String("process", p.ID), slog.Any("error", err))
			o.setStateLocked(domain.StatePaymentAbortFailed)
			return
		}
		o.track("payment_aborted", slog.String("process", p.ID))
		if notify {
			o.setStateLocked(domain.StatePaymentAborted)
		} else {
			o.resetLocked()
		}
	})
}

func (o *Orchestrator) abortInBackgroundLocked(p domain.Process) {
	if o.closed {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(o.base, o.opts.RequestTimeout)
		defer cancel()
		if err := o.deps.Backend.Abort(ctx, p); err != nil {
			o.log.Warn("abort payment process", slog.String("process", p.ID), slog.Any("error", err))
		}
	}()
}

// Resume picks up a checkout that was waiting for approval when the
// process last stopped.
func (o *Orchestrator) Resume(ctx context.Context) error {
	if o.deps.States == nil {
		return nil
	}
	saved, ok, err := o.deps.States.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load checkout state: %w", err)
	}
	if !ok || saved.State != domain.StateWaitForApproval || saved.Session == nil {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.clearLocked()
	o.session = saved.Session
	o.setStateLocked(domain.StateWaitForApproval)

	if p := o.session.Process; p != nil {
		if href := p.Links.OriginCandidate; href != "" && !o.session.Approved && o.deps.Origin != nil {
			o.deps.Origin.Start(href)
		}
		if !o.session.Method.IsOffline() {
			o.schedulePollLocked()
		}
	}
	o.log.Info("checkout resumed", slog.String("session", o.session.Cart.Session))
	return nil
}

// Reset drops the current checkout without telling the backend.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

func (o *Orchestrator) resetLocked() {
	o.clearLocked()
	o.setStateLocked(domain.StateNone)
}

func (o *Orchestrator) clearLocked() {
	o.newGenLocked()
	if o.deps.Origin != nil {
		o.deps.Origin.Stop()
	}
	o.session = nil
}

func (o *Orchestrator) newGenLocked() {
	o.gen++
	o.stopPollLocked()
	o.cancel()
	o.ctx, o.cancel = context.WithCancel(o.base)
}

func (o *Orchestrator) currentLocked(gen uint64) bool {
	return !o.closed && o.gen == gen && o.session != nil
}

// goLocked runs fn on its own goroutine with a context bound to the
// current generation.
func (o *Orchestrator) goLocked(fn func(ctx context.Context, gen uint64)) {
	if o.closed {
		return
	}
	gen := o.gen
	parent := o.ctx
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(parent, o.opts.RequestTimeout)
		defer cancel()
		fn(ctx, gen)
	}()
}

func (o *Orchestrator) sweepLocked() {
	if o.closed {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		res := o.deps.Retry.ProcessPendingCheckouts(o.base)
		if res.Attempted > 0 {
			o.log.Info("retried pending checkouts",
				slog.Int("attempted", res.Attempted),
				slog.Int("succeeded", res.Succeeded),
			)
		}
	}()
}

func (o *Orchestrator) setStateLocked(s domain.State) {
	if s == o.state {
		return
	}
	o.prev, o.state = o.state, s
	o.log.Info("checkout state", slog.String("from", string(o.prev)), slog.String("to", string(s)))
	o.events.Publish(Event{Type: EventStateChanged, State: s, Previous: o.prev})
	o.persistLocked()
}

func (o *Orchestrator) persistLocked() {
	if o.deps.States == nil {
		return
	}
	saved := domain.Persisted{State: o.state, Previous: o.prev}
	if o.session != nil {
		sess := o.session.Clone()
		saved.Session = &sess
	}
	o.deps.Dispatch.Post(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.deps.States.SaveState(ctx, saved); err != nil {
			o.log.Error("save checkout state", slog.Any("error", err))
		}
	})
}

func (o *Orchestrator) track(event string, attrs ...any) {
	if o.deps.Telemetry != nil {
		o.deps.Telemetry.Track(event, attrs...)
	}
}

func (o *Orchestrator) State() domain.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) PreviousState() domain.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prev
}

// Session returns a copy of the current checkout, if any.
func (o *Orchestrator) Session() (domain.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return domain.Session{}, false
	}
	return o.session.Clone(), true
}

// OriginCandidate hands out the resolved payment origin once.
func (o *Orchestrator) OriginCandidate() *domain.OriginCandidate {
	if o.deps.Origin == nil {
		return nil
	}
	return o.deps.Origin.Take()
}

// Close stops polling, cancels in-flight calls and waits for them.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.stopPollLocked()
	o.stop()
	o.mu.Unlock()

	o.wg.Wait()
}
