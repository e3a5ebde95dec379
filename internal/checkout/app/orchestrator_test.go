package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/pos-checkout/pkg/dispatch"
	"github.com/dwikikusuma/pos-checkout/pkg/logger"
)

type orchFixture struct {
	o       *Orchestrator
	backend *fakeBackend
	cart    *fakeCart
	retry   *RetryQueue
	states  *memStateRepo
	queue   *dispatch.Queue

	mu     sync.Mutex
	events []Event
}

func newOrchFixture(t *testing.T, backend *fakeBackend, opts Options) *orchFixture {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}

	q := dispatch.NewQueue()
	t.Cleanup(q.Close)

	f := &orchFixture{
		backend: backend,
		cart: &fakeCart{snapshot: CartSnapshot{
			Cart:  cart.BackendCart{Session: "s1", Items: []cart.BackendItem{{ID: "e1", SKU: "A", Amount: 1}}},
			Total: 100,
		}},
		states: &memStateRepo{},
		queue:  q,
	}
	f.retry = NewRetryQueue(nil, backend, opts.FallbackMethod, nil, q, logger.Discard())
	f.o = NewOrchestrator(Deps{
		Backend:   backend,
		Cart:      f.cart,
		Shops:     staticShops{shop: domain.Shop{ID: "shop-1"}, ok: true},
		Retry:     f.retry,
		Origin:    NewOriginPoller(&fakeFetcher{}, time.Hour, logger.Discard()),
		States:    f.states,
		Telemetry: logger.NewTelemetry(logger.Discard()),
		Dispatch:  q,
		Log:       logger.Discard(),
	}, opts)
	t.Cleanup(f.o.Close)

	f.o.Subscribe(func(e Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
	})
	return f
}

func (f *orchFixture) waitState(t *testing.T, want domain.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.o.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", f.o.State(), want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *orchFixture) count(typ EventType, state domain.State) int {
	f.queue.Flush()
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == typ && (state == "" || e.State == state) {
			n++
		}
	}
	return n
}

func successful(fulfillments ...domain.FulfillmentState) domain.Process {
	p := domain.Process{ID: "p1", PaymentState: domain.PaymentSuccessful}
	for i, s := range fulfillments {
		p.Fulfillments = append(p.Fulfillments, domain.Fulfillment{ID: fmt.Sprint(i), State: s})
	}
	return p
}

func TestCheckoutApprovesAndStopsPolling(t *testing.T) {
	backend := &fakeBackend{
		updateFn: func(int, domain.Process) (domain.Process, error) {
			return successful(domain.FulfillmentProcessed), nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	f.waitState(t, domain.StatePaymentApproved)
	time.Sleep(30 * time.Millisecond)

	if _, _, updates, _ := backend.counts(); updates != 1 {
		t.Fatalf("polled %d times after approval with closed fulfillments", updates)
	}
	if n := f.count(EventFulfillmentDone, ""); n != 1 {
		t.Fatalf("fulfillment done fired %d times", n)
	}
	if n := f.cart.backupCount(); n != 1 {
		t.Fatalf("cart backed up %d times", n)
	}
	if f.o.PreviousState() != domain.StateWaitForApproval {
		t.Fatalf("previous state = %s", f.o.PreviousState())
	}
}

func TestRepeatedApprovalRunsSideEffectsOnce(t *testing.T) {
	backend := &fakeBackend{
		updateFn: func(call int, _ domain.Process) (domain.Process, error) {
			if call < 3 {
				return successful(domain.FulfillmentAllocating), nil
			}
			return successful(domain.FulfillmentProcessed), nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	waitFor(t, func() bool { return f.count(EventFulfillmentDone, "") == 1 })
	time.Sleep(30 * time.Millisecond)

	if n := f.cart.backupCount(); n != 1 {
		t.Fatalf("cart backed up %d times", n)
	}
	if n := f.count(EventStateChanged, domain.StatePaymentApproved); n != 1 {
		t.Fatalf("approved announced %d times", n)
	}
	if n := f.count(EventFulfillmentUpdated, ""); n != 2 {
		t.Fatalf("fulfillment updates = %d, want 2", n)
	}
	if _, _, updates, _ := backend.counts(); updates != 3 {
		t.Fatalf("updates = %d, want 3", updates)
	}
}

func TestAbortAfterApprovalSkipsBackend(t *testing.T) {
	backend := &fakeBackend{
		updateFn: func(int, domain.Process) (domain.Process, error) {
			return successful(), nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	f.waitState(t, domain.StatePaymentApproved)

	f.o.Abort()
	if got := f.o.State(); got != domain.StateNone {
		t.Fatalf("state = %s, want NONE", got)
	}
	time.Sleep(20 * time.Millisecond)
	if _, _, _, aborts := backend.counts(); aborts != 0 {
		t.Fatalf("backend abort called %d times", aborts)
	}
	if _, ok := f.o.Session(); ok {
		t.Fatal("session kept after reset")
	}
}

func TestCheckoutRequestsMethodChoice(t *testing.T) {
	backend := &fakeBackend{
		infoFn: func(int, cart.BackendCart) (domain.Info, error) {
			return domain.Info{
				Price:            domain.Price{Total: 330},
				AvailableMethods: []domain.PaymentMethod{domain.MethodVisa, domain.MethodGatekeeperTerminal},
			}, nil
		},
	}
	f := newOrchFixture(t, backend, Options{PollInterval: time.Hour})

	if err := f.o.Pay(domain.MethodVisa, nil); !errors.Is(err, domain.ErrNoInfo) {
		t.Fatalf("pay before checkout: %v", err)
	}

	f.o.Checkout()
	f.waitState(t, domain.StateRequestPaymentMethod)
	if _, processes, _, _ := backend.counts(); processes != 0 {
		t.Fatal("process created before a method was chosen")
	}

	if err := f.o.Pay(domain.MethodVisa, &domain.Credentials{Type: "creditCard", EncryptedOrigin: "x"}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	f.waitState(t, domain.StateWaitForApproval)

	s, _ := f.o.Session()
	if s.Method != domain.MethodVisa || s.PriceToPay != 330 {
		t.Fatalf("session = %+v", s)
	}
	if len(s.Cart.Items) != 1 || s.Cart.ShopID != "shop-1" {
		t.Fatalf("cart snapshot = %+v", s.Cart)
	}
}

func TestSingleMethodWithCredentialsIsNotAutoPaid(t *testing.T) {
	backend := &fakeBackend{
		infoFn: func(int, cart.BackendCart) (domain.Info, error) {
			return domain.Info{AvailableMethods: []domain.PaymentMethod{domain.MethodVisa}}, nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	f.waitState(t, domain.StateRequestPaymentMethod)
}

func TestCheckoutInfoFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.State
	}{
		{"no shop", domain.ErrNoShop, domain.StateNoShop},
		{"invalid products", &domain.InvalidProductsError{SKUs: []string{"A"}}, domain.StateInvalidProducts},
		{"deposit voucher", domain.ErrInvalidDepositVoucher, domain.StateInvalidProducts},
		{"no method", domain.ErrNoPaymentMethod, domain.StateNoPaymentMethodAvailable},
		{"connection", fmt.Errorf("dial: %w", domain.ErrConnection), domain.StateConnectionError},
		{"server", &domain.StatusError{Status: 502}, domain.StateConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				infoFn: func(int, cart.BackendCart) (domain.Info, error) { return domain.Info{}, tt.err },
			}
			f := newOrchFixture(t, backend, Options{})

			f.o.Checkout()
			f.waitState(t, tt.want)
			if f.retry.Len() != 0 {
				t.Fatal("cart queued without a fallback method")
			}
		})
	}
}

func TestCheckoutInvalidProductsKeepsSKUs(t *testing.T) {
	backend := &fakeBackend{
		infoFn: func(int, cart.BackendCart) (domain.Info, error) {
			return domain.Info{}, &domain.InvalidProductsError{SKUs: []string{"A", "B"}}
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	f.waitState(t, domain.StateInvalidProducts)
	s, _ := f.o.Session()
	if len(s.InvalidProducts) != 2 {
		t.Fatalf("invalid products = %v", s.InvalidProducts)
	}
}

func TestCheckoutWithoutShop(t *testing.T) {
	f := newOrchFixture(t, &fakeBackend{}, Options{})
	f.o.deps.Shops = staticShops{}

	f.o.Checkout()
	if got := f.o.State(); got != domain.StateNoShop {
		t.Fatalf("state = %s", got)
	}
	if info, _, _, _ := f.backend.counts(); info != 0 {
		t.Fatal("backend called without a shop")
	}
}

func TestConnectionErrorFallsBackOffline(t *testing.T) {
	backend := &fakeBackend{
		infoFn: func(int, cart.BackendCart) (domain.Info, error) {
			return domain.Info{}, fmt.Errorf("timeout: %w", domain.ErrConnection)
		},
	}
	f := newOrchFixture(t, backend, Options{FallbackMethod: domain.MethodQRCodeOffline})

	f.o.Checkout()
	f.waitState(t, domain.StateWaitForApproval)

	if f.retry.Len() != 1 {
		t.Fatalf("retry queue len = %d", f.retry.Len())
	}
	if got := f.retry.Pending()[0].Cart.Session; got != "s1" {
		t.Fatalf("queued session = %q", got)
	}
	s, _ := f.o.Session()
	if s.Method != domain.MethodQRCodeOffline {
		t.Fatalf("method = %s", s.Method)
	}

	if !f.o.ApproveOfflineMethod() {
		t.Fatal("offline approval refused")
	}
	if got := f.o.State(); got != domain.StatePaymentApproved {
		t.Fatalf("state = %s", got)
	}
	f.queue.Flush()
	if f.cart.backupCount() != 1 {
		t.Fatal("cart not backed up on offline approval")
	}
}

func TestApproveOfflineMethodCarveOut(t *testing.T) {
	tests := []struct {
		method domain.PaymentMethod
		want   bool
	}{
		{domain.MethodQRCodeOffline, true},
		{domain.MethodCustomerCardPOS, true},
		{domain.MethodGatekeeperTerminal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			backend := &fakeBackend{
				infoFn: func(int, cart.BackendCart) (domain.Info, error) {
					return domain.Info{AvailableMethods: []domain.PaymentMethod{tt.method}}, nil
				},
			}
			f := newOrchFixture(t, backend, Options{PollInterval: time.Hour})

			f.o.Checkout()
			f.waitState(t, domain.StateWaitForApproval)
			if got := f.o.ApproveOfflineMethod(); got != tt.want {
				t.Fatalf("ApproveOfflineMethod = %v", got)
			}
		})
	}
}

func TestAgeCheckAbortsProcess(t *testing.T) {
	tests := []struct {
		check domain.CheckState
		want  domain.State
	}{
		{domain.CheckPending, domain.StateRequestVerifyAge},
		{domain.CheckFailed, domain.StateDeniedTooYoung},
	}
	for _, tt := range tests {
		t.Run(string(tt.check), func(t *testing.T) {
			backend := &fakeBackend{
				processFn: func(int, domain.PaymentMethod) (domain.Process, error) {
					return domain.Process{
						ID:           "p1",
						PaymentState: domain.PaymentPending,
						Checks:       []domain.Check{{ID: "c1", Type: domain.CheckMinAge, RequiredAge: 18, State: tt.check}},
					}, nil
				},
			}
			f := newOrchFixture(t, backend, Options{})

			f.o.Checkout()
			f.waitState(t, tt.want)
			waitFor(t, func() bool { _, _, _, aborts := backend.counts(); return aborts == 1 })
			time.Sleep(20 * time.Millisecond)
			if _, _, updates, _ := backend.counts(); updates != 0 {
				t.Fatal("polling started despite age check")
			}
		})
	}
}

func TestPollOutcomes(t *testing.T) {
	denied := false
	tests := []struct {
		name string
		p    domain.Process
		want domain.State
	}{
		{"aborted", domain.Process{Aborted: true, PaymentState: domain.PaymentPending}, domain.StatePaymentAborted},
		{"terminal abort", domain.Process{PaymentState: domain.PaymentFailed, PaymentResult: domain.PaymentResult{FailureCause: domain.FailureCauseTerminalAbort}}, domain.StatePaymentAborted},
		{"failed", domain.Process{PaymentState: domain.PaymentFailed}, domain.StateDeniedByPaymentProvider},
		{"supervisor", domain.Process{PaymentState: domain.PaymentPending, SupervisorApproval: &denied}, domain.StateDeniedBySupervisor},
		{"provider", domain.Process{PaymentState: domain.PaymentPending, PaymentApproval: &denied}, domain.StateDeniedByPaymentProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				updateFn: func(int, domain.Process) (domain.Process, error) { return tt.p, nil },
			}
			f := newOrchFixture(t, backend, Options{})

			f.o.Checkout()
			f.waitState(t, tt.want)
			time.Sleep(20 * time.Millisecond)
			if _, _, updates, _ := backend.counts(); updates != 1 {
				t.Fatalf("polled %d times after a terminal response", updates)
			}
			if f.cart.backupCount() != 0 {
				t.Fatal("cart backed up without approval")
			}
		})
	}
}

func TestPollMovesToProcessing(t *testing.T) {
	backend := &fakeBackend{
		updateFn: func(call int, p domain.Process) (domain.Process, error) {
			if call == 1 {
				p.PaymentState = domain.PaymentProcessing
				return p, nil
			}
			return successful(), nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	f.waitState(t, domain.StatePaymentApproved)
	if f.count(EventStateChanged, domain.StatePaymentProcessing) != 1 {
		t.Fatal("processing state skipped")
	}
}

func TestFailedFulfillmentAbortsPendingPayment(t *testing.T) {
	backend := &fakeBackend{
		updateFn: func(int, domain.Process) (domain.Process, error) {
			return domain.Process{
				ID:           "p1",
				PaymentState: domain.PaymentPending,
				Fulfillments: []domain.Fulfillment{{ID: "f1", State: domain.FulfillmentAllocationFailed}},
			}, nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	f.waitState(t, domain.StatePaymentAborted)
	waitFor(t, func() bool { _, _, _, aborts := backend.counts(); return aborts == 1 })
	if n := f.count(EventFulfillmentDone, ""); n != 1 {
		t.Fatalf("fulfillment done fired %d times", n)
	}
}

func TestPollErrorKeepsPolling(t *testing.T) {
	backend := &fakeBackend{
		updateFn: func(call int, p domain.Process) (domain.Process, error) {
			if call < 3 {
				return domain.Process{}, &domain.StatusError{Status: 503}
			}
			return successful(), nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	f.waitState(t, domain.StatePaymentApproved)
	if n := f.count(EventPollFailed, ""); n != 2 {
		t.Fatalf("poll failures = %d", n)
	}
}

func TestAbortCallsBackend(t *testing.T) {
	tests := []struct {
		name     string
		silent   bool
		abortErr error
		want     domain.State
	}{
		{"notify", false, nil, domain.StatePaymentAborted},
		{"silent", true, nil, domain.StateNone},
		{"refused", false, errors.New("already captured"), domain.StatePaymentAbortFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{abortFn: func(int) error { return tt.abortErr }}
			f := newOrchFixture(t, backend, Options{PollInterval: time.Hour})

			f.o.Checkout()
			f.waitState(t, domain.StateWaitForApproval)

			if tt.silent {
				f.o.AbortSilently()
			} else {
				f.o.Abort()
			}
			waitFor(t, func() bool { _, _, _, aborts := backend.counts(); return aborts == 1 })
			f.waitState(t, tt.want)
		})
	}
}

func TestResetDropsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		infoFn: func(int, cart.BackendCart) (domain.Info, error) {
			<-release
			return domain.Info{AvailableMethods: []domain.PaymentMethod{domain.MethodGatekeeperTerminal}}, nil
		},
	}
	f := newOrchFixture(t, backend, Options{})

	f.o.Checkout()
	waitFor(t, func() bool { info, _, _, _ := backend.counts(); return info == 1 })
	f.o.Reset()
	close(release)
	f.o.wg.Wait()

	if got := f.o.State(); got != domain.StateNone {
		t.Fatalf("state = %s", got)
	}
	if _, processes, _, _ := backend.counts(); processes != 0 {
		t.Fatal("stale info response started a payment")
	}
}

func TestResumeWaitingCheckout(t *testing.T) {
	backend := &fakeBackend{
		updateFn: func(int, domain.Process) (domain.Process, error) { return successful(), nil },
	}
	f := newOrchFixture(t, backend, Options{})
	f.states.saved = &domain.Persisted{
		State: domain.StateWaitForApproval,
		Session: &domain.Session{
			Cart:    cart.BackendCart{Session: "s1"},
			Method:  domain.MethodGatekeeperTerminal,
			Process: &domain.Process{ID: "p1", PaymentState: domain.PaymentPending},
		},
	}

	if err := f.o.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	f.waitState(t, domain.StatePaymentApproved)
	f.queue.Flush()
	if f.cart.backupCount() != 1 {
		t.Fatal("resumed approval did not back up the cart")
	}
}

func TestResumeIgnoresOtherStates(t *testing.T) {
	f := newOrchFixture(t, &fakeBackend{}, Options{})
	f.states.saved = &domain.Persisted{State: domain.StatePaymentProcessing, Session: &domain.Session{}}

	if err := f.o.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := f.o.State(); got != domain.StateNone {
		t.Fatalf("state = %s", got)
	}
}

func TestStatePersisted(t *testing.T) {
	f := newOrchFixture(t, &fakeBackend{}, Options{PollInterval: time.Hour})

	f.o.Checkout()
	f.waitState(t, domain.StateWaitForApproval)
	f.queue.Flush()

	saved, ok, _ := f.states.LoadState(context.Background())
	if !ok || saved.State != domain.StateWaitForApproval || saved.Session == nil || saved.Session.Process == nil {
		t.Fatalf("persisted = %+v", saved)
	}
}
