package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	cartapp "github.com/dwikikusuma/pos-checkout/internal/cart/app"
	cartadapter "github.com/dwikikusuma/pos-checkout/internal/cart/infra/adapter"
	cartsql "github.com/dwikikusuma/pos-checkout/internal/cart/infra/sqlstore"

	catalogapp "github.com/dwikikusuma/pos-checkout/internal/catalog/app"
	catalogsql "github.com/dwikikusuma/pos-checkout/internal/catalog/infra/sqlstore"

	checkoutapp "github.com/dwikikusuma/pos-checkout/internal/checkout/app"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	checkoutadapter "github.com/dwikikusuma/pos-checkout/internal/checkout/infra/adapter"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/infra/httpbackend"
	checkoutsql "github.com/dwikikusuma/pos-checkout/internal/checkout/infra/sqlstore"

	orderapp "github.com/dwikikusuma/pos-checkout/internal/order/app"
	ordersql "github.com/dwikikusuma/pos-checkout/internal/order/infra/sqlstore"

	"github.com/dwikikusuma/pos-checkout/pkg/config"
	"github.com/dwikikusuma/pos-checkout/pkg/dispatch"
	"github.com/dwikikusuma/pos-checkout/pkg/logger"
)

// app is the wired checkout device: one cart, one checkout at a time.
type app struct {
	db      *sql.DB
	log     *slog.Logger
	queue   *dispatch.Queue
	backend *httpbackend.Client

	catalog    *catalogapp.Service
	cart       *cartapp.Store
	reconciler *cartapp.Reconciler
	checkout   *checkoutapp.Orchestrator
	retry      *checkoutapp.RetryQueue
	origin     *checkoutapp.OriginPoller
	orders     *orderapp.Service
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (*app, error) {
	productRepo := catalogsql.NewProductRepo(db)
	snapshotRepo := cartsql.NewSnapshotRepo(db, cfg.Shop.ID)
	orderRepo := ordersql.NewOrderRepo(db)
	queueRepo := checkoutsql.NewQueueRepo(db)
	stateRepo := checkoutsql.NewStateRepo(db, cfg.Shop.ID)

	for _, m := range []migrator{productRepo, snapshotRepo, orderRepo, queueRepo, stateRepo} {
		if err := m.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	backend, err := httpbackend.New(httpbackend.Config{
		URL:     cfg.Backend.URL,
		Project: cfg.Backend.Project,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}

	accepted := checkout.ParseMethods(cfg.Checkout.AcceptedMethods)
	fallback := checkout.PaymentMethod(cfg.Checkout.FallbackMethod)
	if fallback != "" && !fallback.Valid() {
		return nil, fmt.Errorf("invalid fallback method %q", fallback)
	}

	a := &app{db: db, log: log, queue: dispatch.NewQueue(), backend: backend}

	// Catalog
	a.catalog = catalogapp.NewService(productRepo, cfg.Catalog.FreshFor)
	catalogReader := cartadapter.NewCatalogServiceReader(a.catalog)

	// Cart
	a.cart = cartapp.NewStore(snapshotRepo, catalogReader, a.queue, log.With("component", "cart"), cartapp.Options{
		MaxAge:        cfg.Cart.MaxAge,
		CheckoutLimit: cfg.Cart.CheckoutLimit,
		PaymentLimit:  cfg.Cart.PaymentLimit,
	})
	a.cart.Load(ctx)
	a.reconciler = cartapp.NewReconciler(a.cart, backend, catalogReader, log.With("component", "pricing"), cartapp.ReconcilerOptions{
		ShopID:          cfg.Shop.ID,
		Debounce:        cfg.Cart.PricingDebounce,
		Timeout:         cfg.Backend.Timeout,
		AcceptedMethods: accepted,
	})

	// Orders
	a.orders = orderapp.NewService(orderRepo)

	// Checkout
	a.retry = checkoutapp.NewRetryQueue(queueRepo, backend, fallback, accepted, a.queue, log.With("component", "retry"))
	if err := a.retry.Load(ctx); err != nil {
		log.Warn("load retry queue", slog.Any("err", err))
	}
	a.origin = checkoutapp.NewOriginPoller(backend, cfg.Checkout.OriginPollInterval, log.With("component", "origin"))
	a.checkout = checkoutapp.NewOrchestrator(checkoutapp.Deps{
		Backend:   backend,
		Cart:      checkoutadapter.NewCartStoreReader(a.cart),
		Shops:     checkoutadapter.NewStaticShop(cfg.Shop.ID, cfg.Shop.Name),
		Retry:     a.retry,
		Origin:    a.origin,
		Orders:    checkoutadapter.NewOrderServiceRecorder(a.orders),
		States:    stateRepo,
		Telemetry: logger.NewTelemetry(log),
		Dispatch:  a.queue,
		Log:       log,
	}, checkoutapp.Options{
		PollInterval:    cfg.Checkout.PollInterval,
		RequestTimeout:  cfg.Backend.Timeout,
		AcceptedMethods: accepted,
		FallbackMethod:  fallback,
	})
	if err := a.checkout.Resume(ctx); err != nil {
		log.Warn("resume checkout", slog.Any("err", err))
	}

	return a, nil
}

// close stops the components in reverse order of construction. The
// dispatch queue goes last and drains pending writes.
func (a *app) close() {
	a.checkout.Close()
	a.origin.Close()
	a.reconciler.Close()
	a.queue.Close()
}
