package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: msg}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return false
	}
	return true
}

type handler struct {
	app *app
	log *slog.Logger
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	status, code, msg := httpStatusFromGRPC(mapErr(err))
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.Any("err", err))
	}
	writeError(w, status, code, msg)
}

func newRouter(a *app) http.Handler {
	h := &handler{app: a, log: a.log.With("component", "http")}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", h.ready)

	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", h.getCart)
		cr.Delete("/", h.clearCart)
		cr.Post("/items", h.addItem)
		cr.Patch("/items/{id}", h.setQuantity)
		cr.Delete("/items/{id}", h.removeItem)
		cr.Put("/taxation", h.setTaxation)
		cr.Post("/restore", h.restoreCart)
		cr.Post("/refresh", h.refreshCart)
		cr.Get("/violations", h.violations)
		cr.Delete("/violations", h.ackViolations)
	})

	r.Route("/checkout", func(cr chi.Router) {
		cr.Get("/", h.getCheckout)
		cr.Post("/", h.startCheckout)
		cr.Post("/pay", h.pay)
		cr.Post("/abort", h.abort)
		cr.Post("/approve-offline", h.approveOffline)
		cr.Get("/origin-candidate", h.originCandidate)
		cr.Get("/queue", h.pendingCheckouts)
		cr.Post("/retry", h.retryCheckouts)
	})

	r.Route("/catalog/products", func(cr chi.Router) {
		cr.Get("/", h.listProducts)
		cr.Put("/", h.saveProduct)
		cr.Get("/{sku}", h.getProduct)
	})

	r.Route("/orders", func(cr chi.Router) {
		cr.Get("/", h.listOrders)
		cr.Get("/{id}", h.getOrder)
	})

	return r
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.app.db.PingContext(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Cart

type cartView struct {
	Cart         cart.Cart `json:"cart"`
	TotalPrice   int64     `json:"totalPrice"`
	DepositPrice int64     `json:"depositPrice"`
	OnlinePrice  bool      `json:"onlinePrice"`
	Restorable   bool      `json:"restorable"`
}

func (h *handler) cartView() cartView {
	s := h.app.cart
	return cartView{
		Cart:         s.Snapshot(),
		TotalPrice:   s.TotalPrice(),
		DepositPrice: s.TotalDepositPrice(),
		OnlinePrice:  s.IsOnlinePrice(),
		Restorable:   s.IsRestorable(),
	}
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cartView())
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.app.cart.Clear()
	writeJSON(w, http.StatusOK, h.cartView())
}

type addItemRequest struct {
	SKU          string       `json:"sku"`
	Code         string       `json:"code"`
	Quantity     int          `json:"quantity"`
	Embedded     int64        `json:"embedded"`
	EmbeddedUnit catalog.Unit `json:"embeddedUnit"`
}

func (h *handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		p   catalog.Product
		err error
	)
	switch {
	case req.SKU != "":
		p, err = h.app.catalog.FindBySKU(r.Context(), req.SKU)
	case req.Code != "":
		p, err = h.app.catalog.FindByCode(r.Context(), req.Code)
	default:
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "sku or code is required")
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	code := cart.ScannedCode{Code: req.Code, Embedded: req.Embedded, EmbeddedUnit: req.EmbeddedUnit}
	if code.Code == "" {
		code.Code = p.SKU
	}
	if err := h.app.cart.Add(cart.NewProductEntry(p, code, req.Quantity)); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.cartView())
}

func (h *handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.app.cart.SetQuantity(chi.URLParam(r, "id"), req.Quantity); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

func (h *handler) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := h.app.cart.RemoveByID(chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

func (h *handler) setTaxation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Taxation cart.Taxation `json:"taxation"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.app.cart.SetTaxation(req.Taxation); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

func (h *handler) restoreCart(w http.ResponseWriter, r *http.Request) {
	if !h.app.cart.Restore() {
		h.fail(w, errNotRestorable)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

func (h *handler) refreshCart(w http.ResponseWriter, r *http.Request) {
	h.app.reconciler.Update(true, false)
	writeJSON(w, http.StatusAccepted, h.cartView())
}

func (h *handler) violations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"violations": h.app.cart.ViolationNotifications()})
}

func (h *handler) ackViolations(w http.ResponseWriter, r *http.Request) {
	h.app.cart.RemoveViolationNotifications(h.app.cart.ViolationNotifications())
	w.WriteHeader(http.StatusNoContent)
}

// Checkout

type checkoutView struct {
	State         checkout.State    `json:"state"`
	PreviousState checkout.State    `json:"previousState"`
	Session       *checkout.Session `json:"session,omitempty"`
	PendingRetry  int               `json:"pendingRetry"`
}

func (h *handler) checkoutView() checkoutView {
	o := h.app.checkout
	v := checkoutView{
		State:         o.State(),
		PreviousState: o.PreviousState(),
		PendingRetry:  h.app.retry.Len(),
	}
	if s, ok := o.Session(); ok {
		v.Session = &s
	}
	return v
}

func (h *handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checkoutView())
}

func (h *handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	h.app.checkout.Checkout()
	writeJSON(w, http.StatusAccepted, h.checkoutView())
}

type payRequest struct {
	Method      checkout.PaymentMethod `json:"method"`
	Credentials *checkout.Credentials  `json:"credentials"`
}

func (h *handler) pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.app.checkout.Pay(req.Method, req.Credentials); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.checkoutView())
}

func (h *handler) abort(w http.ResponseWriter, r *http.Request) {
	if silent, _ := strconv.ParseBool(r.URL.Query().Get("silent")); silent {
		h.app.checkout.AbortSilently()
	} else {
		h.app.checkout.Abort()
	}
	writeJSON(w, http.StatusAccepted, h.checkoutView())
}

func (h *handler) approveOffline(w http.ResponseWriter, r *http.Request) {
	if !h.app.checkout.ApproveOfflineMethod() {
		h.fail(w, errOfflineRefused)
		return
	}
	writeJSON(w, http.StatusOK, h.checkoutView())
}

func (h *handler) originCandidate(w http.ResponseWriter, r *http.Request) {
	c := h.app.checkout.OriginCandidate()
	if c == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) pendingCheckouts(w http.ResponseWriter, r *http.Request) {
	carts := h.app.retry.Pending()
	if carts == nil {
		carts = []checkout.SavedCart{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"carts": carts})
}

func (h *handler) retryCheckouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.retry.ProcessPendingCheckouts(r.Context()))
}

// Catalog

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	products, next, err := h.app.catalog.ListProducts(r.Context(), q.Get("q"), limit, q.Get("cursor"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products, "nextCursor": next})
}

func (h *handler) saveProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	saved, err := h.app.catalog.SaveProduct(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.catalog.FindBySKU(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Orders

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	orders, next, err := h.app.orders.ListOrders(r.Context(), limit, q.Get("cursor"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "nextCursor": next})
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.app.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
