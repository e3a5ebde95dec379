package adapter

import (
	"testing"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

func TestOrderRequestFromLineItems(t *testing.T) {
	s := domain.Session{
		Cart:       cart.BackendCart{Session: "s1", ShopID: "shop-1"},
		Method:     domain.MethodVisa,
		PriceToPay: 330,
		Process:    &domain.Process{ID: "p1"},
		Info: &domain.Info{LineItems: []cart.LineItem{
			{ID: "e1", SKU: "A", Type: cart.LineItemDefault, Amount: 2, Price: 150, TotalPrice: 300},
			{ID: "d1", Type: cart.LineItemDiscount, TotalPrice: -20},
		}},
	}

	req := OrderRequest(s)
	if req.Offline || req.ProcessID != "p1" || req.TotalAmount != 330 || req.PaymentMethod != "VISA" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Items) != 2 || req.Items[1].Quantity != 1 || req.Items[1].LineTotalAmount != -20 {
		t.Fatalf("items = %+v", req.Items)
	}
}

func TestOrderRequestOffline(t *testing.T) {
	s := domain.Session{
		Cart:   cart.BackendCart{Session: "s1", Items: []cart.BackendItem{{ID: "e1", SKU: "A", Amount: 3}}},
		Method: domain.MethodQRCodeOffline,
	}

	req := OrderRequest(s)
	if !req.Offline || len(req.Items) != 1 || req.Items[0].Quantity != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestStaticShop(t *testing.T) {
	if _, ok := NewStaticShop("", "").CurrentShop(); ok {
		t.Fatal("empty shop reported as active")
	}
	shop, ok := NewStaticShop("shop-1", "Main").CurrentShop()
	if !ok || shop.ID != "shop-1" {
		t.Fatalf("shop = %+v ok=%v", shop, ok)
	}
}
