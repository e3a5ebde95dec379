package domain

import (
	"testing"

	catalog "github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

func product(sku string, price int64) catalog.Product {
	return catalog.Product{
		SKU:   sku,
		Name:  sku,
		Type:  catalog.ProductDefault,
		Price: catalog.Money{Currency: "EUR", Amount: price},
	}
}

func TestLocalTotalWithDeposit(t *testing.T) {
	p := product("A", 150)
	dep := product("dep", 25)
	dep.Type = catalog.ProductDeposit
	p.Deposit = &dep

	c := Cart{Entries: []Entry{NewProductEntry(p, ScannedCode{Code: "A"}, 2)}}

	if got := c.DepositTotal(); got != 50 {
		t.Fatalf("deposit = %d, want 50", got)
	}
	if got := c.TotalPrice(); got != 350 {
		t.Fatalf("total = %d, want 350", got)
	}
	if c.IsOnlinePrice() {
		t.Fatal("local cart reported online price")
	}
}

func TestDepositNotDoubleCounted(t *testing.T) {
	p := product("A", 150)
	dep := product("dep", 25)
	p.Deposit = &dep

	e := NewProductEntry(p, ScannedCode{Code: "A"}, 2)
	e.LineItem = &LineItem{ID: e.ID, SKU: "A", Type: LineItemDefault, Amount: 2, Price: 150, TotalPrice: 300}
	depositItem := NewLineItemEntry(LineItem{ID: "d1", Type: LineItemDeposit, Amount: 2, Price: 25, TotalPrice: 50, RefersTo: e.ID})

	c := Cart{Entries: []Entry{e, depositItem}}
	if got := c.LocalTotal(); got != 350 {
		t.Fatalf("total = %d, want 350", got)
	}
}

func TestEntryTotalPrice(t *testing.T) {
	apples := product("apples", 299)
	apples.Type = catalog.ProductUserWeighed
	apples.ReferenceUnit = catalog.UnitKilogram

	cheese := product("cheese", 1990)
	cheese.Type = catalog.ProductPreWeighed
	cheese.ReferenceUnit = catalog.UnitKilogram

	tests := []struct {
		name  string
		entry Entry
		want  int64
	}{
		{"pieces", NewProductEntry(product("A", 150), ScannedCode{}, 3), 450},
		{"user weighed rounds half up", NewProductEntry(apples, ScannedCode{}, 500), 150},
		{"embedded weight", NewProductEntry(cheese, ScannedCode{Embedded: 250, EmbeddedUnit: catalog.UnitGram}, 1), 498},
		{"embedded price", NewProductEntry(product("B", 100), ScannedCode{Embedded: 777, EmbeddedUnit: catalog.UnitPrice}, 1), 777},
		{"embedded units", NewProductEntry(product("C", 10), ScannedCode{Embedded: 6, EmbeddedUnit: catalog.UnitPiece}, 1), 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.TotalPrice(); got != tt.want {
				t.Fatalf("total = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsMergeable(t *testing.T) {
	apples := product("apples", 299)
	apples.Type = catalog.ProductUserWeighed
	apples.ReferenceUnit = catalog.UnitKilogram

	withCoupon := NewProductEntry(product("A", 1), ScannedCode{}, 1)
	withCoupon.Coupon = &Coupon{ID: "c"}

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"plain product", NewProductEntry(product("A", 1), ScannedCode{}, 1), true},
		{"weighed", NewProductEntry(apples, ScannedCode{}, 100), false},
		{"embedded price", NewProductEntry(product("A", 1), ScannedCode{Embedded: 5, EmbeddedUnit: catalog.UnitPrice}, 1), false},
		{"coupon attached", withCoupon, false},
		{"coupon entry", NewCouponEntry(Coupon{ID: "c"}, ScannedCode{}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsMergeable(); got != tt.want {
				t.Fatalf("mergeable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackendCartSkipsSyntheticEntries(t *testing.T) {
	c := Cart{
		Session: "s1",
		Entries: []Entry{
			NewProductEntry(product("A", 150), ScannedCode{Code: "4001"}, 2),
			NewLineItemEntry(LineItem{ID: "disc", Type: LineItemDiscount, TotalPrice: -20}),
			NewCouponEntry(Coupon{ID: "c1"}, ScannedCode{Code: "C1"}),
		},
	}

	bc := c.BackendCart("shop-1")
	if bc.ShopID != "shop-1" || bc.Session != "s1" {
		t.Fatalf("unexpected header: %+v", bc)
	}
	if len(bc.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(bc.Items))
	}
	if bc.Items[0].SKU != "A" || bc.Items[0].Amount != 2 {
		t.Fatalf("product item = %+v", bc.Items[0])
	}
	if bc.Items[1].CouponID != "c1" {
		t.Fatalf("coupon item = %+v", bc.Items[1])
	}
}
