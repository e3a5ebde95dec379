package adapter

import "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"

// StaticShop is a ShopLocator for a device bound to one configured shop.
type StaticShop struct {
	shop domain.Shop
}

func NewStaticShop(id, name string) StaticShop {
	return StaticShop{shop: domain.Shop{ID: id, Name: name}}
}

func (s StaticShop) CurrentShop() (domain.Shop, bool) {
	return s.shop, s.shop.ID != ""
}
