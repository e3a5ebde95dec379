package domain

import "time"

type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

type ProductType string

const (
	ProductDefault     ProductType = "default"
	ProductPreWeighed  ProductType = "preWeighed"
	ProductUserWeighed ProductType = "userWeighed"
	ProductDeposit     ProductType = "deposit"
)

func (t ProductType) Valid() bool {
	switch t {
	case ProductDefault, ProductPreWeighed, ProductUserWeighed, ProductDeposit:
		return true
	}
	return false
}

// Unit is the measuring unit of a price or a quantity.
type Unit string

const (
	UnitPiece      Unit = "piece"
	UnitPrice      Unit = "price"
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitMilliliter Unit = "ml"
	UnitLiter      Unit = "l"
)

func (u Unit) IsMass() bool   { return u == UnitGram || u == UnitKilogram }
func (u Unit) IsVolume() bool { return u == UnitMilliliter || u == UnitLiter }

// Factor is the number of base units (g, ml) in one u.
func (u Unit) Factor() int64 {
	switch u {
	case UnitKilogram, UnitLiter:
		return 1000
	default:
		return 1
	}
}

// Base returns the smallest unit of the same dimension.
func (u Unit) Base() Unit {
	switch {
	case u.IsMass():
		return UnitGram
	case u.IsVolume():
		return UnitMilliliter
	default:
		return u
	}
}

type Product struct {
	SKU           string      `json:"sku"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Type          ProductType `json:"type"`
	Price         Money       `json:"price"`
	ReferenceUnit Unit        `json:"referenceUnit,omitempty"`
	Deposit       *Product    `json:"deposit,omitempty"`
	MinAge        int         `json:"minAge,omitempty"`
	Codes         []string    `json:"codes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
