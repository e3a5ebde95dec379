// Package yamlfile imports catalog snapshots exported as YAML.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

type File struct {
	Currency string    `yaml:"currency"`
	Products []Product `yaml:"products"`
}

type Product struct {
	SKU           string   `yaml:"sku"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Type          string   `yaml:"type"`
	Price         int64    `yaml:"price"`
	Currency      string   `yaml:"currency"`
	ReferenceUnit string   `yaml:"reference_unit"`
	DepositSKU    string   `yaml:"deposit"`
	MinAge        int      `yaml:"min_age"`
	Codes         []string `yaml:"codes"`
}

type Saver interface {
	SaveProduct(ctx context.Context, p domain.Product) (domain.Product, error)
}

// Parse decodes a catalog file and resolves deposit references between its
// products.
func Parse(r io.Reader) ([]domain.Product, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	bySKU := make(map[string]domain.Product, len(f.Products))
	for _, in := range f.Products {
		currency := in.Currency
		if currency == "" {
			currency = f.Currency
		}
		bySKU[in.SKU] = domain.Product{
			SKU:           in.SKU,
			Name:          in.Name,
			Description:   in.Description,
			Type:          domain.ProductType(in.Type),
			Price:         domain.Money{Currency: currency, Amount: in.Price},
			ReferenceUnit: domain.Unit(in.ReferenceUnit),
			MinAge:        in.MinAge,
			Codes:         in.Codes,
		}
	}

	out := make([]domain.Product, 0, len(f.Products))
	for _, in := range f.Products {
		p := bySKU[in.SKU]
		if in.DepositSKU != "" {
			dep, ok := bySKU[in.DepositSKU]
			if !ok {
				return nil, fmt.Errorf("product %s: unknown deposit %s", in.SKU, in.DepositSKU)
			}
			p.Deposit = &dep
		}
		out = append(out, p)
	}
	return out, nil
}

// Import saves every product of the file at path and returns how many
// were written.
func Import(ctx context.Context, path string, dst Saver) (int, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	products, err := Parse(fh)
	if err != nil {
		return 0, err
	}
	for i, p := range products {
		if _, err := dst.SaveProduct(ctx, p); err != nil {
			return i, fmt.Errorf("save %s: %w", p.SKU, err)
		}
	}
	return len(products), nil
}
