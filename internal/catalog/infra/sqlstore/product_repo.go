package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwikikusuma/pos-checkout/internal/catalog/app"
	"github.com/dwikikusuma/pos-checkout/internal/catalog/domain"
)

// ProductRepo stores products in any database/sql backend that accepts
// $n placeholders and ON CONFLICT upserts (sqlite3, postgres).
type ProductRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db, now: time.Now}
}

func (r *ProductRepo) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			sku TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			price_amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			reference_unit TEXT NOT NULL DEFAULT 'piece',
			deposit_sku TEXT NOT NULL DEFAULT '',
			min_age INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS product_codes (
			code TEXT PRIMARY KEY,
			sku TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_product_codes_sku ON product_codes(sku)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate products: %w", err)
		}
	}
	return nil
}

func (r *ProductRepo) execTX(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w; rollback err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Save upserts p and replaces its scannable codes. A deposit product is
// saved first so it can be resolved by SKU later.
func (r *ProductRepo) Save(ctx context.Context, p domain.Product) (domain.Product, error) {
	now := r.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	err := r.execTX(ctx, func(tx *sql.Tx) error {
		if p.Deposit != nil {
			if err := upsertProduct(ctx, tx, *p.Deposit, "", now); err != nil {
				return fmt.Errorf("save deposit %s: %w", p.Deposit.SKU, err)
			}
		}

		depositSKU := ""
		if p.Deposit != nil {
			depositSKU = p.Deposit.SKU
		}
		if err := upsertProduct(ctx, tx, p, depositSKU, now); err != nil {
			return fmt.Errorf("save product %s: %w", p.SKU, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM product_codes WHERE sku = $1`, p.SKU); err != nil {
			return fmt.Errorf("clear codes: %w", err)
		}
		for _, code := range p.Codes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO product_codes (code, sku) VALUES ($1, $2)
				ON CONFLICT (code) DO UPDATE SET sku = excluded.sku`, code, p.SKU)
			if err != nil {
				return fmt.Errorf("save code %s: %w", code, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func upsertProduct(ctx context.Context, tx *sql.Tx, p domain.Product, depositSKU string, now time.Time) error {
	unit := p.ReferenceUnit
	if unit == "" {
		unit = domain.UnitPiece
	}
	typ := p.Type
	if typ == "" {
		typ = domain.ProductDefault
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO products (sku, name, description, type, price_amount, currency,
			reference_unit, deposit_sku, min_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (sku) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			type = excluded.type,
			price_amount = excluded.price_amount,
			currency = excluded.currency,
			reference_unit = excluded.reference_unit,
			deposit_sku = excluded.deposit_sku,
			min_age = excluded.min_age,
			updated_at = excluded.updated_at`,
		p.SKU, p.Name, p.Description, string(typ), p.Price.Amount, p.Price.Currency,
		string(unit), depositSKU, p.MinAge, created, now,
	)
	return err
}

const productColumns = `sku, name, description, type, price_amount, currency,
	reference_unit, deposit_sku, min_age, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, string, error) {
	var (
		p          domain.Product
		typ, unit  string
		depositSKU string
	)
	err := row.Scan(&p.SKU, &p.Name, &p.Description, &typ, &p.Price.Amount, &p.Price.Currency,
		&unit, &depositSKU, &p.MinAge, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, "", err
	}
	p.Type = domain.ProductType(typ)
	p.ReferenceUnit = domain.Unit(unit)
	return p, depositSKU, nil
}

func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	return r.resolve(ctx, row)
}

func (r *ProductRepo) GetByCode(ctx context.Context, code string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE sku = (SELECT sku FROM product_codes WHERE code = $1)`, code)
	return r.resolve(ctx, row)
}

func (r *ProductRepo) resolve(ctx context.Context, row *sql.Row) (domain.Product, error) {
	p, depositSKU, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}

	if p.Codes, err = r.codes(ctx, p.SKU); err != nil {
		return domain.Product{}, err
	}

	if depositSKU != "" {
		dep, _, err := scanProduct(r.db.QueryRowContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE sku = $1`, depositSKU))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("load deposit %s: %w", depositSKU, err)
		}
		if err == nil {
			p.Deposit = &dep
		}
	}
	return p, nil
}

func (r *ProductRepo) codes(ctx context.Context, sku string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code FROM product_codes WHERE sku = $1 ORDER BY code`, sku)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// List pages through products ordered by SKU; the cursor is the last SKU
// of the previous page.
func (r *ProductRepo) List(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR name LIKE '%' || $1 || '%') AND sku > $2
		ORDER BY sku
		LIMIT $3`, strings.TrimSpace(query), strings.TrimSpace(cursor), limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := make([]domain.Product, 0, limit)
	var nextCursor string

	for rows.Next() {
		p, _, err := scanProduct(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, p)
		nextCursor = p.SKU
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	if len(out) < limit {
		nextCursor = ""
	}

	return out, nextCursor, nil
}
