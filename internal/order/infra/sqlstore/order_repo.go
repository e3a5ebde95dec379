package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dwikikusuma/pos-checkout/internal/order/app"
	"github.com/dwikikusuma/pos-checkout/internal/order/domain"
)

type OrderRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db, now: time.Now}
}

func (r *OrderRepo) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			session TEXT NOT NULL,
			shop_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			process_id TEXT NOT NULL DEFAULT '',
			total_amount BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			unit_amount BIGINT NOT NULL,
			quantity INTEGER NOT NULL,
			line_total_amount BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate orders: %w", err)
		}
	}
	return nil
}

func (r *OrderRepo) execTX(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w; rollback err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// CreateOrderTx stores the order with its items. Ids are UUIDv7 so they
// sort by creation time.
func (r *OrderRepo) CreateOrderTx(ctx context.Context, order domain.Order) (domain.Order, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Order{}, fmt.Errorf("order id: %w", err)
	}
	now := r.now().UTC()

	created := order
	created.ID = id.String()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.OrderItems = make([]domain.OrderItem, 0, len(order.OrderItems))

	err = r.execTX(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, session, shop_id, status, payment_method, process_id,
				total_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			created.ID, order.Session, order.ShopID, order.Status, order.PaymentMethod,
			order.ProcessID, order.TotalAmount, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i, item := range order.OrderItems {
			item.ID = uuid.NewString()
			item.OrderID = created.ID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, position, sku, name, type,
					unit_amount, quantity, line_total_amount)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				item.ID, item.OrderID, i, item.SKU, item.Name, item.Type,
				item.UnitAmount, item.Quantity, item.LineTotalAmount,
			)
			if err != nil {
				return fmt.Errorf("failed to insert item %d: %w", i, err)
			}
			created.OrderItems = append(created.OrderItems, item)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return created, nil
}

const orderColumns = `id, session, shop_id, status, payment_method, process_id,
	total_amount, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Session, &o.ShopID, &o.Status, &o.PaymentMethod, &o.ProcessID,
		&o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *OrderRepo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.OrderItems, err = r.items(ctx, o.ID); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, sku, name, type, unit_amount, quantity, line_total_amount
		FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SKU, &it.Name, &it.Type,
			&it.UnitAmount, &it.Quantity, &it.LineTotalAmount); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListOrders returns the newest orders first; the cursor is the last id of
// the previous page.
func (r *OrderRepo) ListOrders(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR id < $1)
		ORDER BY id DESC
		LIMIT $2`, cursor, limit)
	if err != nil {
		return nil, "", err
	}

	out := make([]domain.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, "", err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	for i := range out {
		if out[i].OrderItems, err = r.items(ctx, out[i].ID); err != nil {
			return nil, "", err
		}
	}

	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}
