package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

// QueueRepo persists the checkout retry queue, one row per cart.
type QueueRepo struct {
	db *sql.DB
}

func NewQueueRepo(db *sql.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

func (r *QueueRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkout_retry_queue (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			cart TEXT NOT NULL,
			failed_at TIMESTAMP NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0
		)`)
	if err != nil {
		return fmt.Errorf("migrate retry queue: %w", err)
	}
	return nil
}

func (r *QueueRepo) execTX(ctx context.Context, fn func(tx *sql.Tx) error) error {
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

func (r *QueueRepo) LoadQueue(ctx context.Context) ([]domain.SavedCart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart, failed_at, attempts FROM checkout_retry_queue ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SavedCart
	for rows.Next() {
		var (
			sc   domain.SavedCart
			data string
		)
		if err := rows.Scan(&sc.ID, &data, &sc.FailedAt, &sc.Attempts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &sc.Cart); err != nil {
			return nil, fmt.Errorf("decode queued cart %s: %w", sc.ID, err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// SaveQueue replaces the stored queue with carts.
func (r *QueueRepo) SaveQueue(ctx context.Context, carts []domain.SavedCart) error {
	return r.execTX(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM checkout_retry_queue`); err != nil {
			return fmt.Errorf("clear retry queue: %w", err)
		}
		for i, sc := range carts {
			data, err := json.Marshal(sc.Cart)
			if err != nil {
				return fmt.Errorf("encode queued cart %s: %w", sc.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO checkout_retry_queue (id, position, cart, failed_at, attempts)
				VALUES ($1, $2, $3, $4, $5)`,
				sc.ID, i, string(data), sc.FailedAt.UTC(), sc.Attempts)
			if err != nil {
				return fmt.Errorf("save queued cart %s: %w", sc.ID, err)
			}
		}
		return nil
	})
}
