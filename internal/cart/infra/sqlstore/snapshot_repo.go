package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SnapshotRepo keeps one opaque cart snapshot per key.
type SnapshotRepo struct {
	db  *sql.DB
	key string
}

func NewSnapshotRepo(db *sql.DB, key string) *SnapshotRepo {
	if key == "" {
		key = "default"
	}
	return &SnapshotRepo{db: db, key: key}
}

func (r *SnapshotRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cart_snapshots (
			cart_key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate cart snapshots: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) LoadCart(ctx context.Context) ([]byte, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM cart_snapshots WHERE cart_key = $1`, r.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (r *SnapshotRepo) SaveCart(ctx context.Context, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (cart_key, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (cart_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		r.key, string(data), time.Now().UTC())
	return err
}
