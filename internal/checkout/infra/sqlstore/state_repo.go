package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

// StateRepo keeps the last orchestrator state under a single key.
type StateRepo struct {
	db  *sql.DB
	key string
}

func NewStateRepo(db *sql.DB, key string) *StateRepo {
	if key == "" {
		key = "default"
	}
	return &StateRepo{db: db, key: key}
}

func (r *StateRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkout_state (
			state_key TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			previous TEXT NOT NULL,
			session TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate checkout state: %w", err)
	}
	return nil
}

func (r *StateRepo) LoadState(ctx context.Context) (domain.Persisted, bool, error) {
	var (
		p       domain.Persisted
		state   string
		prev    string
		session string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT state, previous, session FROM checkout_state WHERE state_key = $1`, r.key,
	).Scan(&state, &prev, &session)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Persisted{}, false, nil
	}
	if err != nil {
		return domain.Persisted{}, false, err
	}

	p.State = domain.State(state)
	p.Previous = domain.State(prev)
	if session != "" {
		var s domain.Session
		if err := json.Unmarshal([]byte(session), &s); err != nil {
			return domain.Persisted{}, false, fmt.Errorf("decode checkout session: %w", err)
		}
		p.Session = &s
	}
	return p, true, nil
}

func (r *StateRepo) SaveState(ctx context.Context, p domain.Persisted) error {
	session := ""
	if p.Session != nil {
		data, err := json.Marshal(p.Session)
		if err != nil {
			return fmt.Errorf("encode checkout session: %w", err)
		}
		session = string(data)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_state (state_key, state, previous, session, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (state_key) DO UPDATE SET
			state = excluded.state,
			previous = excluded.previous,
			session = excluded.session,
			updated_at = excluded.updated_at`,
		r.key, string(p.State), string(p.Previous), session, time.Now().UTC())
	return err
}
