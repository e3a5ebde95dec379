// Package database opens the configured SQL store.
package database

import (
	"database/sql"
	"fmt"

	"github.com/dwikikusuma/pos-checkout/pkg/config"
	"github.com/dwikikusuma/pos-checkout/pkg/postgres"
	"github.com/dwikikusuma/pos-checkout/pkg/sqlite"
)

// Open connects to the database named by cfg.Driver. An empty driver
// means sqlite.
func Open(cfg config.DB) (*sql.DB, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlite.Open(cfg.Path)
	case "postgres":
		return postgres.Open(postgres.Config{
			Host: cfg.Host,
			Port: cfg.Port,
			User: cfg.User,
			Pass: cfg.Pass,
			DB:   cfg.Name,
		})
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}
