package database

import (
	"path/filepath"
	"testing"

	"github.com/dwikikusuma/pos-checkout/pkg/config"
)

func TestOpenSQLite(t *testing.T) {
	db, err := Open(config.DB{Path: filepath.Join(t.TempDir(), "nested", "pos.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(config.DB{Driver: "mysql"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
