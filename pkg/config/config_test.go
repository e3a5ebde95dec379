package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.GRPCPort != 8081 {
		t.Fatalf("ports = (%d,%d)", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.Checkout.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v", cfg.Checkout.PollInterval)
	}
	if cfg.Checkout.OriginPollInterval != time.Second {
		t.Fatalf("origin poll interval = %v", cfg.Checkout.OriginPollInterval)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("db driver = %q", cfg.DB.Driver)
	}
}

func TestLoadFileYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pos.yaml")
	body := `
log_level: debug
shop:
  id: shop-1
checkout:
  fallback_method: QRCODE_OFFLINE
  accepted_methods: [VISA, QRCODE_POS]
cart:
  checkout_limit: 10000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("POS_HTTP_PORT", "9999")
	t.Setenv("POS_CART_PAYMENT_LIMIT", "5000")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.Shop.ID != "shop-1" {
		t.Fatalf("shop id = %q", cfg.Shop.ID)
	}
	if cfg.Checkout.FallbackMethod != "QRCODE_OFFLINE" {
		t.Fatalf("fallback = %q", cfg.Checkout.FallbackMethod)
	}
	if len(cfg.Checkout.AcceptedMethods) != 2 {
		t.Fatalf("accepted = %v", cfg.Checkout.AcceptedMethods)
	}
	if cfg.Cart.CheckoutLimit != 10000 || cfg.Cart.PaymentLimit != 5000 {
		t.Fatalf("limits = (%d,%d)", cfg.Cart.CheckoutLimit, cfg.Cart.PaymentLimit)
	}
	if cfg.HTTPPort != 9999 {
		t.Fatalf("http port = %d", cfg.HTTPPort)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"VISA, MASTERCARD", " ", "QRCODE_POS"})
	if len(got) != 3 || got[0] != "VISA" || got[1] != "MASTERCARD" || got[2] != "QRCODE_POS" {
		t.Fatalf("got %v", got)
	}
}
