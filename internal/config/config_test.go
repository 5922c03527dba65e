package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cart.Key != "carrito" {
		t.Errorf("cart key = %q, want carrito", cfg.Cart.Key)
	}
	if cfg.Driver.DecisionWindow != 30*time.Second {
		t.Errorf("decision window = %v, want 30s", cfg.Driver.DecisionWindow)
	}
	if !cfg.Driver.RejectOnTimeout {
		t.Error("driver watcher should release orders on timeout by default")
	}
	if cfg.Merchant.RejectOnTimeout {
		t.Error("merchant watcher must not reject on timeout")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DELIVERY_DRIVER_POLL", "5s")
	t.Setenv("DELIVERY_MERCHANT_POLL", "7")
	t.Setenv("DELIVERY_REJECT_ON_TIMEOUT", "false")
	t.Setenv("DELIVERY_CART_BACKEND", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Driver.Interval != 5*time.Second {
		t.Errorf("driver interval = %v, want 5s", cfg.Driver.Interval)
	}
	if cfg.Merchant.Interval != 7*time.Second {
		t.Errorf("merchant interval = %v, want 7s", cfg.Merchant.Interval)
	}
	if cfg.Driver.RejectOnTimeout {
		t.Error("expected reject-on-timeout disabled")
	}
	if cfg.Cart.Backend != "redis" {
		t.Errorf("cart backend = %q, want redis", cfg.Cart.Backend)
	}
}

func TestEnvOrDefaultDuration_Garbage(t *testing.T) {
	t.Setenv("X_DELIVERY_BAD", "soon")
	if got := envOrDefaultDuration("X_DELIVERY_BAD", time.Minute); got != time.Minute {
		t.Errorf("got %v, want fallback 1m", got)
	}
}

func TestLoad_AgentDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Payments.CallingCode != "58" {
		t.Errorf("calling code = %q, want 58", cfg.Payments.CallingCode)
	}
	if cfg.Location.Period != 30*time.Second {
		t.Errorf("location period = %v, want 30s", cfg.Location.Period)
	}
	if cfg.Journal != "memory" || cfg.Location.Store != "memory" {
		t.Errorf("journal = %q, location store = %q, want memory", cfg.Journal, cfg.Location.Store)
	}
}
