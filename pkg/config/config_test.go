package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LUNASTORE_CART_API_URL", "https://api.example.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.App.IsDev() {
		t.Fatalf("expected development default env, got %q", cfg.App.Env)
	}
	if cfg.Sync.RefreshDebounce != time.Second {
		t.Fatalf("unexpected refresh debounce: %v", cfg.Sync.RefreshDebounce)
	}
	if cfg.Sync.QuantityDebounce != 500*time.Millisecond {
		t.Fatalf("unexpected quantity debounce: %v", cfg.Sync.QuantityDebounce)
	}
	if cfg.Sync.FailClosed {
		t.Fatal("reconciliation should fail open by default")
	}
	if cfg.Persist.Backend != PersistBackendSQLite {
		t.Fatalf("unexpected persist backend: %q", cfg.Persist.Backend)
	}
}

func TestLoadRequiresGatewayURL(t *testing.T) {
	t.Setenv("LUNASTORE_CART_API_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when cart API url is missing")
	}
}

func TestLoadRejectsUnknownPersistBackend(t *testing.T) {
	t.Setenv("LUNASTORE_CART_API_URL", "https://api.example.test")
	t.Setenv("LUNASTORE_PERSIST_BACKEND", "etcd")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown persist backend")
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := AppConfig{CORSOrigins: "http://localhost:3000, https://shop.example.test ,"}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %v", origins)
	}
	if origins[1] != "https://shop.example.test" {
		t.Fatalf("unexpected origin: %q", origins[1])
	}
}
