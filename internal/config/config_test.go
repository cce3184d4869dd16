package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("expected port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("expected token ttl 24h, got %s", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("expected bcrypt cost 10, got %d", cfg.BcryptCost)
	}
	if cfg.StoreDriver != DriverMongo {
		t.Fatalf("expected mongo driver, got %s", cfg.StoreDriver)
	}
	if cfg.MongoURI != defaultMongoURI {
		t.Fatalf("unexpected mongo uri %s", cfg.MongoURI)
	}
	if cfg.CookieName != "token" {
		t.Fatalf("expected cookie name token, got %s", cfg.CookieName)
	}
	if cfg.TokenRevocation {
		t.Fatalf("expected revocation disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRES_IN", "1d")
	t.Setenv("BCRYPT_SALT_ROUNDS", "12")
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "POSTGRES")
	t.Setenv("SHUTDOWN_TIMEOUT", "30")
	t.Setenv("TOKEN_REVOCATION", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 1d to parse as 24h, got %s", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Fatalf("expected bcrypt cost 12, got %d", cfg.BcryptCost)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Fatalf("expected postgres driver, got %s", cfg.StoreDriver)
	}
	if cfg.ShutdownPeriod != 30*time.Second {
		t.Fatalf("expected 30s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if !cfg.TokenRevocation {
		t.Fatalf("expected revocation enabled")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1d":   24 * time.Hour,
		"90m":  90 * time.Minute,
		"3600": time.Hour,
		"15s":  15 * time.Second,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", in, want, got)
		}
	}
	if _, err := ParseDuration("soon"); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
