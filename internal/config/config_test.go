package config

import (
	"testing"
	"time"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("INVOICEHUB_AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing auth secret")
	}

	t.Setenv("INVOICEHUB_AUTH_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for short auth secret")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INVOICEHUB_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.AccessTokenTTL != 60*time.Minute {
		t.Fatalf("unexpected access TTL: %v", s.AccessTokenTTL)
	}
	if s.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh TTL: %v", s.RefreshTokenTTL)
	}
	if s.BcryptCost != 12 {
		t.Fatalf("unexpected bcrypt cost: %d", s.BcryptCost)
	}
	if s.HTTPAddr != ":8004" {
		t.Fatalf("unexpected addr: %s", s.HTTPAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INVOICEHUB_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("INVOICEHUB_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("INVOICEHUB_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("override ignored: %v", s.AccessTokenTTL)
	}
	if len(s.CORSOrigins) != 2 || s.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", s.CORSOrigins)
	}
}
