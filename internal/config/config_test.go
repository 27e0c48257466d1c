package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Errorf("Env = %q, want development default", cfg.Env)
	}
	if cfg.HasDatabase() {
		t.Error("HasDatabase true without DATABASE_URL")
	}
	ttl, err := cfg.CacheTTL()
	if err != nil {
		t.Fatalf("CacheTTL: %v", err)
	}
	if ttl != 15*time.Minute {
		t.Errorf("CacheTTL = %v", ttl)
	}
	if cfg.TerminologyTimeout() != 250*time.Millisecond {
		t.Errorf("TerminologyTimeout = %v", cfg.TerminologyTimeout())
	}
	if cfg.ParseTimeout() != 10*time.Second {
		t.Errorf("ParseTimeout = %v", cfg.ParseTimeout())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/terminology")
	t.Setenv("TERMINOLOGY_CACHE_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Errorf("Env = %q", cfg.Env)
	}
	if !cfg.HasDatabase() {
		t.Error("HasDatabase false with DATABASE_URL set")
	}
	if ttl, _ := cfg.CacheTTL(); ttl != time.Hour {
		t.Errorf("CacheTTL = %v", ttl)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("TERMINOLOGY_CACHE_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Error("invalid TTL accepted")
	}
}
