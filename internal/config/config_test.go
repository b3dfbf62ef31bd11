package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without a database URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/priceguard")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIPort != 8000 {
		t.Errorf("APIPort = %d, want 8000", cfg.APIPort)
	}
	if cfg.MongoDatabase != "priceguard" {
		t.Errorf("MongoDatabase = %q", cfg.MongoDatabase)
	}
	if cfg.PollInterval != 10*time.Minute {
		t.Errorf("PollInterval = %s, want 10m", cfg.PollInterval)
	}
	if cfg.PollWorkers != 5 {
		t.Errorf("PollWorkers = %d, want 5", cfg.PollWorkers)
	}
	if cfg.OpenAPIBaseURL != DefaultOpenAPIBaseURL {
		t.Errorf("OpenAPIBaseURL = %q", cfg.OpenAPIBaseURL)
	}
	if !cfg.RateLimitEnabled {
		t.Error("rate limiting disabled by default")
	}
	if cfg.IsProduction() {
		t.Error("IsProduction true in development")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://db:5432/pg")
	t.Setenv("API_PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("POLL_INTERVAL", "3m")
	t.Setenv("POLL_WORKERS", "12")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DatabaseURL != "postgres://db:5432/pg" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.APIPort != 9000 {
		t.Errorf("APIPort = %d, want 9000", cfg.APIPort)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction false for production environment")
	}
	if cfg.PollInterval != 3*time.Minute {
		t.Errorf("PollInterval = %s, want 3m", cfg.PollInterval)
	}
	if cfg.PollWorkers != 12 {
		t.Errorf("PollWorkers = %d, want 12", cfg.PollWorkers)
	}
	if cfg.RateLimitEnabled {
		t.Error("rate limiting still enabled")
	}
	want := []string{"https://app.example.com", "https://staging.example.com"}
	if len(cfg.CORSAllowOrigins) != len(want) {
		t.Fatalf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
	for i := range want {
		if cfg.CORSAllowOrigins[i] != want[i] {
			t.Errorf("origin[%d] = %q, want %q", i, cfg.CORSAllowOrigins[i], want[i])
		}
	}
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := envInt("SOME_INT", 42); got != 42 {
		t.Errorf("envInt = %d, want fallback 42", got)
	}
}

func TestEnvDurationIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "ten minutes")
	if got := envDuration("SOME_DURATION", time.Minute); got != time.Minute {
		t.Errorf("envDuration = %s, want fallback 1m", got)
	}
}
