package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvAppEnv, "dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.App.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.App.Port)
	}
	if cfg.Storage.NormalizedDriver() != DriverMemory {
		t.Fatalf("expected memory driver by default, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Namespace != "cs" {
		t.Fatalf("unexpected namespace %q", cfg.Storage.Namespace)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Fatalf("unexpected metrics config %+v", cfg.Metrics)
	}
}

func TestLoad_Redis(t *testing.T) {
	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvStorageDriver, "REDIS")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvStorageTTL, "720h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}
	if cfg.Storage.TTL != 720*time.Hour {
		t.Fatalf("expected ttl 720h, got %v", cfg.Storage.TTL)
	}
	if cfg.DB.Driver != DriverRedis {
		t.Fatalf("expected normalized driver to propagate, got %q", cfg.DB.Driver)
	}
}

func TestLoad_RedisRequiresAddress(t *testing.T) {
	t.Setenv(EnvAppEnv, "dev")
	t.Setenv(EnvStorageDriver, DriverRedis)

	if _, err := Load(); err == nil {
		t.Fatal("expected redis driver without address to fail")
	}
}

func TestLoad_SQLRequiresDSN(t *testing.T) {
	t.Setenv(EnvAppEnv, "dev")
	t.Setenv(EnvStorageDriver, DriverSQLite)

	if _, err := Load(); err == nil {
		t.Fatal("expected sqlite driver without dsn to fail")
	}

	t.Setenv(EnvDBDSN, "file:cart.db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if !cfg.Storage.UsesDB() || cfg.DB.Driver != DriverSQLite {
		t.Fatalf("expected sqlite db config, got %+v", cfg.DB)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv(EnvAppEnv, "dev")
	t.Setenv(EnvStorageDriver, "localstorage")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv(EnvAppEnv, "dev")
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}
