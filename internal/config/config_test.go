package config

import "testing"

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PETLING_ADDR", "")
	t.Setenv("PETLING_STORE", "")
	t.Setenv("PETLING_DATA_FILE", "")
	t.Setenv("PETLING_SEED_CATALOG", "")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.StoreDriver != StoreFile {
		t.Fatalf("driver = %q, want %q", cfg.StoreDriver, StoreFile)
	}
	if cfg.DataFile != "data.json" {
		t.Fatalf("data file = %q, want data.json", cfg.DataFile)
	}
	if !cfg.SeedCatalog {
		t.Fatalf("seed catalog should default to true")
	}
}

func TestLoadFromEnvPortOverride(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr = %q, want :9090", cfg.Addr)
	}
}

func TestLoadFromEnvRejectsBadDriver(t *testing.T) {
	t.Setenv("PETLING_STORE", "dynamo")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error for unknown store driver")
	}
}

func TestLoadFromEnvPostgresNeedsURL(t *testing.T) {
	t.Setenv("PETLING_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is unset")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/petling")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != StorePostgres {
		t.Fatalf("driver = %q, want %q", cfg.StoreDriver, StorePostgres)
	}
}
