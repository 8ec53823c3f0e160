package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("Embedding.Dimensions = %d, want 1536", cfg.Embedding.Dimensions)
	}
	if cfg.Integrator.ChunkSize != 50 {
		t.Errorf("Integrator.ChunkSize = %d, want 50", cfg.Integrator.ChunkSize)
	}
	if cfg.Integrator.Tick != 10*time.Second {
		t.Errorf("Integrator.Tick = %v, want 10s", cfg.Integrator.Tick)
	}
	if cfg.Resilience.CBWindow != 100 || cfg.Resilience.CBMinCalls != 10 {
		t.Errorf("unexpected circuit-breaker defaults: %+v", cfg.Resilience)
	}
	if cfg.Places.RateDelay != 200*time.Millisecond {
		t.Errorf("Places.RateDelay = %v, want 200ms", cfg.Places.RateDelay)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"database":{"host":"db.internal","user":"owl","database":"events"},"embedding":{"model":"text-embedding-3-small"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding.Model = %q", cfg.Embedding.Model)
	}
	// Defaults still applied for fields not set in the file.
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("Embedding.Dimensions = %d, want 1536", cfg.Embedding.Dimensions)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"totally_unknown_section": {}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown config field")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AGGREGATOR_DATABASE_HOST", "env-host")
	t.Setenv("AGGREGATOR_PLACES_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Host != "env-host" {
		t.Errorf("Database.Host = %q, want env-host", cfg.Database.Host)
	}
	if !cfg.Places.Enabled {
		t.Error("Places.Enabled = false, want true via env override")
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := Load("")
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing database settings")
	}

	cfg.Database.Host = "localhost"
	cfg.Database.User = "owl"
	cfg.Database.Database = "events"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg.Places.Enabled = true
	cfg.Places.APIKey = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error when places enabled without api key")
	}
}
