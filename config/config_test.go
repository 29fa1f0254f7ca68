package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSource_MissingFileUsesDefaults(t *testing.T) {
	src, err := LoadSource(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultSource()
	if *src != def {
		t.Fatalf("expected defaults %+v, got %+v", def, *src)
	}
}

func TestLoadSource_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "necc.yaml")
	yaml := "url: https://example.test/prices\ntable_id: prices\ntimeout_sec: 10\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := LoadSource(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.URL != "https://example.test/prices" {
		t.Fatalf("unexpected url %s", src.URL)
	}
	if src.TableID != "prices" {
		t.Fatalf("unexpected table id %s", src.TableID)
	}
	if src.UserAgent != DefaultSource().UserAgent {
		t.Fatalf("expected default user agent, got %s", src.UserAgent)
	}
	if src.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %s", src.Timeout)
	}
}

func TestLoad_KillSwitchAndBackend(t *testing.T) {
	t.Setenv("NECC_SOURCE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NECC_SCRAPER_ENABLED", "false")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SUPABASE_DB_URL", "postgres://u:p@localhost:5432/db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scraper.Enabled {
		t.Fatalf("expected scraper disabled")
	}
	if cfg.Backend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %s", cfg.Backend)
	}

	t.Setenv("NECC_SCRAPER_ENABLED", "FALSE")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Scraper.Enabled {
		t.Fatalf("only the literal string false should disable the scraper")
	}
}

func TestLoadZoneNames(t *testing.T) {
	names, err := LoadZoneNames("zones.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(names) == 0 {
		t.Fatalf("expected seeded zones")
	}
	found := false
	for _, n := range names {
		if n == "Namakkal" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Namakkal in seed list")
	}
}
