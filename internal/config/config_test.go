package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")
	if err := os.WriteFile(path, []byte(`{"chain":{"rpc_url":"http://localhost:8545"}}`), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Pipeline.MinBalanceEther != "0.3" {
		t.Fatalf("unexpected balance gate default: %s", cfg.Pipeline.MinBalanceEther)
	}
	if cfg.Pipeline.StoreThreshold != 7 || cfg.Pipeline.PublishThreshold != 3 {
		t.Fatalf("unexpected significance defaults: %f / %f", cfg.Pipeline.StoreThreshold, cfg.Pipeline.PublishThreshold)
	}
	if cfg.Pipeline.DecisionAttempts != 2 {
		t.Fatalf("unexpected decision attempts: %d", cfg.Pipeline.DecisionAttempts)
	}
	if cfg.Pipeline.FollowThreshold != 0.98 {
		t.Fatalf("unexpected follow threshold: %f", cfg.Pipeline.FollowThreshold)
	}
	if cfg.Chain.GasPriceMultiplier != 1.1 {
		t.Fatalf("unexpected gas multiplier: %f", cfg.Chain.GasPriceMultiplier)
	}
	if cfg.Scheduler.MinIntervalSeconds != 30 || cfg.Scheduler.MaxIntervalSeconds != 180 {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Storage.Driver != "file" {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.Driver)
	}
}

func TestLoadClampsPublishThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")
	if err := os.WriteFile(path, []byte(`{"pipeline":{"store_threshold":5,"publish_threshold":9}}`), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.PublishThreshold > cfg.Pipeline.StoreThreshold {
		t.Fatalf("publish threshold must not exceed store threshold: %+v", cfg.Pipeline)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
