package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.AnonymousMinIntervalMs != 900 {
		t.Fatalf("anonymous interval: %d", cfg.AnonymousMinIntervalMs)
	}
	if !cfg.AllowAnonymous {
		t.Fatal("anonymous publishing should default to enabled")
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("sweep interval: %v", cfg.SweepInterval)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadnik.yaml")
	data := []byte("listen: \":9000\"\nanonymousMinIntervalMs: 1500\nallowAnonymous: false\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ANONYMOUS_MIN_INTERVAL_MS", "2000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Fatalf("listen: %q", cfg.Listen)
	}
	if cfg.AllowAnonymous {
		t.Fatal("file should disable anonymous publishing")
	}
	if cfg.AnonymousMinIntervalMs != 2000 {
		t.Fatalf("env should win over file: %d", cfg.AnonymousMinIntervalMs)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnonymousMaxPoints != 100 {
		t.Fatalf("anonymous max points: %d", cfg.AnonymousMaxPoints)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.AnonymousMaxPoints = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
