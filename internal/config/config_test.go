package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"homecrew/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Quota.DailyCap != 3 {
		t.Fatalf("daily cap = %v, want 3", cfg.Quota.DailyCap)
	}
	if cfg.ScanInterval() != 60*time.Second {
		t.Fatalf("scan interval = %v", cfg.ScanInterval())
	}
	if cfg.RetryInterval() != 10*time.Minute {
		t.Fatalf("retry interval = %v", cfg.RetryInterval())
	}
	if cfg.Retry.MaxAttempts != 20 {
		t.Fatalf("max attempts = %d", cfg.Retry.MaxAttempts)
	}
	if cfg.MinMissionSpan() != time.Hour {
		t.Fatalf("min span = %v", cfg.MinMissionSpan())
	}
}

func TestGeneratedDefaultRoundTrips(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault()))
	if err != nil {
		t.Fatalf("parse generated default: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("generated default invalid: %v", err)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Quota.DailyCap != 3 {
		t.Fatalf("expected defaults, got cap=%v", cfg.Quota.DailyCap)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	yml := "quota:\n  daily_cap: 0\nretry:\n  scan_seconds: 60\n  interval_minutes: 10\n  max_attempts: 20\n"
	if err := os.WriteFile(filepath.Join(dir, "homecrew.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(dir); err == nil {
		t.Fatal("zero daily cap accepted")
	}
}

func TestMailValidation(t *testing.T) {
	cfg := config.Default()
	cfg.Mail.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("mail enabled without host accepted")
	}
	cfg.Mail.Host = "smtp.test"
	cfg.Mail.Port = 587
	cfg.Mail.From = "noreply@test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid mail config rejected: %v", err)
	}
}
