package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DATABASE_URL", "postgres://localhost/pmds")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.StorageDriver != StorageLocal || cfg.MaxBodyBytes != 1<<20 || cfg.ReminderLookahead != 7*24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Setenv("REMINDER_INTERVAL", "15m")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorageDriver != StorageS3 || cfg.ReminderInterval != 15*time.Minute || cfg.RateLimitPerMinute != 120 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SMTP_PORT", "twenty-five")
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_DRIVER", "ftp")

	err := Load().Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"SMTP_PORT", "DATABASE_URL", "JWT_SECRET", "DATA_ENCRYPTION_KEY", "STORAGE_DRIVER"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := (Config{LogLevel: raw}).SlogLevel(); got != want {
			t.Fatalf("%q: expected %v, got %v", raw, want, got)
		}
	}
}
