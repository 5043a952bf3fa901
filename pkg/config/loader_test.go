package config_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/TimyBen/cloud-file-management-system/pkg/config"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(newTestLogger(), "does-not-exist")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("Address = %q, want :8080", cfg.Server.Address)
	}
	if cfg.Server.ConnectionLimit.MaxPerUser != 5 {
		t.Errorf("MaxPerUser = %d, want 5", cfg.Server.ConnectionLimit.MaxPerUser)
	}
	if cfg.Server.ConnectionLimit.Mode != "reject" {
		t.Errorf("Mode = %q, want reject", cfg.Server.ConnectionLimit.Mode)
	}
	if cfg.Transport.ReadTimeout != 60*time.Second {
		t.Errorf("ReadTimeout = %v, want 60s", cfg.Transport.ReadTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Database.DSN != "" || cfg.Redis.Addr != "" {
		t.Errorf("external backends configured by default: %+v", cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COLLAB_SERVER_ADDRESS", ":9999")
	t.Setenv("COLLAB_LOG_LEVEL", "debug")

	cfg, err := config.Load(newTestLogger(), "does-not-exist")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("Address = %q, want :9999", cfg.Server.Address)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}
