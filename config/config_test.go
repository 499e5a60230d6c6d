package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	t.Setenv("REDIS_CONNECTION_STRING", "redis://localhost:6379/0")
	t.Setenv("SESSION_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.Session.TTL)
	}
	if cfg.Storage.ImagesContainer != "images" {
		t.Fatalf("unexpected container: %q", cfg.Storage.ImagesContainer)
	}
	if cfg.Feed.MaxUploadSize != 10<<20 {
		t.Fatalf("unexpected max upload size: %d", cfg.Feed.MaxUploadSize)
	}
	if cfg.Federate.GoogleClientID != "" {
		t.Fatalf("expected google sign-in disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	t.Setenv("REDIS_CONNECTION_STRING", "redis://localhost:6379/0")
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("BOARD_IDLE_TTL", "15m")
	t.Setenv("EVENT_WORKERS", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Board.IdleTTL != 15*time.Minute {
		t.Fatalf("unexpected idle ttl: %v", cfg.Board.IdleTTL)
	}
	if cfg.Events.Workers != 9 {
		t.Fatalf("unexpected workers: %d", cfg.Events.Workers)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	for _, name := range []string{"STORAGE_CONNECTION_STRING", "REDIS_CONNECTION_STRING", "SESSION_SECRET"} {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("unset %s: %v", name, err)
		}
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required settings")
	}
}

func TestLoadStorageIgnoresServiceSettings(t *testing.T) {
	t.Setenv("STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	t.Setenv("EVENTS_QUEUE", "events")
	t.Setenv("SESSION_SECRET", "")
	os.Unsetenv("SESSION_SECRET")

	cfg, err := LoadStorage()
	if err != nil {
		t.Fatalf("load storage: %v", err)
	}
	if cfg.EventsQueue != "events" || cfg.UsersTable != "users" {
		t.Fatalf("unexpected storage config: %+v", cfg)
	}
}
