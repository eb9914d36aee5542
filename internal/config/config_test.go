package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LOGISTICS_INTERVAL_SECONDS",
		"LOGISTICS_ERROR_BACKOFF_SECONDS",
		"ROUTING_GHOST_WINDOW_MINUTES",
		"ROUTING_TAG_TIMEZONE",
		"EVENTS_REDIS_CHANNEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logistics.Interval() != 15*time.Second {
		t.Fatalf("expected 15s interval, got %s", cfg.Logistics.Interval())
	}
	if cfg.Logistics.ErrorBackoff() != 5*time.Second {
		t.Fatalf("expected 5s backoff, got %s", cfg.Logistics.ErrorBackoff())
	}
	if cfg.Routing.GhostWindow() != 5*time.Minute {
		t.Fatalf("expected 5m ghost window, got %s", cfg.Routing.GhostWindow())
	}
	if cfg.Redis.EventsChannel != "routing:events" {
		t.Fatalf("unexpected events channel %q", cfg.Redis.EventsChannel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOGISTICS_INTERVAL_SECONDS", "2")
	t.Setenv("LOGISTICS_ERROR_BACKOFF_SECONDS", "10")
	t.Setenv("ROUTING_TAG_TIMEZONE", "Asia/Shanghai")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logistics.ErrorBackoff() != 2*time.Second {
		t.Fatalf("expected backoff capped at interval, got %s", cfg.Logistics.ErrorBackoff())
	}
	loc, err := cfg.Routing.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Asia/Shanghai" {
		t.Fatalf("unexpected location %s", loc)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ROUTING_TAG_TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid timezone error")
	}

	t.Setenv("ROUTING_TAG_TIMEZONE", "UTC")
	t.Setenv("LOGISTICS_INTERVAL_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid interval error")
	}
}
