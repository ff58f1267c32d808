//go:build nats

package changestream

import (
	"testing"
	"time"

	"github.com/karlokarate/nxcatalog/internal/config"
)

func TestStreamConfigFrom_DefaultsRetentionWhenUnset(t *testing.T) {
	cfg := StreamConfigFrom(config.NATSConfig{StreamRetentionDays: 0})
	if cfg.MaxAge != 7*24*time.Hour {
		t.Fatalf("expected default 7-day retention, got %v", cfg.MaxAge)
	}
	if cfg.Name != "NXCATALOG_CHANGES" {
		t.Fatalf("unexpected stream name %q", cfg.Name)
	}
}

func TestStreamConfigFrom_UsesConfiguredRetention(t *testing.T) {
	cfg := StreamConfigFrom(config.NATSConfig{StreamRetentionDays: 30})
	if cfg.MaxAge != 30*24*time.Hour {
		t.Fatalf("expected 30-day retention, got %v", cfg.MaxAge)
	}
}

func TestSubscriberConfigFrom_ClampsSubscribersCountToAtLeastOne(t *testing.T) {
	cfg := SubscriberConfigFrom("nats://127.0.0.1:4222", config.NATSConfig{SubscribersCount: 0})
	if cfg.SubscribersCount != 1 {
		t.Fatalf("expected subscribers count clamped to 1, got %d", cfg.SubscribersCount)
	}
}

func TestSubscriberConfigFrom_PreservesConfiguredSubscribersCount(t *testing.T) {
	cfg := SubscriberConfigFrom("nats://127.0.0.1:4222", config.NATSConfig{SubscribersCount: 4})
	if cfg.SubscribersCount != 4 {
		t.Fatalf("expected subscribers count 4, got %d", cfg.SubscribersCount)
	}
}

func TestServerConfigFrom_CarriesStoreAndLimits(t *testing.T) {
	cfg := ServerConfigFrom(config.NATSConfig{StoreDir: "/var/lib/nxcatalog/nats", MaxMemory: 64 << 20, MaxStore: 1 << 30})
	if cfg.StoreDir != "/var/lib/nxcatalog/nats" {
		t.Fatalf("unexpected store dir %q", cfg.StoreDir)
	}
	if cfg.JetStreamMaxMem != 64<<20 || cfg.JetStreamMaxStore != 1<<30 {
		t.Fatalf("unexpected jetstream limits: %+v", cfg)
	}
}
