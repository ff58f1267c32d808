package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.ProviderA.BaseURL = "http://xtream.example.com:8080"
	cfg.ProviderA.Username = "user"
	cfg.ProviderA.Password = "pass"
	return cfg
}

func TestValidateRequiresAtLeastOneProvider(t *testing.T) {
	cfg := validConfig()
	cfg.ProviderA.Enabled = false
	cfg.ProviderB.Enabled = false

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error when no provider is enabled")
	}
}

func TestValidateProviderARequiresBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.ProviderA.BaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error when provider_a enabled without base_url")
	}
}

func TestValidateProviderBRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.ProviderB.Enabled = true
	cfg.ProviderB.APIID = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error when provider_b enabled without api_id/api_hash")
	}
}

func TestValidateKillSwitchModes(t *testing.T) {
	cfg := validConfig()
	cfg.KillSwitch.ReadMode = "bogus"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for invalid killswitch.read_mode")
	}
}

func TestValidateChannelBufferCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.ChannelBufferCapacity = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for non-positive channel buffer capacity")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error on valid config: %v", err)
	}
}

func TestDefaultConfigSyncTimings(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Sync.ChannelBufferCapacity != 1000 {
		t.Errorf("default channel_buffer_capacity = %d, want 1000", cfg.Sync.ChannelBufferCapacity)
	}
	if cfg.Sync.IncrementalMaxAge != 24*time.Hour {
		t.Errorf("default incremental_max_age = %v, want 24h", cfg.Sync.IncrementalMaxAge)
	}
	if cfg.KillSwitch.ReadMode != "legacy" || cfg.KillSwitch.WriteMode != "legacy" {
		t.Errorf("default killswitch modes = %s/%s, want legacy/legacy", cfg.KillSwitch.ReadMode, cfg.KillSwitch.WriteMode)
	}
}
