/*
Package config provides centralized configuration management for the
catalog aggregation engine.

This package loads, validates, and parses configuration for all
application components and provides sensible defaults for optional
settings. Loading is layered via Koanf v2: built-in defaults, an
optional YAML file, then environment variable overrides.

# Configuration Structure

  - ProviderAConfig: xtream-style HTTP catalog source
  - ProviderBConfig: messaging-platform export source
  - DatabaseConfig: DuckDB entity store settings
  - KVStoreConfig: Badger fingerprint/checkpoint/credential store settings
  - SyncConfig: incremental-sync decider and channel sync buffer settings
  - DispatcherConfig: API priority dispatcher timings
  - KillSwitchConfig: catalog read/write mode gate
  - NATSConfig: change-stream and outbox publishing (Watermill/JetStream)
  - ServerConfig: HTTP control facade (go-chi)
  - RulesConfig: Casbin profile rule enforcement
  - LoggingConfig: zerolog output settings

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Info().Str("base_url", cfg.ProviderA.BaseURL).Msg("provider A configured")

# Validation

Load validates that at least one provider is enabled, that enabled
providers carry their required credentials, that URLs are well formed,
and that the kill-switch modes are one of legacy, dual, new.

# Thread Safety

Config is immutable after Load returns, so concurrent reads need no
synchronization.

# See Also

  - internal/credential: encrypts provider credential handles at rest
  - internal/killswitch: consumes KillSwitchConfig at startup
*/
package config
