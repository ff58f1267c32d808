package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/nxcatalog/config.yaml",
	"/etc/nxcatalog/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		ProviderA: ProviderAConfig{
			Enabled:                   true,
			Timeout:                   15 * time.Second,
			RateLimitRPS:              4,
			RateLimitBurst:            8,
			CircuitBreakerThreshold:   5,
			CircuitBreakerOpenTimeout: 30 * time.Second,
		},
		ProviderB: ProviderBConfig{
			Enabled: false,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:                   "/data/nxcatalog.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
			SkipIndexes:            false,
		},
		KVStore: KVStoreConfig{
			Path:                "/data/nxcatalog.kv",
			ValueLogGC:          true,
			ValueLogGCInterval:  10 * time.Minute,
			FingerprintTTL:      30 * 24 * time.Hour,
			FingerprintFrontLRU: 50000,
		},
		Sync: SyncConfig{
			Interval:              5 * time.Minute,
			IncrementalMaxAge:     24 * time.Hour,
			ForceFull:             false,
			ChannelBufferCapacity: 1000,
			LowRAMMode:            false,
			RetryAttempts:         5,
			RetryDelay:            2 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			HighPriorityYieldCheck: 50 * time.Millisecond,
			CriticalGracePeriod:    500 * time.Millisecond,
		},
		KillSwitch: KillSwitchConfig{
			ReadMode:  "legacy",
			WriteMode: "legacy",
		},
		NATS: NATSConfig{
			Enabled:             true,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			SubscribersCount:    4,
			DurableName:         "nx-catalog-consumer",
			QueueGroup:          "catalog-processors",

			RouterRetryCount:           3,
			RouterRetryInitialInterval: 100 * time.Millisecond,
			RouterDeduplicationEnabled: true,
			RouterDeduplicationTTL:     5 * time.Minute,
			RouterPoisonQueueTopic:     "catalog.poison",
			RouterCloseTimeout:         30 * time.Second,
		},
		Server: ServerConfig{
			Port:        3857,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",

			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Rules: RulesConfig{
			ModelPath:      "",
			PolicyPath:     "",
			AutoReload:     true,
			ReloadInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Credential: CredentialConfig{
			MasterKey: "",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides
// type-safe unmarshaling with clear precedence: ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"provider_b.chat_ids",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - PROVIDER_A_BASE_URL -> provider_a.base_url
//   - PROVIDER_B_API_ID -> provider_b.api_id
//   - DUCKDB_PATH is NOT mapped; use DATABASE_PATH -> database.path
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"provider_a_enabled":                 "provider_a.enabled",
		"provider_a_base_url":                "provider_a.base_url",
		"provider_a_username":                "provider_a.username",
		"provider_a_password":                "provider_a.password",
		"provider_a_timeout":                 "provider_a.timeout",
		"provider_a_rate_limit_rps":          "provider_a.rate_limit_rps",
		"provider_a_rate_limit_burst":        "provider_a.rate_limit_burst",
		"provider_a_circuit_breaker_threshold": "provider_a.circuit_breaker_threshold",
		"provider_a_circuit_breaker_timeout":   "provider_a.circuit_breaker_timeout",

		"provider_b_enabled":      "provider_b.enabled",
		"provider_b_api_id":       "provider_b.api_id",
		"provider_b_api_hash":     "provider_b.api_hash",
		"provider_b_session_path": "provider_b.session_path",
		"provider_b_chat_ids":     "provider_b.chat_ids",
		"provider_b_timeout":      "provider_b.timeout",

		"database_path":                    "database.path",
		"database_max_memory":              "database.max_memory",
		"database_threads":                 "database.threads",
		"database_preserve_insertion_order": "database.preserve_insertion_order",
		"database_skip_indexes":            "database.skip_indexes",

		"kvstore_path":                  "kvstore.path",
		"kvstore_value_log_gc":          "kvstore.value_log_gc",
		"kvstore_value_log_gc_interval": "kvstore.value_log_gc_interval",
		"kvstore_fingerprint_ttl":       "kvstore.fingerprint_ttl",
		"kvstore_fingerprint_front_lru": "kvstore.fingerprint_front_lru",

		"sync_interval":                "sync.interval",
		"sync_incremental_max_age":     "sync.incremental_max_age",
		"sync_force_full":              "sync.force_full",
		"sync_channel_buffer_capacity": "sync.channel_buffer_capacity",
		"sync_low_ram_mode":            "sync.low_ram_mode",
		"sync_retry_attempts":          "sync.retry_attempts",
		"sync_retry_delay":             "sync.retry_delay",

		"dispatcher_high_priority_yield_check": "dispatcher.high_priority_yield_check",
		"dispatcher_critical_grace_period":     "dispatcher.critical_grace_period",

		"killswitch_read_mode":  "killswitch.read_mode",
		"killswitch_write_mode": "killswitch.write_mode",

		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_subscribers":    "nats.subscribers_count",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",

		"nats_router_retry_count":    "nats.router_retry_count",
		"nats_router_retry_interval": "nats.router_retry_initial_interval",
		"nats_router_dedup_enabled":  "nats.router_deduplication_enabled",
		"nats_router_dedup_ttl":      "nats.router_deduplication_ttl",
		"nats_router_poison_topic":   "nats.router_poison_queue_topic",
		"nats_router_close_timeout":  "nats.router_close_timeout",

		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",
		"disable_rate_limit":  "server.rate_limit_disabled",

		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		"rules_model_path":      "rules.model_path",
		"rules_policy_path":     "rules.policy_path",
		"rules_auto_reload":     "rules.auto_reload",
		"rules_reload_interval": "rules.reload_interval",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"credential_master_key": "credential.master_key",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage, such as
// hot-reload scenarios or testing with mock configuration sources.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when accessing configuration
// during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
