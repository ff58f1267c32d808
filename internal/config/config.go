package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variable overrides (Koanf v2).
//
// Configuration Loading Order:
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file for persistent settings
//  3. Environment Variables: override any setting
//
// Configuration Categories:
//
//  1. Catalog providers:
//     - ProviderA: xtream-style HTTP catalog source
//     - ProviderB: messaging-platform export source
//
//  2. Storage:
//     - Database: DuckDB-backed entity store
//     - KVStore: Badger-backed fingerprint/checkpoint/credential stores
//
//  3. Sync and dispatch:
//     - Sync: incremental-sync decider and catalog sync service
//     - Dispatcher: API priority dispatcher tier timings
//     - KillSwitch: catalog read/write mode gate
//
//  4. Messaging:
//     - NATS: change-stream and outbox publishing via Watermill/JetStream
//
//  5. Server and rules:
//     - Server: HTTP control facade (chi)
//     - Rules: Casbin-backed profile rule enforcement
//     - Logging: zerolog output settings
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("failed to load config")
//	}
//
// Validation:
// Load validates all required fields and returns an error if values are
// malformed (invalid URL, unknown kill-switch mode, non-positive channel
// buffer capacity) or required credentials for an enabled provider are
// missing. Other numeric fields are not range-checked.
//
// Thread Safety: Config is immutable after Load and safe for concurrent
// read access from multiple goroutines.
type Config struct {
	ProviderA  ProviderAConfig  `koanf:"provider_a"`
	ProviderB  ProviderBConfig  `koanf:"provider_b"`
	Database   DatabaseConfig   `koanf:"database"`
	KVStore    KVStoreConfig    `koanf:"kvstore"`
	Sync       SyncConfig       `koanf:"sync"`
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	KillSwitch KillSwitchConfig `koanf:"killswitch"`
	NATS       NATSConfig       `koanf:"nats"`
	Server     ServerConfig     `koanf:"server"`
	API        APIConfig        `koanf:"api"`
	Rules      RulesConfig      `koanf:"rules"`
	Logging    LoggingConfig    `koanf:"logging"`
	Credential CredentialConfig `koanf:"credential"`
}

// ProviderAConfig holds connection settings for the xtream-style HTTP
// catalog provider.
//
// Environment Variables:
//   - PROVIDER_A_ENABLED: enable this provider (default: true)
//   - PROVIDER_A_BASE_URL: player_api.php base URL
//   - PROVIDER_A_USERNAME: account username
//   - PROVIDER_A_PASSWORD: account password (stored only as an encrypted
//     credential handle, see internal/credential)
//   - PROVIDER_A_TIMEOUT: HTTP client timeout (default: 15s)
//   - PROVIDER_A_RATE_LIMIT_RPS: requests per second ceiling (default: 4)
//   - PROVIDER_A_RATE_LIMIT_BURST: token bucket burst size (default: 8)
//   - PROVIDER_A_CIRCUIT_BREAKER_THRESHOLD: consecutive failures before
//     opening the breaker (default: 5)
//   - PROVIDER_A_CIRCUIT_BREAKER_TIMEOUT: open-state cooldown (default: 30s)
type ProviderAConfig struct {
	Enabled                   bool          `koanf:"enabled"`
	BaseURL                   string        `koanf:"base_url"`
	Username                  string        `koanf:"username"`
	Password                  string        `koanf:"password"`
	Timeout                   time.Duration `koanf:"timeout"`
	RateLimitRPS              float64       `koanf:"rate_limit_rps"`
	RateLimitBurst            int           `koanf:"rate_limit_burst"`
	CircuitBreakerThreshold   uint32        `koanf:"circuit_breaker_threshold"`
	CircuitBreakerOpenTimeout time.Duration `koanf:"circuit_breaker_timeout"`
}

// ProviderBConfig holds connection settings for the messaging-platform
// export provider.
//
// Environment Variables:
//   - PROVIDER_B_ENABLED: enable this provider (default: false)
//   - PROVIDER_B_API_ID / PROVIDER_B_API_HASH: client credentials
//   - PROVIDER_B_SESSION_PATH: path to the stored session handle
//   - PROVIDER_B_CHAT_IDS: comma-separated list of chat IDs to export
//   - PROVIDER_B_TIMEOUT: client call timeout (default: 30s)
type ProviderBConfig struct {
	Enabled     bool          `koanf:"enabled"`
	APIID       string        `koanf:"api_id"`
	APIHash     string        `koanf:"api_hash"`
	SessionPath string        `koanf:"session_path"`
	ChatIDs     []int64       `koanf:"chat_ids"`
	Timeout     time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings for the entity store.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = NumCPU
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	SkipIndexes            bool   `koanf:"skip_indexes"` // fast test setup
}

// KVStoreConfig holds Badger settings shared by the fingerprint store and
// the checkpoint store. Each uses a distinct key prefix within the same
// database (internal/kvstore).
type KVStoreConfig struct {
	Path                string        `koanf:"path"`
	ValueLogGC          bool          `koanf:"value_log_gc"`
	ValueLogGCInterval  time.Duration `koanf:"value_log_gc_interval"`
	FingerprintTTL      time.Duration `koanf:"fingerprint_ttl"`
	FingerprintFrontLRU int           `koanf:"fingerprint_front_lru"`
}

// SyncConfig holds incremental-sync decider and catalog sync service
// settings.
type SyncConfig struct {
	Interval              time.Duration `koanf:"interval"`
	IncrementalMaxAge     time.Duration `koanf:"incremental_max_age"` // not consulted by internal/decider, which never forces a full sync by age
	ForceFull             bool          `koanf:"force_full"`
	ChannelBufferCapacity int           `koanf:"channel_buffer_capacity"` // default 1000, 500 low-RAM
	LowRAMMode            bool          `koanf:"low_ram_mode"`
	RetryAttempts         int           `koanf:"retry_attempts"`
	RetryDelay            time.Duration `koanf:"retry_delay"`
}

// DispatcherConfig holds cooperative pre-emption timings for the API
// priority dispatcher. internal/dispatcher does not read either field: it
// signals yield changes over channels instead of polling, and applies no
// grace period before asking a background task to yield.
type DispatcherConfig struct {
	HighPriorityYieldCheck time.Duration `koanf:"high_priority_yield_check"` // shouldYield poll interval
	CriticalGracePeriod    time.Duration `koanf:"critical_grace_period"`     // max time a BACKGROUND_SYNC task may run before being asked to yield
}

// KillSwitchConfig holds the catalog-mode kill-switch gate's initial
// state. ReadMode and WriteMode are independent; see internal/killswitch.
type KillSwitchConfig struct {
	ReadMode  string `koanf:"read_mode"`  // legacy, dual, new
	WriteMode string `koanf:"write_mode"` // legacy, dual, new
}

// NATSConfig holds NATS JetStream settings for the change-stream and
// outbox publishers (Watermill).
//
// Environment Variables:
//   - NATS_ENABLED: enable change-stream publishing (default: true)
//   - NATS_URL: NATS server connection URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: use an embedded NATS server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory
//   - NATS_RETENTION_DAYS: event retention period (default: 7)
//   - NATS_SUBSCRIBERS: number of concurrent message processors
type NATSConfig struct {
	Enabled             bool   `koanf:"enabled"`
	URL                 string `koanf:"url"`
	EmbeddedServer      bool   `koanf:"embedded_server"`
	StoreDir            string `koanf:"store_dir"`
	MaxMemory           int64  `koanf:"max_memory"`
	MaxStore            int64  `koanf:"max_store"`
	StreamRetentionDays int    `koanf:"stream_retention_days"`
	SubscribersCount    int    `koanf:"subscribers_count"`
	DurableName         string `koanf:"durable_name"`
	QueueGroup          string `koanf:"queue_group"`

	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterDeduplicationEnabled bool          `koanf:"router_deduplication_enabled"`
	RouterDeduplicationTTL     time.Duration `koanf:"router_deduplication_ttl"`
	RouterPoisonQueueTopic     string        `koanf:"router_poison_queue_topic"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`
}

// ServerConfig holds HTTP control facade settings (go-chi).
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// APIConfig holds API pagination and response settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// RulesConfig holds Casbin-backed profile rule enforcement settings,
// used by internal/rules to gate which accepted records are linked
// versus rejected (REJECTED_BLOCKED_BY_RULE).
//
// Environment Variables:
//   - RULES_MODEL_PATH: path to the Casbin model file (default: embedded)
//   - RULES_POLICY_PATH: path to the Casbin policy file (default: embedded)
//   - RULES_AUTO_RELOAD: enable automatic policy reload (default: true)
//   - RULES_RELOAD_INTERVAL: policy reload interval (default: 30s)
type RulesConfig struct {
	ModelPath      string        `koanf:"model_path"`
	PolicyPath     string        `koanf:"policy_path"`
	AutoReload     bool          `koanf:"auto_reload"`
	ReloadInterval time.Duration `koanf:"reload_interval"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CredentialConfig holds the master key used to encrypt/decrypt provider
// credential handles at rest (internal/credential).
//
// Environment Variables:
//   - CREDENTIAL_MASTER_KEY: HKDF input key material (required in
//     production; an empty value is rejected by internal/credential.NewEncryptor)
type CredentialConfig struct {
	MasterKey string `koanf:"master_key"`
}

// Load reads configuration from defaults, an optional config file, and
// environment variable overrides using Koanf. See LoadWithKoanf for the
// underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Validate checks required fields and cross-field constraints. Load
// calls this automatically; exported for use by config-reload paths.
func (c *Config) Validate() error {
	if c.ProviderA.Enabled && c.ProviderA.BaseURL == "" {
		return fmt.Errorf("provider_a.base_url is required when provider_a is enabled")
	}
	if c.ProviderB.Enabled && (c.ProviderB.APIID == "" || c.ProviderB.APIHash == "") {
		return fmt.Errorf("provider_b.api_id and provider_b.api_hash are required when provider_b is enabled")
	}
	if !c.ProviderA.Enabled && !c.ProviderB.Enabled {
		return fmt.Errorf("at least one of provider_a or provider_b must be enabled")
	}
	switch c.KillSwitch.ReadMode {
	case "legacy", "dual", "new":
	default:
		return fmt.Errorf("killswitch.read_mode must be one of legacy, dual, new, got %q", c.KillSwitch.ReadMode)
	}
	switch c.KillSwitch.WriteMode {
	case "legacy", "dual", "new":
	default:
		return fmt.Errorf("killswitch.write_mode must be one of legacy, dual, new, got %q", c.KillSwitch.WriteMode)
	}
	if c.Sync.ChannelBufferCapacity <= 0 {
		return fmt.Errorf("sync.channel_buffer_capacity must be positive")
	}
	if c.Server.Environment == "production" && c.Credential.MasterKey == "" {
		return fmt.Errorf("credential.master_key is required when server.environment is production")
	}
	return validateURLs(c)
}
