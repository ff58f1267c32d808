
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Entity store query performance (DuckDB)
// - API endpoint latency and throughput
// - Catalog sync operation metrics
// - Ingest pipeline and dedup cache efficiency
// - Provider circuit breakers and rate limiting
// - Change-stream and outbox delivery

var (
	// Entity Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of entity store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "entity_kind"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of entity store query errors",
		},
		[]string{"operation", "entity_kind", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of entity store connections in use",
		},
	)

	DBUpsertBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckdb_upsert_batch_size",
			Help:    "Number of entity rows in each upsert batch",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	APIDispatchSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_dispatch_source_total",
			Help: "Total number of API requests served per dispatcher source decision",
		},
		[]string{"source"}, // "cache", "provider_a", "provider_b", "rejected"
	)

	// Catalog Sync Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of catalog sync operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncRecordsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of catalog entries processed during sync",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors",
		},
		[]string{"error_type"}, // "provider_a_api", "provider_b_api", "database", "validation"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync",
		},
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_size",
			Help:    "Number of records in sync batches",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 10000},
		},
	)

	SyncDecisionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_decision_total",
			Help: "Total number of incremental-vs-full sync decisions made",
		},
		[]string{"decision"}, // "incremental", "full", "forced_full"
	)

	// Ingest Ledger Metrics
	IngestReasonTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_reason_total",
			Help: "Total number of ingest outcomes by ledger reason code",
		},
		[]string{"reason"},
	)

	ChannelBufferDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_sync_buffer_depth",
			Help: "Current number of buffered messages per channel awaiting flush",
		},
		[]string{"channel_id"},
	)

	ChannelBufferFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_sync_buffer_flushes_total",
			Help: "Total number of channel sync buffer flushes",
		},
		[]string{"trigger"}, // "capacity", "timer", "shutdown"
	)

	ChannelBufferItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_sync_buffer_items_total",
			Help: "Total number of items moved through a channel sync buffer",
		},
		[]string{"channel_id", "direction"}, // direction: "sent", "received"
	)

	ChannelBufferBackpressureEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_sync_buffer_backpressure_events_total",
			Help: "Total number of times a channel sync buffer send blocked on a full buffer",
		},
		[]string{"channel_id"},
	)

	// Fingerprint Dedup Metrics
	FingerprintChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingerprint_checks_total",
			Help: "Total number of fingerprint dedup checks",
		},
		[]string{"result"}, // "duplicate", "changed", "new"
	)

	// Detail Enrichment Metrics
	EnrichmentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_requests_total",
			Help: "Total number of detail enrichment lookups",
		},
		[]string{"authority", "result"}, // authority: "tmdb"; result: "hit", "miss", "error"
	)

	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrichment_duration_seconds",
			Help:    "Duration of detail enrichment authority lookups in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Kill Switch Metrics
	KillSwitchMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "killswitch_mode",
			Help: "Active catalog-mode kill switch setting (0=legacy, 1=dual, 2=new)",
		},
		[]string{"path"}, // "read", "write"
	)

	KillSwitchTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killswitch_transitions_total",
			Help: "Total number of kill-switch mode transitions",
		},
		[]string{"path", "from_mode", "to_mode"},
	)

	// Cache Metrics (General)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "authority", "fingerprint", "category"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics (provider HTTP clients)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	RateLimiterWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_waits_total",
			Help: "Total number of requests that had to wait for a rate limiter token",
		},
		[]string{"provider"},
	)

	// Dead Letter Queue Metrics
	DLQEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_entries_total",
			Help: "Current number of entries in the Dead Letter Queue",
		},
	)

	DLQEntriesByCategory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dlq_entries_by_category",
			Help: "Current number of DLQ entries by error category",
		},
		[]string{"category"}, // connection, timeout, validation, database, capacity, unknown
	)

	DLQMessagesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_added_total",
			Help: "Total number of messages added to the DLQ",
		},
	)

	DLQMessagesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_removed_total",
			Help: "Total number of messages removed from the DLQ (successfully reprocessed)",
		},
	)

	DLQMessagesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_expired_total",
			Help: "Total number of messages expired from the DLQ",
		},
	)

	DLQRetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_attempts_total",
			Help: "Total number of retry attempts for DLQ messages",
		},
	)

	DLQRetrySuccesses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_successes_total",
			Help: "Total number of successful DLQ message retries",
		},
	)

	DLQRetryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_failures_total",
			Help: "Total number of failed DLQ message retries",
		},
	)

	DLQOldestEntryAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_oldest_entry_age_seconds",
			Help: "Age of the oldest entry in the DLQ in seconds",
		},
	)

	// NATS Change-Stream / Outbox Metrics
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_processed_total",
			Help: "Total number of messages successfully processed",
		},
	)

	NATSMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_deduplicated_total",
			Help: "Total number of messages skipped due to deduplication",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Duration of NATS message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NATSBatchFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_batch_flush_duration_seconds",
			Help:    "Duration of batch flush operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NATSBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_batch_size",
			Help:    "Number of events in each batch flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	NATSQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nats_queue_depth",
			Help: "Current depth of the NATS message queue",
		},
	)

	NATSConsumerLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nats_consumer_lag",
			Help: "Number of pending messages in NATS consumer",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records an entity store query metric.
func RecordDBQuery(operation, entityKind string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, entityKind).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, entityKind, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDispatchSource records which source satisfied an API dispatch decision.
func RecordDispatchSource(source string) {
	APIDispatchSource.WithLabelValues(source).Inc()
}

// RecordSyncOperation records a catalog sync operation metric.
func RecordSyncOperation(duration time.Duration, recordsProcessed int, err error) {
	SyncDuration.Observe(duration.Seconds())
	SyncRecordsProcessed.Add(float64(recordsProcessed))
	if err != nil {
		errorType := "unknown"
		errorMsg := err.Error()
		if len(errorMsg) > 0 {
			switch {
			case contains(errorMsg, "provider_a"):
				errorType = "provider_a_api"
			case contains(errorMsg, "provider_b"):
				errorType = "provider_b_api"
			case contains(errorMsg, "database"):
				errorType = "database"
			default:
				errorType = "other"
			}
		}
		SyncErrors.WithLabelValues(errorType).Inc()
	} else {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordSyncDecision records which sync strategy the decider chose.
func RecordSyncDecision(decision string) {
	SyncDecisionTotal.WithLabelValues(decision).Inc()
}

// RecordIngestReason records an ingest outcome by ledger reason code.
func RecordIngestReason(reason string) {
	IngestReasonTotal.WithLabelValues(reason).Inc()
}

// RecordFingerprintCheck records a fingerprint dedup check outcome.
func RecordFingerprintCheck(result string) {
	FingerprintChecks.WithLabelValues(result).Inc()
}

// RecordEnrichment records a detail enrichment authority lookup.
func RecordEnrichment(authority, result string, duration time.Duration) {
	EnrichmentRequests.WithLabelValues(authority, result).Inc()
	EnrichmentDuration.Observe(duration.Seconds())
}

// SetKillSwitchMode sets the gauge reflecting the active kill-switch mode for a path.
// mode must be one of "legacy" (0), "dual" (1), "new" (2).
func SetKillSwitchMode(path, mode string) {
	value := 0.0
	switch mode {
	case "dual":
		value = 1
	case "new":
		value = 2
	}
	KillSwitchMode.WithLabelValues(path).Set(value)
}

// RecordKillSwitchTransition records a kill-switch mode change.
func RecordKillSwitchTransition(path, fromMode, toMode string) {
	KillSwitchTransitions.WithLabelValues(path, fromMode, toMode).Inc()
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// contains reports whether s begins with substr.
func contains(s, substr string) bool {
	return len(s) >= len(substr) && s[:len(substr)] == substr
}

// RecordDLQEntry records a message being added to the DLQ.
func RecordDLQEntry(category string) {
	DLQMessagesAdded.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Inc()
}

// RecordDLQRemoval records a message being successfully removed from the DLQ.
func RecordDLQRemoval(category string) {
	DLQMessagesRemoved.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQExpiry records a message expiring from the DLQ.
func RecordDLQExpiry(category string) {
	DLQMessagesExpired.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQRetry records a retry attempt and its outcome.
func RecordDLQRetry(success bool) {
	DLQRetryAttempts.Inc()
	if success {
		DLQRetrySuccesses.Inc()
	} else {
		DLQRetryFailures.Inc()
	}
}

// UpdateDLQGauges updates DLQ gauge metrics with current stats.
func UpdateDLQGauges(totalEntries int64, oldestEntryAge float64, entriesByCategory map[string]int64) {
	DLQEntriesTotal.Set(float64(totalEntries))
	DLQOldestEntryAge.Set(oldestEntryAge)
	for category, count := range entriesByCategory {
		DLQEntriesByCategory.WithLabelValues(category).Set(float64(count))
	}
}

// RecordNATSPublish records a message being published to NATS.
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a message being consumed from NATS.
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSProcessed records a message being successfully processed.
func RecordNATSProcessed() {
	NATSMessagesProcessed.Inc()
}

// RecordNATSDeduplicated records a message being skipped due to deduplication.
func RecordNATSDeduplicated() {
	NATSMessagesDeduplicated.Inc()
}

// RecordNATSParseFailed records a message that failed to parse.
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordNATSProcessingDuration records the duration of message processing.
func RecordNATSProcessingDuration(duration time.Duration) {
	NATSProcessingDuration.Observe(duration.Seconds())
}

// RecordNATSBatchFlush records a batch flush operation.
func RecordNATSBatchFlush(duration time.Duration, batchSize int) {
	NATSBatchFlushDuration.Observe(duration.Seconds())
	NATSBatchSize.Observe(float64(batchSize))
}

// UpdateNATSQueueDepth updates the NATS queue depth gauge.
func UpdateNATSQueueDepth(depth int64) {
	NATSQueueDepth.Set(float64(depth))
}

// UpdateNATSConsumerLag updates the NATS consumer lag gauge.
func UpdateNATSConsumerLag(lag int64) {
	NATSConsumerLag.Set(float64(lag))
}

// RecordRateLimiterWait records that a provider request waited on its rate limiter.
func RecordRateLimiterWait(provider string) {
	RateLimiterWaits.WithLabelValues(provider).Inc()
}

// UpdateChannelBufferDepth updates the gauge tracking a channel's buffered message count.
func UpdateChannelBufferDepth(channelID string, depth int) {
	ChannelBufferDepth.WithLabelValues(channelID).Set(float64(depth))
}

// RecordChannelBufferFlush records a channel sync buffer flush and its trigger.
func RecordChannelBufferFlush(trigger string) {
	ChannelBufferFlushes.WithLabelValues(trigger).Inc()
}

// RecordChannelBufferItem records one item sent or received on a channel
// sync buffer.
func RecordChannelBufferItem(channelID, direction string) {
	ChannelBufferItemsTotal.WithLabelValues(channelID, direction).Inc()
}

// RecordChannelBufferBackpressure records that a channel sync buffer send
// blocked because the buffer was full.
func RecordChannelBufferBackpressure(channelID string) {
	ChannelBufferBackpressureEvents.WithLabelValues(channelID).Inc()
}
