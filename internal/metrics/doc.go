
/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus
client library, exposing metrics for the entity store, catalog sync service,
ingest pipeline, detail enrichment, kill-switch gate, provider circuit
breakers and rate limiters, and the NATS change-stream/outbox.

# Metrics Endpoint

Metrics are registered with the default Prometheus registry. No package in
this module serves them over HTTP; there is no /metrics route.

# Available Metrics

Entity Store:
  - duckdb_query_duration_seconds, duckdb_query_errors_total: labeled by operation and entity_kind
  - duckdb_connection_pool_size, duckdb_upsert_batch_size

API Dispatcher:
  - api_requests_total, api_request_duration_seconds, api_active_requests, api_rate_limit_hits_total
  - api_dispatch_source_total: which source (cache, provider_a, provider_b, rejected) served a request

Catalog Sync:
  - sync_duration_seconds, sync_records_processed_total, sync_errors_total, sync_last_success_timestamp
  - sync_decision_total: incremental vs full vs forced_full decisions from the sync decider

Ingest Pipeline:
  - ingest_reason_total: ledger reason codes per processed record
  - channel_sync_buffer_depth, channel_sync_buffer_flushes_total
  - fingerprint_checks_total: duplicate/changed/new outcomes from the dedup cache

Detail Enrichment:
  - enrichment_requests_total, enrichment_duration_seconds

Kill Switch:
  - killswitch_mode, killswitch_transitions_total

Provider Resilience:
  - circuit_breaker_state, circuit_breaker_requests_total, circuit_breaker_consecutive_failures,
    circuit_breaker_state_transitions_total
  - rate_limiter_waits_total

Change-Stream / Outbox (NATS):
  - nats_messages_published_total, nats_messages_consumed_total, nats_messages_processed_total,
    nats_messages_deduplicated_total, nats_messages_parse_failed_total
  - nats_processing_duration_seconds, nats_batch_flush_duration_seconds, nats_batch_size
  - nats_queue_depth, nats_consumer_lag
  - dlq_entries_total, dlq_entries_by_category, dlq_messages_added_total, dlq_messages_removed_total,
    dlq_messages_expired_total, dlq_retry_attempts_total, dlq_retry_successes_total,
    dlq_retry_failures_total, dlq_oldest_entry_age_seconds

Cache:
  - cache_hits_total, cache_misses_total, cache_entries, cache_evictions_total

# Usage Example

	metrics.RecordSyncOperation(duration, recordsProcessed, err)
	metrics.RecordIngestReason(nx.ReasonSkippedUnchangedFingerprint)
	metrics.SetKillSwitchMode("read", cfg.KillSwitch.ReadMode)

# Cardinality Management

Label values are drawn from small fixed sets (entity kinds, provider names,
reason codes, cache types) to keep time series counts bounded.

# Thread Safety

All metric recording functions are thread-safe; the Prometheus client
library handles synchronization internally.

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/catalogsync: catalog sync service emitting sync_* metrics
  - internal/ingest: ingest pipeline emitting ingest_reason_total
*/
package metrics
