/*
Package nx defines the unified entity model shared by both upstream
providers: the 17 entity kinds, their deterministic keys, and the Store
contract every storage engine must satisfy.

# Overview

nx owns the data, not the storage engine. A Store[T] is a generic
get/upsert/upsertBatch/delete/observe/observeByType contract; EntityStore
bundles one Store per entity kind. Two implementations exist in this
module:

  - memEntityStore (this package): an in-memory backend for tests and for
    components exercised without a durable engine.
  - internal/nx/duckdb: a DuckDB-backed durable implementation.

Callers depend on EntityStore, never on a concrete backend, so the ingest
pipeline, catalog sync service, and HTTP control facade are backend-agnostic.

# Entity Kinds

Work, WorkSourceRef, WorkVariant, WorkRelation, WorkUserState,
WorkRuntimeState, IngestLedger, Profile, ProfileRule, ProfileUsage,
SourceAccount, Category, WorkCategoryRef, WorkEmbedding, WorkRedirect,
CloudOutboxEvent, CatalogModeState. See entities.go for field-level documentation; keys are
produced and validated exclusively by internal/keycodec.

# Change Streams

Observe(key) and ObserveByType(limit) both push ChangeEvent values. The
Store implementations in this package emit every commit unthrottled, with
no debouncing or coalescing, and no other code in this module debounces
them either; an event that finds a subscriber's buffer full is dropped.

# Uniqueness

workKey, sourceKey, and variantKey are globally unique by construction:
each is the entity's own EntityKey(), and Upsert/UpsertBatch replace
rather than duplicate on a repeat key. The store does not itself enforce
cross-entity invariants (e.g., "a Work is UI-visible only with ≥1
SourceRef and ≥1 Variant") — those are enforced by the ingest writer that
sits above EntityStore.

See Also

  - internal/keycodec: key parsing and formatting
  - internal/ingest: the writer that maintains Work/SourceRef/Variant
    consistency on top of EntityStore
  - internal/nx/duckdb: durable backend
*/
package nx
