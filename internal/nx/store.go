package nx

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entity exists for the given key.
var ErrNotFound = errors.New("nx: not found")

// ChangeEvent is one emission on an entity's change stream: either the
// current value after an upsert, or a tombstone after a delete.
type ChangeEvent[T Entity] struct {
	Key     string
	Value   T
	Deleted bool
}

// Store is the per-entity-kind persistence contract described in §4.2:
// get/upsert/upsertBatch/delete plus two observation modes. Duplicate
// upserts by key are idempotent, not errors; uniqueness by key is enforced
// by the implementation.
//
// UpsertBatch is atomic per call: either every entity in the list is
// committed, or none are, and any resources scoped to the call (handles,
// transactions) are released on every exit path, including error returns.
type Store[T Entity] interface {
	// Get returns the current value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (T, error)

	// Upsert inserts or replaces the entity addressed by its own key.
	Upsert(ctx context.Context, entity T) error

	// UpsertBatch upserts a list of entities as a single atomic unit.
	UpsertBatch(ctx context.Context, entities []T) error

	// Delete removes the entity for key. Deleting a key that does not
	// exist is not an error.
	Delete(ctx context.Context, key string) error

	// Observe pushes a stream of ChangeEvent for one key: an immediate
	// emission of the current value (if any) followed by every
	// subsequent commit affecting that key, until ctx is cancelled.
	Observe(ctx context.Context, key string) (<-chan ChangeEvent[T], error)

	// ObserveByType pushes a stream of recent entities of this kind: an
	// immediate snapshot of up to limit entities (most-recently-committed
	// first), followed by one event per later commit of this kind. Events
	// are neither debounced nor coalesced; an event that finds the
	// subscriber's buffer full is dropped. limit <= 0 means unbounded.
	ObserveByType(ctx context.Context, limit int) (<-chan ChangeEvent[T], error)
}

// EntityStore is the facade over all 17 entity kinds. A single
// implementation owns the underlying storage engine and exposes one typed
// Store per kind, so callers never juggle untyped keys or type switches.
type EntityStore interface {
	Works() Store[Work]
	WorkSourceRefs() Store[WorkSourceRef]
	WorkVariants() Store[WorkVariant]
	WorkRelations() Store[WorkRelation]
	WorkUserStates() Store[WorkUserState]
	WorkRuntimeStates() Store[WorkRuntimeState]
	IngestLedgers() Store[IngestLedger]
	Profiles() Store[Profile]
	ProfileRules() Store[ProfileRule]
	ProfileUsages() Store[ProfileUsage]
	SourceAccounts() Store[SourceAccount]
	Categories() Store[Category]
	WorkCategoryRefs() Store[WorkCategoryRef]
	WorkEmbeddings() Store[WorkEmbedding]
	WorkRedirects() Store[WorkRedirect]
	CloudOutboxEvents() Store[CloudOutboxEvent]
	CatalogModeStates() Store[CatalogModeState]

	// WorkSourceRefsByWork returns every WorkSourceRef pointing at workKey.
	// It exists because WorkSourceRef's own key is its SourceKey, not its
	// WorkKey, so looking up "which provider items back this Work" needs a
	// secondary lookup rather than a Get.
	WorkSourceRefsByWork(ctx context.Context, workKey string) ([]WorkSourceRef, error)

	// Close releases any resources held by the store (connections,
	// background goroutines for change-stream fan-out).
	Close() error
}
