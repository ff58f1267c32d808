package nx

import (
	"context"
	"sync"
)

// subBufferSize bounds each change-stream subscriber channel. Emissions are
// sent non-blocking; a full buffer drops the event rather than stalling the
// writer, which is consistent with the coalesced-emission contract consumers
// of observe/observeByType must already tolerate.
const subBufferSize = 32

// memStore is a generic in-memory Store[T] backed by a map plus an
// insertion-order slice, with channel-based fan-out for change streams. It
// is the default EntityStore backend for tests and for any deployment that
// has not wired a durable engine (see internal/nx/duckdb for that).
type memStore[T Entity] struct {
	mu       sync.RWMutex
	data     map[string]T
	order    []string // most-recently-touched key last
	keySubs  map[string][]chan ChangeEvent[T]
	typeSubs []chan ChangeEvent[T]
}

func newMemStore[T Entity]() *memStore[T] {
	return &memStore[T]{
		data:    make(map[string]T),
		keySubs: make(map[string][]chan ChangeEvent[T]),
	}
}

func (s *memStore[T]) Get(_ context.Context, key string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func (s *memStore[T]) Upsert(ctx context.Context, entity T) error {
	return s.UpsertBatch(ctx, []T{entity})
}

func (s *memStore[T]) UpsertBatch(_ context.Context, entities []T) error {
	s.mu.Lock()
	var events []ChangeEvent[T]
	for _, e := range entities {
		key := e.EntityKey()
		if _, exists := s.data[key]; !exists {
			s.order = append(s.order, key)
		} else {
			s.touch(key)
		}
		s.data[key] = e
		events = append(events, ChangeEvent[T]{Key: key, Value: e})
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.publish(ev)
	}
	return nil
}

func (s *memStore[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.data[key]
	delete(s.data, key)
	if existed {
		s.removeFromOrder(key)
	}
	s.mu.Unlock()

	if existed {
		var zero T
		s.publish(ChangeEvent[T]{Key: key, Value: zero, Deleted: true})
	}
	return nil
}

func (s *memStore[T]) Observe(ctx context.Context, key string) (<-chan ChangeEvent[T], error) {
	ch := make(chan ChangeEvent[T], subBufferSize)

	s.mu.Lock()
	if v, ok := s.data[key]; ok {
		ch <- ChangeEvent[T]{Key: key, Value: v}
	}
	s.keySubs[key] = append(s.keySubs[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.keySubs[key]
		for i, c := range subs {
			if c == ch {
				s.keySubs[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (s *memStore[T]) ObserveByType(ctx context.Context, limit int) (<-chan ChangeEvent[T], error) {
	ch := make(chan ChangeEvent[T], subBufferSize)

	s.mu.Lock()
	snapshot := s.recentLocked(limit)
	s.typeSubs = append(s.typeSubs, ch)
	s.mu.Unlock()

	for _, v := range snapshot {
		ch <- ChangeEvent[T]{Key: v.EntityKey(), Value: v}
	}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.typeSubs {
			if c == ch {
				s.typeSubs = append(s.typeSubs[:i], s.typeSubs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// recentLocked returns up to limit entities, most-recently-touched first.
// Caller must hold s.mu.
func (s *memStore[T]) recentLocked(limit int) []T {
	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		if v, ok := s.data[s.order[i]]; ok {
			out = append(out, v)
		}
	}
	return out
}

// touch moves key to the end of the order slice (most recent).
// Caller must hold s.mu.
func (s *memStore[T]) touch(key string) {
	s.removeFromOrderLocked(key)
	s.order = append(s.order, key)
}

func (s *memStore[T]) removeFromOrder(key string) {
	s.removeFromOrderLocked(key)
}

func (s *memStore[T]) removeFromOrderLocked(key string) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *memStore[T]) publish(ev ChangeEvent[T]) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.keySubs[ev.Key] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range s.typeSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// memEntityStore is the in-memory EntityStore implementation: one
// memStore[T] per entity kind, nothing shared between them.
type memEntityStore struct {
	works             *memStore[Work]
	workSourceRefs    *memStore[WorkSourceRef]
	workVariants      *memStore[WorkVariant]
	workRelations     *memStore[WorkRelation]
	workUserStates    *memStore[WorkUserState]
	workRuntimeStates *memStore[WorkRuntimeState]
	ingestLedgers     *memStore[IngestLedger]
	profiles          *memStore[Profile]
	profileRules      *memStore[ProfileRule]
	profileUsages     *memStore[ProfileUsage]
	sourceAccounts    *memStore[SourceAccount]
	categories        *memStore[Category]
	workCategoryRefs  *memStore[WorkCategoryRef]
	workEmbeddings    *memStore[WorkEmbedding]
	workRedirects     *memStore[WorkRedirect]
	cloudOutboxEvents *memStore[CloudOutboxEvent]
	catalogModeStates *memStore[CatalogModeState]
}

// NewMemEntityStore builds an in-memory EntityStore. It is the default
// backend in tests and for any component exercised without a durable
// engine wired in.
func NewMemEntityStore() EntityStore {
	return &memEntityStore{
		works:             newMemStore[Work](),
		workSourceRefs:    newMemStore[WorkSourceRef](),
		workVariants:      newMemStore[WorkVariant](),
		workRelations:     newMemStore[WorkRelation](),
		workUserStates:    newMemStore[WorkUserState](),
		workRuntimeStates: newMemStore[WorkRuntimeState](),
		ingestLedgers:     newMemStore[IngestLedger](),
		profiles:          newMemStore[Profile](),
		profileRules:      newMemStore[ProfileRule](),
		profileUsages:     newMemStore[ProfileUsage](),
		sourceAccounts:    newMemStore[SourceAccount](),
		categories:        newMemStore[Category](),
		workCategoryRefs:  newMemStore[WorkCategoryRef](),
		workEmbeddings:    newMemStore[WorkEmbedding](),
		workRedirects:     newMemStore[WorkRedirect](),
		cloudOutboxEvents: newMemStore[CloudOutboxEvent](),
		catalogModeStates: newMemStore[CatalogModeState](),
	}
}

func (s *memEntityStore) Works() Store[Work]                         { return s.works }
func (s *memEntityStore) WorkSourceRefs() Store[WorkSourceRef]       { return s.workSourceRefs }
func (s *memEntityStore) WorkVariants() Store[WorkVariant]           { return s.workVariants }
func (s *memEntityStore) WorkRelations() Store[WorkRelation]         { return s.workRelations }
func (s *memEntityStore) WorkUserStates() Store[WorkUserState]       { return s.workUserStates }
func (s *memEntityStore) WorkRuntimeStates() Store[WorkRuntimeState] { return s.workRuntimeStates }
func (s *memEntityStore) IngestLedgers() Store[IngestLedger]         { return s.ingestLedgers }
func (s *memEntityStore) Profiles() Store[Profile]                   { return s.profiles }
func (s *memEntityStore) ProfileRules() Store[ProfileRule]           { return s.profileRules }
func (s *memEntityStore) ProfileUsages() Store[ProfileUsage]         { return s.profileUsages }
func (s *memEntityStore) SourceAccounts() Store[SourceAccount]       { return s.sourceAccounts }
func (s *memEntityStore) Categories() Store[Category]                 { return s.categories }
func (s *memEntityStore) WorkCategoryRefs() Store[WorkCategoryRef]   { return s.workCategoryRefs }
func (s *memEntityStore) WorkEmbeddings() Store[WorkEmbedding]       { return s.workEmbeddings }
func (s *memEntityStore) WorkRedirects() Store[WorkRedirect]         { return s.workRedirects }
func (s *memEntityStore) CloudOutboxEvents() Store[CloudOutboxEvent] { return s.cloudOutboxEvents }
func (s *memEntityStore) CatalogModeStates() Store[CatalogModeState] { return s.catalogModeStates }

// WorkSourceRefsByWork scans the WorkSourceRef table under its read lock.
// This is a full-table predicate scan, not a channel fan-out, so it cannot
// hit the bounded-buffer stall ObserveByType's snapshot path is prone to
// for large tables; acceptable here since it is called once per
// user-triggered enrichment request, not on any hot ingest path.
func (s *memEntityStore) WorkSourceRefsByWork(_ context.Context, workKey string) ([]WorkSourceRef, error) {
	s.workSourceRefs.mu.RLock()
	defer s.workSourceRefs.mu.RUnlock()

	var out []WorkSourceRef
	for _, ref := range s.workSourceRefs.data {
		if ref.WorkKey == workKey {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (s *memEntityStore) Close() error { return nil }
