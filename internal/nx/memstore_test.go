package nx

import (
	"context"
	"testing"
	"time"
)

func TestMemStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemEntityStore()

	w := Work{WorkKey: "movie:the-matrix:1999", CanonicalTitle: "The Matrix", Year: 1999}
	if err := store.Works().Upsert(ctx, w); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.Works().Upsert(ctx, w); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.Works().Get(ctx, w.WorkKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CanonicalTitle != "The Matrix" {
		t.Fatalf("unexpected value: %+v", got)
	}

	all, err := store.Works().ObserveByType(ctx, 0)
	if err != nil {
		t.Fatalf("observeByType: %v", err)
	}
	// Drain the immediate snapshot; there must be exactly one entry, not
	// two, despite the duplicate upsert.
	count := 0
	timeout := time.After(50 * time.Millisecond)
drain:
	for {
		select {
		case _, ok := <-all:
			if !ok {
				break drain
			}
			count++
		case <-timeout:
			break drain
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 snapshot entry, got %d", count)
	}
}

func TestMemStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewMemEntityStore()
	_, err := store.Works().Get(context.Background(), "movie:nope:2000")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_DeleteRemovesEntity(t *testing.T) {
	ctx := context.Background()
	store := NewMemEntityStore()
	w := Work{WorkKey: "movie:the-matrix:1999", CanonicalTitle: "The Matrix"}
	_ = store.Works().Upsert(ctx, w)

	if err := store.Works().Delete(ctx, w.WorkKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Works().Get(ctx, w.WorkKey); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemStore_ObserveKeyReceivesUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewMemEntityStore()

	key := "movie:the-matrix:1999"
	ch, err := store.Works().Observe(ctx, key)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}

	go func() {
		_ = store.Works().Upsert(ctx, Work{WorkKey: key, CanonicalTitle: "The Matrix"})
	}()

	select {
	case ev := <-ch:
		if ev.Key != key || ev.Value.CanonicalTitle != "The Matrix" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestMemStore_UpsertBatchIsAtomicAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemEntityStore()
	batch := []Work{
		{WorkKey: "movie:a:2000", CanonicalTitle: "A"},
		{WorkKey: "movie:b:2001", CanonicalTitle: "B"},
	}
	if err := store.Works().UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("upsertBatch: %v", err)
	}
	for _, w := range batch {
		if _, err := store.Works().Get(ctx, w.WorkKey); err != nil {
			t.Fatalf("expected %s to exist: %v", w.WorkKey, err)
		}
	}
}
