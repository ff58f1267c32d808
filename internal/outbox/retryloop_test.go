package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/karlokarate/nxcatalog/internal/nx"
)

type fakePublisher struct {
	mu      sync.Mutex
	fail    bool
	calls   int
	lastIDs []string
}

func (f *fakePublisher) Publish(ctx context.Context, event nx.CloudOutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastIDs = append(f.lastIDs, event.ID)
	if f.fail {
		return errors.New("publish failed")
	}
	return nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRetryLoop_PublishesEnqueuedEventAndDeletesOnSuccess(t *testing.T) {
	store := nx.NewMemEntityStore()
	pub := &fakePublisher{}
	rl := NewRetryLoop(store, pub, WithInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rl.Stop()

	if err := store.CloudOutboxEvents().Upsert(ctx, nx.CloudOutboxEvent{ID: "evt1", Kind: "work_upserted", CreatedAtMs: time.Now().UnixMilli()}); err != nil {
		t.Fatalf("upsert event: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := store.CloudOutboxEvents().Get(ctx, "evt1"); err == nx.ErrNotFound {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the event to be deleted once published successfully")
}

func TestRetryLoop_RetriesOnPublishFailureWithIncrementingAttempts(t *testing.T) {
	store := nx.NewMemEntityStore()
	pub := &fakePublisher{fail: true}
	rl := NewRetryLoop(store, pub, WithInterval(10*time.Millisecond), WithBackoff(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rl.Stop()

	if err := store.CloudOutboxEvents().Upsert(ctx, nx.CloudOutboxEvent{ID: "evt2", Kind: "work_upserted", CreatedAtMs: time.Now().UnixMilli()}); err != nil {
		t.Fatalf("upsert event: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pub.callCount() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least 2 retry attempts, got %d", pub.callCount())
}

func TestRetryLoop_StopIsIdempotentAfterNeverStarting(t *testing.T) {
	store := nx.NewMemEntityStore()
	rl := NewRetryLoop(store, &fakePublisher{})
	rl.Stop() // must not panic or block
	if rl.IsRunning() {
		t.Fatal("expected a never-started loop to report not running")
	}
}
