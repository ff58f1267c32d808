// Package outbox forwards CloudOutboxEvent rows (queued by the sync
// pipeline for delivery to an external change-stream transport) to a
// Publisher, retrying failures with exponential backoff rather than
// dropping them. It is the retry half of the outbox pattern; entity writes
// that enqueue a CloudOutboxEvent happen wherever the caller upserts one
// directly against nx.EntityStore.CloudOutboxEvents().
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/metrics"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// pendingBufferSize bounds the CloudOutboxEvents() observe snapshot
// RetryLoop subscribes to, for the same reason catalogsync's account
// watcher bounds its own subscription: the entity store's observe buffer
// is fixed-size, so an unbounded snapshot risks stalling on its own
// initial send.
const pendingBufferSize = 32

// Publisher hands a CloudOutboxEvent off to the change-stream transport.
// Implemented by internal/changestream's bus wrapper.
type Publisher interface {
	Publish(ctx context.Context, event nx.CloudOutboxEvent) error
}

// RetryLoop periodically retries every CloudOutboxEvent it has seen that
// has not yet been successfully published, backing off exponentially per
// event so a persistently failing publisher does not busy-loop. The zero
// value is not usable; construct with NewRetryLoop.
type RetryLoop struct {
	store       nx.EntityStore
	publisher   Publisher
	interval    time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxAttempts int

	mu      sync.Mutex
	pending map[string]nx.CloudOutboxEvent

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a RetryLoop.
type Option func(*RetryLoop)

// WithInterval overrides the default tick interval between retry sweeps.
func WithInterval(d time.Duration) Option {
	return func(rl *RetryLoop) { rl.interval = d }
}

// WithBackoff overrides the default base/max exponential backoff bounds.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(rl *RetryLoop) { rl.baseBackoff = base; rl.maxBackoff = maxDelay }
}

// WithMaxAttempts overrides how many attempts an event gets before
// RetryLoop stops retrying it (it remains queued for operator inspection,
// never silently dropped). 0 means unlimited.
func WithMaxAttempts(n int) Option {
	return func(rl *RetryLoop) { rl.maxAttempts = n }
}

// NewRetryLoop builds a RetryLoop over store's CloudOutboxEvents,
// forwarding to publisher.
func NewRetryLoop(store nx.EntityStore, publisher Publisher, opts ...Option) *RetryLoop {
	rl := &RetryLoop{
		store:       store,
		publisher:   publisher,
		interval:    5 * time.Second,
		baseBackoff: time.Second,
		maxBackoff:  5 * time.Minute,
		pending:     make(map[string]nx.CloudOutboxEvent),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Start subscribes to CloudOutboxEvents and begins the periodic retry
// sweep. Start is idempotent; calling it again before Stop is a no-op,
// satisfying the supervisor's WALStartStopper contract.
func (rl *RetryLoop) Start(ctx context.Context) error {
	rl.mu.Lock()
	if rl.cancel != nil {
		rl.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	rl.cancel = cancel
	rl.mu.Unlock()

	ch, err := rl.store.CloudOutboxEvents().ObserveByType(runCtx, pendingBufferSize)
	if err != nil {
		cancel()
		rl.mu.Lock()
		rl.cancel = nil
		rl.mu.Unlock()
		return err
	}

	rl.wg.Add(2)
	go rl.watch(runCtx, ch)
	go rl.sweep(runCtx)
	return nil
}

// Stop cancels the watcher and sweep loops and waits for both to exit.
func (rl *RetryLoop) Stop() {
	rl.mu.Lock()
	cancel := rl.cancel
	rl.cancel = nil
	rl.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	rl.wg.Wait()
}

// IsRunning reports whether the loop is currently active.
func (rl *RetryLoop) IsRunning() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.cancel != nil
}

func (rl *RetryLoop) watch(ctx context.Context, ch <-chan nx.ChangeEvent[nx.CloudOutboxEvent]) {
	defer rl.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			rl.mu.Lock()
			if ev.Deleted {
				delete(rl.pending, ev.Key)
			} else {
				rl.pending[ev.Key] = ev.Value
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RetryLoop) sweep(ctx context.Context) {
	defer rl.wg.Done()
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.attemptDue(ctx)
		}
	}
}

func (rl *RetryLoop) attemptDue(ctx context.Context) {
	rl.mu.Lock()
	due := make([]nx.CloudOutboxEvent, 0, len(rl.pending))
	for _, ev := range rl.pending {
		if rl.maxAttempts > 0 && ev.Attempts >= rl.maxAttempts {
			continue
		}
		if rl.backoffElapsed(ev) {
			due = append(due, ev)
		}
	}
	rl.mu.Unlock()

	for _, ev := range due {
		rl.attempt(ctx, ev)
	}
}

// backoffElapsed reports whether ev's next-attempt window, computed as
// CreatedAtMs plus an exponential delay seeded by Attempts, has passed.
func (rl *RetryLoop) backoffElapsed(ev nx.CloudOutboxEvent) bool {
	delay := rl.baseBackoff << ev.Attempts
	if delay <= 0 || delay > rl.maxBackoff {
		delay = rl.maxBackoff
	}
	nextAttemptMs := ev.CreatedAtMs + delay.Milliseconds()
	return time.Now().UnixMilli() >= nextAttemptMs
}

func (rl *RetryLoop) attempt(ctx context.Context, ev nx.CloudOutboxEvent) {
	err := rl.publisher.Publish(ctx, ev)
	metrics.RecordDLQRetry(err == nil)

	if err == nil {
		metrics.RecordDLQRemoval(ev.Kind)
		if delErr := rl.store.CloudOutboxEvents().Delete(ctx, ev.ID); delErr != nil {
			logging.Warn().Str("event_id", ev.ID).Err(delErr).Msg("outbox: delete delivered event failed")
		}
		rl.mu.Lock()
		delete(rl.pending, ev.ID)
		rl.mu.Unlock()
		return
	}

	logging.Warn().Str("event_id", ev.ID).Int("attempts", ev.Attempts+1).Err(err).Msg("outbox: publish attempt failed")
	ev.Attempts++
	if upsertErr := rl.store.CloudOutboxEvents().Upsert(ctx, ev); upsertErr != nil {
		logging.Error().Str("event_id", ev.ID).Err(upsertErr).Msg("outbox: persist retry attempt count failed")
	}
	rl.mu.Lock()
	rl.pending[ev.ID] = ev
	rl.mu.Unlock()
}
