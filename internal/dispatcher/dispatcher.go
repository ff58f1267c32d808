// Package dispatcher implements the API priority dispatcher: cooperative
// pre-emption letting foreground (HIGH/CRITICAL) requests make a
// background catalog scan yield, per spec.md §4.11.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
)

// Priority identifies the three classes §4.11 coordinates. It exists for
// logging/metrics labeling; the dispatcher's behavior is driven entirely
// by which With* method the caller invokes.
type Priority string

const (
	CriticalPlayback Priority = "CRITICAL_PLAYBACK"
	HighUserAction   Priority = "HIGH_USER_ACTION"
	BackgroundSync   Priority = "BACKGROUND_SYNC"
)

// Dispatcher coordinates CRITICAL/HIGH foreground acquisitions against a
// BACKGROUND_SYNC scanner's cooperative yield points. The zero value is
// not usable; construct with New.
//
// CRITICAL acquisitions are single-writer: a held criticalMu serializes
// them, so a second concurrent WithCritical call blocks until the first
// exits. HIGH acquisitions never block each other; any number may be
// active concurrently. shouldYield is true whenever either count is
// non-zero; awaitLowPriorityClear blocks until it next reads false.
//
// Fairness note: CRITICAL contention against queued HIGH acquisitions is
// only as fair as Go's sync.Mutex starvation-avoidance mode provides; no
// separate priority queue is implemented. Forward progress for a waiting
// background scanner is still guaranteed because every foreground holder
// is bounded by its own caller-owned timeout (spec.md §5) — the
// dispatcher itself never times out a yield.
type Dispatcher struct {
	criticalMu    sync.Mutex
	criticalCount atomic.Int32
	highCount     atomic.Int32

	signalMu sync.Mutex
	signalCh chan struct{}
}

// New builds a ready-to-use Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{signalCh: make(chan struct{})}
}

// WithCritical runs fn holding the CRITICAL slot. Only one CRITICAL block
// runs at a time across the whole Dispatcher; concurrent callers block on
// the internal mutex until the slot is free. The counter is decremented on
// every exit path, including a panic unwind or a cancelled fn.
func (d *Dispatcher) WithCritical(ctx context.Context, fn func(ctx context.Context) error) error {
	d.criticalMu.Lock()
	defer d.criticalMu.Unlock()

	d.criticalCount.Add(1)
	d.broadcast()
	defer func() {
		d.criticalCount.Add(-1)
		d.broadcast()
	}()

	return fn(ctx)
}

// WithHigh runs fn holding a HIGH slot. Any number of HIGH blocks may run
// concurrently; HIGH never blocks HIGH. The counter is decremented on
// every exit path.
func (d *Dispatcher) WithHigh(ctx context.Context, fn func(ctx context.Context) error) error {
	d.highCount.Add(1)
	d.broadcast()
	defer func() {
		d.highCount.Add(-1)
		d.broadcast()
	}()

	return fn(ctx)
}

// ShouldYield reports whether any HIGH or CRITICAL acquisition is
// currently active.
func (d *Dispatcher) ShouldYield() bool {
	return d.highCount.Load() > 0 || d.criticalCount.Load() > 0
}

// AwaitLowPriorityClear suspends the caller until ShouldYield next
// reports false, or until ctx is cancelled. Cancellation propagates: the
// caller must treat a non-nil return as a cancellation to re-raise, never
// swallow.
func (d *Dispatcher) AwaitLowPriorityClear(ctx context.Context) error {
	for d.ShouldYield() {
		ch := d.currentSignal()
		select {
		case <-ch:
			// A transition occurred; loop to re-check ShouldYield, since
			// the transition that woke us may itself have been another
			// foreground acquisition starting, not the one clearing.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// broadcast closes the current signal channel (waking every blocked
// AwaitLowPriorityClear caller) and installs a fresh one for the next
// transition.
func (d *Dispatcher) broadcast() {
	d.signalMu.Lock()
	old := d.signalCh
	d.signalCh = make(chan struct{})
	d.signalMu.Unlock()
	close(old)
}

func (d *Dispatcher) currentSignal() <-chan struct{} {
	d.signalMu.Lock()
	defer d.signalMu.Unlock()
	return d.signalCh
}
