// Package ingest orchestrates a single provider scan into a channel sync
// buffer and the batch consumers that persist its output, per spec.md
// §4.6 and §4.7.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karlokarate/nxcatalog/internal/metrics"
)

// DefaultCapacity and LowRAMCapacity are spec.md §4.7's two buffer-sizing
// profiles.
const (
	DefaultCapacity = 1000
	LowRAMCapacity  = 500
)

// BufferCounts is a snapshot of one Buffer's lifetime counters.
type BufferCounts struct {
	Sent               int64
	Received           int64
	InBuffer           int64
	BackpressureEvents int64
	ElapsedMs          int64
}

// Buffer is the bounded FIFO of spec.md §4.7: a single producer calls
// Send, any number of consumers call Receive/TryReceive, and Close makes
// Receive drain the remainder before reporting closed. Send suspends
// (blocks) once the buffer is full; every such suspension counts as one
// backpressure event.
type Buffer[T any] struct {
	channelID string
	ch        chan T
	capacity  int

	sent               atomic.Int64
	received           atomic.Int64
	backpressureEvents atomic.Int64

	startedAt time.Time
	closeOnce sync.Once
}

// NewBuffer builds a Buffer identified by channelID (used in metric
// labels) with the given capacity. Use DefaultCapacity or LowRAMCapacity
// unless config specifies otherwise.
func NewBuffer[T any](channelID string, capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{
		channelID: channelID,
		ch:        make(chan T, capacity),
		capacity:  capacity,
		startedAt: time.Now(),
	}
}

// Send enqueues item, blocking if the buffer is full until space frees up
// or ctx is cancelled. A blocking wait is recorded as one backpressure
// event regardless of how long it takes to clear.
func (b *Buffer[T]) Send(ctx context.Context, item T) error {
	if len(b.ch) >= b.capacity {
		b.backpressureEvents.Add(1)
		metrics.RecordChannelBufferBackpressure(b.channelID)
	}

	select {
	case b.ch <- item:
		b.sent.Add(1)
		metrics.RecordChannelBufferItem(b.channelID, "sent")
		metrics.UpdateChannelBufferDepth(b.channelID, len(b.ch))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ingest: buffer %s send cancelled: %w", b.channelID, ctx.Err())
	}
}

// Close signals that no further items will be sent. Receive continues to
// drain whatever remains buffered before reporting closed.
func (b *Buffer[T]) Close() {
	b.closeOnce.Do(func() {
		close(b.ch)
		metrics.RecordChannelBufferFlush("shutdown")
	})
}

// Receive blocks for the next item. ok is false once the buffer is closed
// and drained.
func (b *Buffer[T]) Receive(ctx context.Context) (item T, ok bool, err error) {
	select {
	case v, open := <-b.ch:
		if !open {
			return item, false, nil
		}
		b.received.Add(1)
		metrics.RecordChannelBufferItem(b.channelID, "received")
		metrics.UpdateChannelBufferDepth(b.channelID, len(b.ch))
		return v, true, nil
	case <-ctx.Done():
		return item, false, ctx.Err()
	}
}

// TryReceive returns the next item without blocking. ok is false if the
// buffer is empty (whether or not it is closed).
func (b *Buffer[T]) TryReceive() (item T, ok bool) {
	select {
	case v, open := <-b.ch:
		if !open {
			return item, false
		}
		b.received.Add(1)
		metrics.RecordChannelBufferItem(b.channelID, "received")
		metrics.UpdateChannelBufferDepth(b.channelID, len(b.ch))
		return v, true
	default:
		return item, false
	}
}

// Counts snapshots the buffer's lifetime counters.
func (b *Buffer[T]) Counts() BufferCounts {
	return BufferCounts{
		Sent:               b.sent.Load(),
		Received:           b.received.Load(),
		InBuffer:           int64(len(b.ch)),
		BackpressureEvents: b.backpressureEvents.Load(),
		ElapsedMs:          time.Since(b.startedAt).Milliseconds(),
	}
}
